package postgres

import (
	"testing"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarmModelConversion(t *testing.T) {
	tests := []struct {
		name   string
		record pattern.AlarmRecord
	}{
		{
			name: "derived fields present",
			record: pattern.AlarmRecord{
				Meter: "871687400000000001", Date: "01-06-2024", Time: "03:00",
				Year: 2024, Month: 6, Day: 1, Hour: 3, Consumption: 1.2, Temperature: 19.1,
			},
		},
		{
			name: "midnight hour",
			record: pattern.AlarmRecord{
				Meter: "871687400000000001", Year: 2024, Month: 6, Day: 2, Hour: 0, Consumption: 0.4,
			},
		},
		{
			name: "raw strings only",
			record: pattern.AlarmRecord{
				Meter: "871687400000000002", Date: "02-06-2024", Time: "07:00",
				Hour: pattern.NoHour, Consumption: 0.3,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := alarmToModel("upload-1", tt.record)
			assert.Equal(t, "upload-1", m.UploadID)

			if tt.record.Hour == pattern.NoHour {
				assert.Nil(t, m.Hour)
			} else {
				require.NotNil(t, m.Hour)
				assert.Equal(t, tt.record.Hour, *m.Hour)
			}
			if tt.record.Year == 0 {
				assert.Nil(t, m.Year)
			}

			want := tt.record
			want.UploadID = "upload-1"
			assert.Equal(t, want, alarmFromModel(m))
		})
	}
}

func TestSettingsModelConversion(t *testing.T) {
	s := pattern.DefaultSettings()
	s.EveningPeakStart = 16

	m := settingsToModel(s)
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, s, settingsFromModel(m))
}

func TestUploadFromModelNormalisesToUTC(t *testing.T) {
	amsterdam := time.FixedZone("CEST", 2*60*60)
	m := UploadModel{ID: "u", UploadedAt: time.Date(2024, 6, 1, 14, 0, 0, 0, amsterdam), TotalAlarms: 3}

	u := uploadFromModel(m)
	assert.Equal(t, time.UTC, u.UploadedAt.Location())
	assert.Equal(t, 12, u.UploadedAt.Hour())
	assert.Equal(t, 3, u.TotalAlarms)
}
