package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeSignalsEmpty(t *testing.T) {
	sig := ComputeSignals(nil, DefaultSettings())

	assert.Equal(t, 0, sig.Count)
	assert.Equal(t, 1, sig.MaxStreak)
	assert.Zero(t, sig.CV)
	assert.Zero(t, sig.RecordsPerDay)
	assert.Empty(t, sig.Streaks)
}

func TestComputeSignalsZeroMeanHasZeroCV(t *testing.T) {
	records := []AlarmRecord{
		alarm("m", 2024, 6, 1, 1, 0),
		alarm("m", 2024, 6, 1, 4, 0),
	}

	sig := ComputeSignals(records, DefaultSettings())

	assert.Zero(t, sig.MeanConsumption)
	assert.Zero(t, sig.StdDevConsumption)
	assert.Zero(t, sig.CV)
	assert.InDelta(t, 1.0, sig.SmallConsumptionRatio, 1e-9)
}

func TestComputeSignalsRatios(t *testing.T) {
	records := []AlarmRecord{
		alarm("m", 2024, 6, 1, 2, 0.5),
		alarm("m", 2024, 6, 1, 7, 1.5),
		alarm("m", 2024, 6, 1, 18, 0.5),
		alarm("m", 2024, 6, 2, 18, 1.5),
	}

	sig := ComputeSignals(records, DefaultSettings())

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"mean", sig.MeanConsumption, 1.0},
		{"population stddev", sig.StdDevConsumption, 0.5},
		{"cv", sig.CV, 0.5},
		{"small consumption", sig.SmallConsumptionRatio, 0.5},
		{"night", sig.NightRatio, 0.25},
		{"morning", sig.MorningRatio, 0.25},
		{"evening", sig.EveningRatio, 0.5},
		{"peak", sig.PeakRatio, 0.75},
		{"records per day", sig.RecordsPerDay, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.got, 1e-9)
		})
	}

	assert.Equal(t, 4, sig.Count)
	assert.Equal(t, 2, sig.UniqueDays)
	assert.Equal(t, 3, sig.UniqueHours)
	assert.Equal(t, 1, sig.MaxStreak)
	assert.Zero(t, sig.LongStreaks)
}

func TestComputeSignalsWindowBoundsInclusive(t *testing.T) {
	s := DefaultSettings()
	records := []AlarmRecord{
		alarm("m", 2024, 6, 1, s.NightHourStart, 0.3),
		alarm("m", 2024, 6, 2, s.NightHourEnd, 0.3),
		alarm("m", 2024, 6, 3, s.EveningPeakEnd, 0.3),
		alarm("m", 2024, 6, 4, s.MorningPeakStart, 0.3),
	}

	sig := ComputeSignals(records, s)

	assert.InDelta(t, 0.5, sig.NightRatio, 1e-9)
	assert.InDelta(t, 0.25, sig.MorningRatio, 1e-9)
	assert.InDelta(t, 0.25, sig.EveningRatio, 1e-9)
}

func TestComputeSignalsLongStreaksUseThreshold(t *testing.T) {
	records := []AlarmRecord{
		alarm("m", 2024, 6, 1, 1, 1),
		alarm("m", 2024, 6, 1, 2, 1),
		alarm("m", 2024, 6, 1, 3, 1),
		alarm("m", 2024, 6, 1, 10, 1),
		alarm("m", 2024, 6, 1, 11, 1),
	}

	s := DefaultSettings()
	sig := ComputeSignals(records, s)
	assert.Equal(t, []int{3, 2}, sig.Streaks)
	assert.Equal(t, 3, sig.MaxStreak)
	assert.Equal(t, 1, sig.LongStreaks)

	s.ContinuousThreshold = 2
	assert.Equal(t, 2, ComputeSignals(records, s).LongStreaks)
}
