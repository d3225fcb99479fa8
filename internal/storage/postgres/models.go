package postgres

import (
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
)

// UploadModel is one row of the upload history
type UploadModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	UploadedAt    time.Time `gorm:"column:uploaded_at;not null;index"`
	MeterDataFile string    `gorm:"column:meter_data_file;not null;default:''"`
	WeatherFile   string    `gorm:"column:weather_file;not null;default:''"`
	TotalAlarms   int       `gorm:"column:total_alarms;not null;default:0"`
	UniqueMeters  int       `gorm:"column:unique_meters;not null;default:0"`
}

// TableName specifies the table name for UploadModel
func (UploadModel) TableName() string {
	return "uploads"
}

// AlarmModel is one stored alarm. Date and hour columns are nullable so rows
// imported without them are re-derived from the raw strings on read.
type AlarmModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement;column:id"`
	UploadID    string  `gorm:"column:upload_id;not null;index"`
	Meter       string  `gorm:"column:ean_code;not null;index"`
	Date        string  `gorm:"column:date;not null;default:''"`
	Time        string  `gorm:"column:time;not null;default:''"`
	Consumption float64 `gorm:"column:consumption;not null"`
	Temperature float64 `gorm:"column:temperature;not null"`
	Year        *int    `gorm:"column:year"`
	Month       *int    `gorm:"column:month"`
	Day         *int    `gorm:"column:day"`
	Hour        *int    `gorm:"column:hour"`
}

// TableName specifies the table name for AlarmModel
func (AlarmModel) TableName() string {
	return "alarms"
}

// SettingsModel holds the single pattern settings row (id = 1)
type SettingsModel struct {
	ID                        int     `gorm:"primaryKey;column:id"`
	ContinuousThreshold       int     `gorm:"column:continuous_threshold;not null"`
	HighConsumptionMultiplier float64 `gorm:"column:high_consumption_multiplier;not null"`
	MinPatternOccurrences     int     `gorm:"column:min_pattern_occurrences;not null"`
	MaxConsumptionWarmWater   float64 `gorm:"column:max_consumption_warm_water;not null"`
	NightHourStart            int     `gorm:"column:night_hour_start;not null"`
	NightHourEnd              int     `gorm:"column:night_hour_end;not null"`
	MorningPeakStart          int     `gorm:"column:morning_peak_start;not null"`
	MorningPeakEnd            int     `gorm:"column:morning_peak_end;not null"`
	EveningPeakStart          int     `gorm:"column:evening_peak_start;not null"`
	EveningPeakEnd            int     `gorm:"column:evening_peak_end;not null"`
}

// TableName specifies the table name for SettingsModel
func (SettingsModel) TableName() string {
	return "pattern_settings"
}

func uploadFromModel(m UploadModel) storage.Upload {
	return storage.Upload{
		ID:            m.ID,
		UploadedAt:    m.UploadedAt.UTC(),
		MeterDataFile: m.MeterDataFile,
		WeatherFile:   m.WeatherFile,
		TotalAlarms:   m.TotalAlarms,
		UniqueMeters:  m.UniqueMeters,
	}
}

func alarmToModel(uploadID string, r pattern.AlarmRecord) AlarmModel {
	m := AlarmModel{
		UploadID:    uploadID,
		Meter:       r.Meter,
		Date:        r.Date,
		Time:        r.Time,
		Consumption: r.Consumption,
		Temperature: r.Temperature,
	}
	if r.Year != 0 {
		m.Year, m.Month, m.Day = intPtr(r.Year), intPtr(r.Month), intPtr(r.Day)
	}
	if r.Hour != pattern.NoHour {
		m.Hour = intPtr(r.Hour)
	}
	return m
}

func alarmFromModel(m AlarmModel) pattern.AlarmRecord {
	r := pattern.AlarmRecord{
		ID:          m.ID,
		UploadID:    m.UploadID,
		Meter:       m.Meter,
		Date:        m.Date,
		Time:        m.Time,
		Consumption: m.Consumption,
		Temperature: m.Temperature,
		Hour:        pattern.NoHour,
	}
	if m.Year != nil && m.Month != nil && m.Day != nil {
		r.Year, r.Month, r.Day = *m.Year, *m.Month, *m.Day
	}
	if m.Hour != nil {
		r.Hour = *m.Hour
	}
	return r
}

func settingsToModel(s pattern.Settings) SettingsModel {
	return SettingsModel{
		ID:                        1,
		ContinuousThreshold:       s.ContinuousThreshold,
		HighConsumptionMultiplier: s.HighConsumptionMultiplier,
		MinPatternOccurrences:     s.MinPatternOccurrences,
		MaxConsumptionWarmWater:   s.MaxConsumptionWarmWater,
		NightHourStart:            s.NightHourStart,
		NightHourEnd:              s.NightHourEnd,
		MorningPeakStart:          s.MorningPeakStart,
		MorningPeakEnd:            s.MorningPeakEnd,
		EveningPeakStart:          s.EveningPeakStart,
		EveningPeakEnd:            s.EveningPeakEnd,
	}
}

func settingsFromModel(m SettingsModel) pattern.Settings {
	return pattern.Settings{
		ContinuousThreshold:       m.ContinuousThreshold,
		HighConsumptionMultiplier: m.HighConsumptionMultiplier,
		MinPatternOccurrences:     m.MinPatternOccurrences,
		MaxConsumptionWarmWater:   m.MaxConsumptionWarmWater,
		NightHourStart:            m.NightHourStart,
		NightHourEnd:              m.NightHourEnd,
		MorningPeakStart:          m.MorningPeakStart,
		MorningPeakEnd:            m.MorningPeakEnd,
		EveningPeakStart:          m.EveningPeakStart,
		EveningPeakEnd:            m.EveningPeakEnd,
	}
}

func intPtr(v int) *int {
	return &v
}
