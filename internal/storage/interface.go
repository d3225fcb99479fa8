// Package storage defines the alarm log and settings stores the classifier
// reads from, with SQLite and PostgreSQL implementations in subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
)

// ErrUploadNotFound is returned when an upload batch does not exist.
var ErrUploadNotFound = errors.New("upload not found")

// Upload describes one ingested batch of alarm records.
type Upload struct {
	ID            string    `json:"id"`
	UploadedAt    time.Time `json:"uploaded_at"`
	MeterDataFile string    `json:"meter_data_file"`
	WeatherFile   string    `json:"weather_file"`
	TotalAlarms   int       `json:"total_alarms"`
	UniqueMeters  int       `json:"unique_meters"`
}

// AlarmLog is the append-only log of alarm records, partitioned by upload.
type AlarmLog interface {
	// AppendUpload stores records as a new batch. ID, UploadedAt and the
	// counters of u are filled in by the store.
	AppendUpload(ctx context.Context, u Upload, records []pattern.AlarmRecord) (Upload, error)

	// Alarms returns every stored alarm, most recent day first.
	Alarms(ctx context.Context) ([]pattern.AlarmRecord, error)

	// Uploads returns the upload history, newest first.
	Uploads(ctx context.Context) ([]Upload, error)

	// DeleteUpload removes a batch and its alarms.
	DeleteUpload(ctx context.Context, id string) error

	// Clear removes all alarms and the upload history.
	Clear(ctx context.Context) error
}

// SettingsStore holds the single active classifier configuration.
type SettingsStore interface {
	Settings(ctx context.Context) (pattern.Settings, error)

	// ReplaceSettings validates s and swaps it in as a whole.
	ReplaceSettings(ctx context.Context, s pattern.Settings) error
}

// Store is a complete storage backend.
type Store interface {
	AlarmLog
	SettingsStore
	HealthChecker
	Close() error
}

// CountMeters returns the number of distinct meters in records.
func CountMeters(records []pattern.AlarmRecord) int {
	seen := make(map[string]struct{})
	for _, r := range records {
		seen[r.Meter] = struct{}{}
	}
	return len(seen)
}
