// Package sqlite implements the alarm log and settings store on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"time"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/pkg/migrate"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements storage.Store for SQLite
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if necessary) the database at path and brings its
// schema up to date. When the database is created fresh and seed is not nil,
// seed replaces the default settings.
func New(path string, seed *pattern.Settings, logger *zap.SugaredLogger) (*Store, error) {
	db, err := OpenDB(path, false)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	ctx := context.Background()
	plan, err := NewMigrator(db, logger).Up(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite schema: %w", err)
	}
	if !plan.Fresh() {
		return s, nil
	}

	logger.Infow("created alarm database", "path", path, "schema_version", plan.To)
	if seed != nil {
		logger.Info("seeding pattern settings from configuration")
		if err := s.ReplaceSettings(ctx, *seed); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to seed pattern settings: %w", err)
		}
	}

	return s, nil
}

// OpenExisting opens a database that New created earlier. It fails when the
// file does not exist or its schema is behind, and never writes.
func OpenExisting(path string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := OpenDB(path, true)
	if err != nil {
		return nil, err
	}

	st, err := NewMigrator(db, logger).Status(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	if !st.UpToDate() {
		db.Close()
		return nil, fmt.Errorf("alarm database %s is at schema version %d, want %d; run migrate up", path, st.Current, st.Latest)
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// OpenDB opens and pings the SQLite database at path. With mustExist a
// missing file is an error instead of being created.
func OpenDB(path string, mustExist bool) (*sql.DB, error) {
	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("alarm database %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A single connection serializes writers and keeps :memory: databases
	// shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	return db, nil
}

// NewMigrator returns a migrator over the alarm schema embedded in this
// package
func NewMigrator(db *sql.DB, logger *zap.SugaredLogger) *migrate.Migrator {
	return migrate.NewMigrator(db, migrate.NewFSSource(migrations, "migrations"), logger)
}

// CheckHealth pings the database and counts the stored alarms
func (s *Store) CheckHealth(ctx context.Context) *storage.Health {
	if err := s.db.PingContext(ctx); err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "SQLite ping failed", err)
	}

	var alarms int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alarms`).Scan(&alarms); err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "SQLite query failed", err)
	}

	return storage.NewHealth(storage.StatusHealthy, fmt.Sprintf("SQLite healthy, %d alarms stored", alarms), nil)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendUpload stores records as one new upload batch. Hour and date parts
// missing from a record are derived before it is written.
func (s *Store) AppendUpload(ctx context.Context, u storage.Upload, records []pattern.AlarmRecord) (storage.Upload, error) {
	records = pattern.NormalizeAll(records)
	u.ID = uuid.NewString()
	if u.UploadedAt.IsZero() {
		u.UploadedAt = s.now().UTC()
	}
	u.TotalAlarms = len(records)
	u.UniqueMeters = storage.CountMeters(records)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Upload{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO uploads (id, uploaded_at, meter_data_file, weather_file, total_alarms, unique_meters)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.UploadedAt.UTC().Format(timestampLayout), u.MeterDataFile, u.WeatherFile, u.TotalAlarms, u.UniqueMeters)
	if err != nil {
		return storage.Upload{}, fmt.Errorf("failed to insert upload: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alarms (upload_id, ean_code, date, time, consumption, temperature, year, month, day, hour)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storage.Upload{}, fmt.Errorf("failed to prepare alarm insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		year, month, day := nullableDate(r)
		_, err := stmt.ExecContext(ctx, u.ID, r.Meter, r.Date, r.Time, r.Consumption, r.Temperature,
			year, month, day, nullableHour(r))
		if err != nil {
			return storage.Upload{}, fmt.Errorf("failed to insert alarm for meter %s: %w", r.Meter, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Upload{}, fmt.Errorf("failed to commit upload: %w", err)
	}

	s.logger.Infow("stored upload", "upload_id", u.ID, "alarms", u.TotalAlarms, "meters", u.UniqueMeters)
	return u, nil
}

// Alarms returns all stored alarms, most recent day first
func (s *Store) Alarms(ctx context.Context) ([]pattern.AlarmRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, upload_id, ean_code, date, time, consumption, temperature, year, month, day, hour
		FROM alarms
		ORDER BY year DESC, month DESC, day DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}
	defer rows.Close()

	records := []pattern.AlarmRecord{}
	for rows.Next() {
		var r pattern.AlarmRecord
		var year, month, day, hour sql.NullInt64

		err := rows.Scan(&r.ID, &r.UploadID, &r.Meter, &r.Date, &r.Time, &r.Consumption, &r.Temperature,
			&year, &month, &day, &hour)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alarm row: %w", err)
		}

		// Missing date components stay zero so the classifier derives them.
		if year.Valid && month.Valid && day.Valid {
			r.Year, r.Month, r.Day = int(year.Int64), int(month.Int64), int(day.Int64)
		}
		r.Hour = pattern.NoHour
		if hour.Valid {
			r.Hour = int(hour.Int64)
		}

		records = append(records, r.Normalize())
	}

	return records, rows.Err()
}

// Uploads returns the upload history, newest first
func (s *Store) Uploads(ctx context.Context) ([]storage.Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, uploaded_at, meter_data_file, weather_file, total_alarms, unique_meters
		FROM uploads
		ORDER BY uploaded_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}
	defer rows.Close()

	uploads := []storage.Upload{}
	for rows.Next() {
		var u storage.Upload
		var uploadedAt string
		if err := rows.Scan(&u.ID, &uploadedAt, &u.MeterDataFile, &u.WeatherFile, &u.TotalAlarms, &u.UniqueMeters); err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		u.UploadedAt, err = time.Parse(timestampLayout, uploadedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid upload timestamp %q: %w", uploadedAt, err)
		}
		uploads = append(uploads, u)
	}

	return uploads, rows.Err()
}

// DeleteUpload removes one upload and its alarms
func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrUploadNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM alarms WHERE upload_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete alarms of upload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.logger.Infow("deleted upload", "upload_id", id)
	return nil
}

// Clear removes all alarms and the upload history
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"alarms", "uploads"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	s.logger.Info("cleared all alarms and uploads")
	return nil
}

// Settings returns the active pattern settings
func (s *Store) Settings(ctx context.Context) (pattern.Settings, error) {
	var ps pattern.Settings

	err := s.db.QueryRowContext(ctx, `
		SELECT continuous_threshold, high_consumption_multiplier, min_pattern_occurrences,
		       max_consumption_warm_water, night_hour_start, night_hour_end,
		       morning_peak_start, morning_peak_end, evening_peak_start, evening_peak_end
		FROM pattern_settings
		WHERE id = 1`).Scan(
		&ps.ContinuousThreshold, &ps.HighConsumptionMultiplier, &ps.MinPatternOccurrences,
		&ps.MaxConsumptionWarmWater, &ps.NightHourStart, &ps.NightHourEnd,
		&ps.MorningPeakStart, &ps.MorningPeakEnd, &ps.EveningPeakStart, &ps.EveningPeakEnd,
	)
	if err == sql.ErrNoRows {
		return pattern.DefaultSettings(), nil
	}
	if err != nil {
		return pattern.Settings{}, fmt.Errorf("failed to query pattern settings: %w", err)
	}

	return ps, nil
}

// ReplaceSettings validates and stores a complete settings record
func (s *Store) ReplaceSettings(ctx context.Context, ps pattern.Settings) error {
	if err := storage.ValidateSettings(ps); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pattern_settings
		    (id, continuous_threshold, high_consumption_multiplier, min_pattern_occurrences,
		     max_consumption_warm_water, night_hour_start, night_hour_end,
		     morning_peak_start, morning_peak_end, evening_peak_start, evening_peak_end)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ps.ContinuousThreshold, ps.HighConsumptionMultiplier, ps.MinPatternOccurrences,
		ps.MaxConsumptionWarmWater, ps.NightHourStart, ps.NightHourEnd,
		ps.MorningPeakStart, ps.MorningPeakEnd, ps.EveningPeakStart, ps.EveningPeakEnd,
	)
	if err != nil {
		return fmt.Errorf("failed to store pattern settings: %w", err)
	}

	s.logger.Infow("pattern settings replaced", "settings", ps)
	return nil
}

func nullableDate(r pattern.AlarmRecord) (year, month, day sql.NullInt64) {
	if r.Year == 0 {
		return
	}
	return sql.NullInt64{Int64: int64(r.Year), Valid: true},
		sql.NullInt64{Int64: int64(r.Month), Valid: true},
		sql.NullInt64{Int64: int64(r.Day), Valid: true}
}

func nullableHour(r pattern.AlarmRecord) sql.NullInt64 {
	if r.Hour == pattern.NoHour {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(r.Hour), Valid: true}
}
