// Package postgres implements the alarm log and settings store on PostgreSQL
// through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/wastealarm/internal/database"
	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const insertBatchSize = 500

// Store implements storage.Store for PostgreSQL
type Store struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to PostgreSQL and prepares the schema
func Open(connectionString string, seed *pattern.Settings, logger *zap.SugaredLogger) (*Store, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	s, err := New(db, seed, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

// OpenExisting connects to a database prepared by Open. It fails when a table
// is missing and never changes the schema.
func OpenExisting(connectionString string, logger *zap.SugaredLogger) (*Store, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, err
	}

	for _, model := range []interface{}{&UploadModel{}, &AlarmModel{}, &SettingsModel{}} {
		if !db.Migrator().HasTable(model) {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, fmt.Errorf("table for %T does not exist; start the service once to create the schema", model)
		}
	}

	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// New wraps an open gorm connection. The tables are created or extended as
// needed and the settings row is created from seed (or the defaults) when it
// does not exist yet.
func New(db *gorm.DB, seed *pattern.Settings, logger *zap.SugaredLogger) (*Store, error) {
	if err := db.AutoMigrate(&UploadModel{}, &AlarmModel{}, &SettingsModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate PostgreSQL schema: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}

	initial := pattern.DefaultSettings()
	if seed != nil {
		initial = *seed
	}
	if err := storage.ValidateSettings(initial); err != nil {
		return nil, fmt.Errorf("invalid initial pattern settings: %w", err)
	}

	var count int64
	if err := db.Model(&SettingsModel{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to read pattern settings: %w", err)
	}
	if count == 0 {
		m := settingsToModel(initial)
		if err := db.Create(&m).Error; err != nil {
			return nil, fmt.Errorf("failed to initialise pattern settings: %w", err)
		}
		logger.Info("created initial pattern settings")
	}

	return s, nil
}

// CheckHealth pings PostgreSQL and counts the stored alarms
func (s *Store) CheckHealth(ctx context.Context) *storage.Health {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "PostgreSQL pool unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "PostgreSQL ping failed", err)
	}

	var alarms int64
	if err := s.db.WithContext(ctx).Model(&AlarmModel{}).Count(&alarms).Error; err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "PostgreSQL query failed", err)
	}

	return storage.NewHealth(storage.StatusHealthy, fmt.Sprintf("PostgreSQL healthy, %d alarms stored", alarms), nil)
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
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

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		um := UploadModel{
			ID:            u.ID,
			UploadedAt:    u.UploadedAt,
			MeterDataFile: u.MeterDataFile,
			WeatherFile:   u.WeatherFile,
			TotalAlarms:   u.TotalAlarms,
			UniqueMeters:  u.UniqueMeters,
		}
		if err := tx.Create(&um).Error; err != nil {
			return fmt.Errorf("failed to insert upload: %w", err)
		}

		if len(records) == 0 {
			return nil
		}

		alarms := make([]AlarmModel, 0, len(records))
		for _, r := range records {
			alarms = append(alarms, alarmToModel(u.ID, r))
		}
		if err := tx.CreateInBatches(alarms, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert alarms: %w", err)
		}
		return nil
	})
	if err != nil {
		return storage.Upload{}, err
	}

	s.logger.Infow("stored upload", "upload_id", u.ID, "alarms", u.TotalAlarms, "meters", u.UniqueMeters)
	return u, nil
}

// Alarms returns all stored alarms, most recent day first
func (s *Store) Alarms(ctx context.Context) ([]pattern.AlarmRecord, error) {
	var rows []AlarmModel
	err := s.db.WithContext(ctx).
		Order("year DESC NULLS LAST, month DESC NULLS LAST, day DESC NULLS LAST, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query alarms: %w", err)
	}

	records := make([]pattern.AlarmRecord, 0, len(rows))
	for _, m := range rows {
		records = append(records, alarmFromModel(m).Normalize())
	}
	return records, nil
}

// Uploads returns the upload history, newest first
func (s *Store) Uploads(ctx context.Context) ([]storage.Upload, error) {
	var rows []UploadModel
	if err := s.db.WithContext(ctx).Order("uploaded_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query uploads: %w", err)
	}

	uploads := make([]storage.Upload, 0, len(rows))
	for _, m := range rows {
		uploads = append(uploads, uploadFromModel(m))
	}
	return uploads, nil
}

// DeleteUpload removes one upload and its alarms
func (s *Store) DeleteUpload(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&UploadModel{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete upload: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return storage.ErrUploadNotFound
		}

		if err := tx.Where("upload_id = ?", id).Delete(&AlarmModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete alarms of upload: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Infow("deleted upload", "upload_id", id)
	return nil
}

// Clear removes all alarms and the upload history
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if err := all.Delete(&AlarmModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear alarms: %w", err)
		}
		if err := all.Delete(&UploadModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear uploads: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("cleared all alarms and uploads")
	return nil
}

// Settings returns the active pattern settings
func (s *Store) Settings(ctx context.Context) (pattern.Settings, error) {
	var m SettingsModel
	err := s.db.WithContext(ctx).First(&m, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pattern.DefaultSettings(), nil
	}
	if err != nil {
		return pattern.Settings{}, fmt.Errorf("failed to query pattern settings: %w", err)
	}
	return settingsFromModel(m), nil
}

// ReplaceSettings validates and stores a complete settings record
func (s *Store) ReplaceSettings(ctx context.Context, ps pattern.Settings) error {
	if err := storage.ValidateSettings(ps); err != nil {
		return err
	}

	m := settingsToModel(ps)
	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("failed to store pattern settings: %w", err)
	}

	s.logger.Infow("pattern settings replaced", "settings", ps)
	return nil
}
