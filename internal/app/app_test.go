package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenStoreSQLiteWithSeed(t *testing.T) {
	seed := pattern.DefaultSettings()
	seed.MaxConsumptionWarmWater = 0.6

	cfg := &config.ConfigData{
		Storage: config.StorageData{SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "alarms.db")}},
		Pattern: &seed,
	}

	store, err := OpenStore(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seed, got)
}

func TestOpenStoreRejectsInvalidSeed(t *testing.T) {
	seed := pattern.DefaultSettings()
	seed.NightHourEnd = 30

	cfg := &config.ConfigData{
		Storage: config.StorageData{SQLite: &config.SQLiteData{Path: filepath.Join(t.TempDir(), "alarms.db")}},
		Pattern: &seed,
	}

	_, err := OpenStore(context.Background(), cfg, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "night_hour window")
}

func TestOpenStoreWithoutBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.ConfigData{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}

func TestBackendName(t *testing.T) {
	assert.Equal(t, "sqlite", BackendName(&config.ConfigData{Storage: config.StorageData{SQLite: &config.SQLiteData{}}}))
	assert.Equal(t, "postgres", BackendName(&config.ConfigData{Storage: config.StorageData{Postgres: &config.PostgresData{ConnectionString: "postgres://x"}}}))
}

func TestOpenExistingStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.db")
	seed := pattern.DefaultSettings()
	seed.ContinuousThreshold = 5
	cfg := &config.ConfigData{
		Storage: config.StorageData{SQLite: &config.SQLiteData{Path: path}},
		Pattern: &seed,
	}

	_, err := OpenExistingStore(cfg, zap.NewNop().Sugar())
	require.Error(t, err)
	assert.NoFileExists(t, path)

	created, err := OpenStore(context.Background(), cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, created.Close())

	store, err := OpenExistingStore(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.ContinuousThreshold)

	_, err = OpenExistingStore(&config.ConfigData{}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
