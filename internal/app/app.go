// Package app wires the configured store to the REST server and runs them
// until shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/wastealarm/internal/controllers/restserver"
	"github.com/chrissnell/wastealarm/internal/log"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/internal/storage/postgres"
	"github.com/chrissnell/wastealarm/internal/storage/sqlite"
	"github.com/chrissnell/wastealarm/pkg/config"
	"github.com/codeGROOVE-dev/retry"
	"go.uber.org/zap"
)

// healthInterval is how often the store is health checked.
const healthInterval = 30 * time.Second

// connectAttempts bounds how often a PostgreSQL connection is tried at
// startup before giving up.
const connectAttempts = 6

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	store, err := OpenStore(ctx, cfg, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("error closing store: %v", err)
		}
	}()

	health := storage.NewHealthManager()
	storage.StartHealthMonitor(ctx, &wg, health, BackendName(cfg), store, healthInterval, a.logger.Named("health"))

	rest, err := restserver.NewController(ctx, &wg, store, health, cfg.API, cfg.Classifier, a.logger.Named("rest"))
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// OpenStore opens the storage backend selected by cfg. The optional pattern
// block seeds the settings of a store that is created fresh.
func OpenStore(ctx context.Context, cfg *config.ConfigData, logger *zap.SugaredLogger) (storage.Store, error) {
	if cfg.Pattern != nil {
		if err := storage.ValidateSettings(*cfg.Pattern); err != nil {
			return nil, fmt.Errorf("invalid pattern settings in configuration: %w", err)
		}
	}

	switch {
	case cfg.Storage.Postgres != nil:
		var store *postgres.Store
		err := retry.Do(
			func() error {
				s, err := postgres.Open(cfg.Storage.Postgres.ConnectionString, cfg.Pattern, logger)
				if err != nil {
					return err
				}
				store = s
				return nil
			},
			retry.Context(ctx),
			retry.Attempts(connectAttempts),
			retry.Delay(time.Second),
			retry.MaxDelay(30*time.Second),
			retry.DelayType(retry.BackOffDelay),
			retry.OnRetry(func(n uint, err error) {
				logger.Warnw("PostgreSQL not ready, retrying", "attempt", n+1, "error", err)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("connecting to PostgreSQL after retries: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return store, nil

	case cfg.Storage.SQLite != nil:
		store, err := sqlite.New(cfg.Storage.SQLite.Path, cfg.Pattern, logger)
		if err != nil {
			return nil, err
		}
		logger.Infow("using SQLite storage", "path", cfg.Storage.SQLite.Path)
		return store, nil
	}

	return nil, fmt.Errorf("no storage backend configured")
}

// OpenExistingStore opens the storage backend selected by cfg for reading
// only. Unlike OpenStore it neither creates nor migrates nor seeds a store.
func OpenExistingStore(cfg *config.ConfigData, logger *zap.SugaredLogger) (storage.Store, error) {
	switch {
	case cfg.Storage.Postgres != nil:
		return postgres.OpenExisting(cfg.Storage.Postgres.ConnectionString, logger)
	case cfg.Storage.SQLite != nil:
		return sqlite.OpenExisting(cfg.Storage.SQLite.Path, logger)
	}
	return nil, fmt.Errorf("no storage backend configured")
}

// BackendName names the storage backend selected by cfg
func BackendName(cfg *config.ConfigData) string {
	if cfg.Storage.Postgres != nil {
		return "postgres"
	}
	return "sqlite"
}
