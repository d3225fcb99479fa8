package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chrissnell/wastealarm/internal/log"
	"github.com/chrissnell/wastealarm/internal/pattern"
	"github.com/chrissnell/wastealarm/internal/storage"
	"github.com/chrissnell/wastealarm/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/maypok86/otter/v2"
	"go.uber.org/zap"
)

const summaryCacheSize = 64

// Controller serves the alarm log, settings and pattern analysis over HTTP
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	apiConfig  config.APIData
	classifier config.ClassifierData
	Server     http.Server
	store      storage.Store
	health     *storage.HealthManager
	logger     *zap.SugaredLogger
	handlers   *Handlers

	// generation changes on every write to the store. Cached summaries are
	// keyed by it so a write makes every older entry unreachable.
	generation atomic.Uint64
	summaries  *otter.Cache[uint64, []pattern.Analysis]
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, store storage.Store, health *storage.HealthManager, ac config.APIData, cc config.ClassifierData, logger *zap.SugaredLogger) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("REST server requires a storage backend")
	}
	if health == nil {
		health = storage.NewHealthManager()
	}

	if ac.ListenAddr == "" {
		logger.Infof("api listen-addr not provided; defaulting to %s (all interfaces)", config.DefaultListenAddr)
		ac.ListenAddr = config.DefaultListenAddr
	}
	if ac.Port == 0 {
		logger.Infof("api port not provided; defaulting to %d", config.DefaultPort)
		ac.Port = config.DefaultPort
	}
	if cc.CacheTTL <= 0 {
		cc.CacheTTL = config.DefaultCacheTTL
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		apiConfig:  ac,
		classifier: cc,
		store:      store,
		health:     health,
		logger:     logger,
		summaries: otter.Must(&otter.Options[uint64, []pattern.Analysis]{
			MaximumSize:      summaryCacheSize,
			ExpiryCalculator: otter.ExpiryWriting[uint64, []pattern.Analysis](cc.CacheTTL),
		}),
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ac.ListenAddr, ac.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.logger.Infof("REST server listening on %s", c.Server.Addr)

		var err error
		if c.apiConfig.Cert != "" && c.apiConfig.Key != "" {
			err = c.Server.ListenAndServeTLS(c.apiConfig.Cert, c.apiConfig.Key)
		} else {
			err = c.Server.ListenAndServe()
		}

		if err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() http.Handler {
	router := mux.NewRouter()

	router.Use(c.loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", c.handlers.GetHealth).Methods("GET")

	api.HandleFunc("/settings", c.handlers.GetSettings).Methods("GET")
	api.HandleFunc("/settings", c.handlers.UpdateSettings).Methods("PUT")

	api.HandleFunc("/alarms", c.handlers.GetAlarms).Methods("GET")
	api.HandleFunc("/alarms", c.handlers.ClearAlarms).Methods("DELETE")

	api.HandleFunc("/uploads", c.handlers.GetUploads).Methods("GET")
	api.HandleFunc("/uploads", c.handlers.CreateUpload).Methods("POST")
	api.HandleFunc("/uploads/{id}", c.handlers.DeleteUpload).Methods("DELETE")

	api.HandleFunc("/meters", c.handlers.GetMeters).Methods("GET")
	api.HandleFunc("/meters/{meter}", c.handlers.GetMeter).Methods("GET")

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(log.GetZapLogger())),
		handlers.PrintRecoveryStack(true),
	)

	return recovery(handlers.CompressHandler(router))
}

// loggingMiddleware logs every request with its duration
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		c.logger.Infof("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
	})
}

// invalidate makes every cached analysis stale. Called after each write.
func (c *Controller) invalidate() {
	c.generation.Add(1)
}

// summary returns the per-meter analysis of all stored alarms under the
// current settings, served from cache when nothing was written since.
func (c *Controller) summary(ctx context.Context) ([]pattern.Analysis, error) {
	gen := c.generation.Load()
	if cached, ok := c.summaries.GetIfPresent(gen); ok {
		return cached, nil
	}

	settings, err := c.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	alarms, err := c.store.Alarms(ctx)
	if err != nil {
		return nil, err
	}

	analyses := pattern.SummarizeConcurrent(alarms, settings, c.classifier.Workers)
	c.summaries.Set(gen, analyses)
	c.logger.Debugw("computed pattern summary", "generation", gen, "meters", len(analyses), "alarms", len(alarms))

	return analyses, nil
}
