package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the outcome of one health check of a storage backend
type Health struct {
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
}

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *Health
}

// NewHealth creates a health record stamped with the current time
func NewHealth(status, message string, err error) *Health {
	health := &Health{
		LastCheck: time.Now(),
		Status:    status,
		Message:   message,
	}

	if err != nil {
		health.Error = err.Error()
	}

	return health
}

// HealthManager keeps the latest health status of each backend in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]Health
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]Health),
	}
}

// UpdateHealth records the status of a storage backend
func (hm *HealthManager) UpdateHealth(name string, health *Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.health[name] = *health
}

// GetHealth retrieves the health status of one backend
func (hm *HealthManager) GetHealth(name string) (Health, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	health, exists := hm.health[name]
	return health, exists
}

// GetAllHealth returns a copy of every recorded status
func (hm *HealthManager) GetAllHealth() map[string]Health {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]Health, len(hm.health))
	for k, v := range hm.health {
		result[k] = v
	}
	return result
}

// IsHealthy reports whether the backend passed a check no older than maxAge
func (hm *HealthManager) IsHealthy(name string, maxAge time.Duration) bool {
	health, exists := hm.GetHealth(name)
	if !exists {
		return false
	}

	if time.Since(health.LastCheck) > maxAge {
		return false
	}

	return health.Status == StatusHealthy
}

// StartHealthMonitor checks the backend immediately and then every interval
// until ctx is cancelled.
func StartHealthMonitor(ctx context.Context, wg *sync.WaitGroup, hm *HealthManager, name string, checker HealthChecker, interval time.Duration, logger *zap.SugaredLogger) {
	update := func() {
		checkCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		health := checker.CheckHealth(checkCtx)
		hm.UpdateHealth(name, health)
		if health.Status != StatusHealthy {
			logger.Warnw("storage health check failed", "backend", name, "error", health.Error)
		} else {
			logger.Debugw("storage health check passed", "backend", name)
		}
	}

	update()

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				update()
			case <-ctx.Done():
				logger.Infof("stopping %s health monitor", name)
				return
			}
		}
	}()
}
