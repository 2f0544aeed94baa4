package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// Pinger checks that a dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthChecker serves liveness and readiness probes. The directory pinger
// gates readiness hard; Redis is optional and only degrades the status.
type HealthChecker struct {
	directory Pinger
	redis     *redis.Client
	ready     atomic.Bool
}

// NewHealthChecker creates a health checker. Either dependency may be nil.
func NewHealthChecker(directory Pinger, redis *redis.Client) *HealthChecker {
	return &HealthChecker{directory: directory, redis: redis}
}

// SetReady marks startup (plugin loading, directory bind) as complete.
// Readiness reports unhealthy until this is called with true.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthStatus is the overall probe response.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus reports the health of a single dependency.
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Liveness always returns 200 while the process is running.
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness checks startup completion and all dependencies, returning 503
// when the gateway cannot serve traffic.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check evaluates readiness and every configured dependency.
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus),
	}

	if !h.ready.Load() {
		status.Status = StatusUnhealthy
		status.Dependencies["startup"] = DependencyStatus{
			Status:    StatusUnhealthy,
			Message:   "startup not complete",
			Timestamp: time.Now(),
		}
		return status
	}

	if h.directory != nil {
		ds := h.checkPinger(ctx, h.directory)
		status.Dependencies["directory"] = ds
		if ds.Status == StatusUnhealthy {
			status.Status = StatusUnhealthy
		}
	}

	if h.redis != nil {
		rs := h.checkRedis(ctx)
		status.Dependencies["redis"] = rs
		// Redis only backs the rate limiter, so losing it degrades
		// rather than fails readiness.
		if rs.Status == StatusUnhealthy && status.Status == StatusHealthy {
			status.Status = StatusDegraded
		}
	}

	return status
}

func (h *HealthChecker) checkPinger(ctx context.Context, ping Pinger) DependencyStatus {
	start := time.Now()
	ds := DependencyStatus{Status: StatusHealthy, Timestamp: start}

	if err := ping(ctx); err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
	}
	ds.Latency = time.Since(start)
	return ds
}

func (h *HealthChecker) checkRedis(ctx context.Context) DependencyStatus {
	start := time.Now()
	ds := DependencyStatus{Status: StatusHealthy, Timestamp: start}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		ds.Status = StatusUnhealthy
		ds.Message = err.Error()
	}
	ds.Latency = time.Since(start)
	return ds
}
