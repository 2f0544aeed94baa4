package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level metrics registered on the default Prometheus registry.
// Low-level components (the authorization engine, strategy middleware,
// permission caches) increment these directly rather than threading a
// registry handle through every constructor.
var (
	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// AuthAttempts counts authentication attempts per strategy. Outcome is
	// "success" or "failure"; the label never carries credential material.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_auth_attempts_total",
			Help: "Authentication attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	// AuthzDecisions counts authorization decisions per hooked directory
	// operation. Outcome is "allow", "deny" or "narrow" (a search whose
	// filter was rewritten to the caller's authorized branches).
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_authz_decisions_total",
			Help: "Authorization decisions by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// DirectoryOperations counts LDAP operations forwarded to the backend.
	DirectoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_directory_operations_total",
			Help: "Directory operations by verb and status",
		},
		[]string{"operation", "status"},
	)

	// CacheLookups counts permission cache lookups by cache name and
	// outcome ("hit", "miss" or "stale").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_cache_lookups_total",
			Help: "Permission cache lookups by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// PluginLoads counts plugin load attempts by plugin name and status.
	PluginLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_plugin_loads_total",
			Help: "Plugin load attempts by plugin and status",
		},
		[]string{"plugin", "status"},
	)

	// RateLimitedTotal counts requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dirgate_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// HookDispatches counts hook bus dispatches by hook and mode.
	HookDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dirgate_hook_dispatches_total",
			Help: "Hook bus dispatches by hook name and dispatch mode",
		},
		[]string{"hook", "mode"},
	)
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with the package metrics.
// The path label uses the mux route template when available so that DNs in
// request paths do not explode metric cardinality.
func HTTPMetricsMiddleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if routePattern != nil {
				if p := routePattern(r); p != "" {
					path = p
				}
			}

			HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler returns the handler serving the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
