// Package observability provides structured logging, Prometheus metrics,
// health probes, and OpenTelemetry tracing for the gateway.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("plugin", name).Info("plugin loaded")
//
// FromContext returns a logger annotated with the request ID and the
// authenticated principal carried by the request context.
//
// # Prometheus Metrics
//
// Metrics are package-level and registered on the default registry:
//
//	observability.AuthzDecisions.WithLabelValues("ldapsearchrequest", "deny").Inc()
//
// Serve them with MetricsHandler on /metrics.
//
// # Health Checks
//
// HealthChecker serves /healthz (liveness) and /readyz (readiness). The
// directory connection gates readiness; Redis only degrades it.
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request logging and metrics middleware
package observability
