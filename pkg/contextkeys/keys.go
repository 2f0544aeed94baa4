// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/dirgate/dirgate/pkg/contextkeys"
//   ctx = contextkeys.WithPrincipal(ctx, principal)
//   principal, ok := contextkeys.Principal(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains the authenticated principal string.
	// Set by: middleware.Authenticator (pkg/middleware/auth.go), exactly
	// once per request; requests without it are unauthenticated.
	// Required by: authorization hooks, audit trail
	// Type: string
	PrincipalKey Key = "principal"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: Observability middleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// Helper functions for type-safe context operations

// WithPrincipal records the authenticated principal on the context. The
// principal is set once by the authentication stage and treated as
// read-only afterwards; attempting to overwrite an existing principal
// returns the context unchanged.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if _, ok := Principal(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, PrincipalKey, principal)
}

// Principal retrieves the authenticated principal from the context. The
// second return value is false for unauthenticated requests.
func Principal(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(PrincipalKey).(string)
	if !ok || p == "" {
		return "", false
	}
	return p, true
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, or "" when unset.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
