// Package middleware provides the HTTP middleware chain: request IDs,
// authentication, and distributed rate limiting.
//
// # Chain order
//
// RequestID runs first so every later stage can log and audit against
// one ID. The Authenticator runs next and sets the principal exactly
// once; the rate limiter follows it so authenticated callers are keyed
// by principal rather than source IP.
//
// # Authentication
//
// Authenticator tries the configured pkg/auth strategies in order. The
// client always sees one opaque 401; which strategy rejected, and why,
// is logged server-side only.
//
// # Rate limiting
//
// DistributedRateLimiter keeps a fixed-window counter per key in Redis
// so the limit holds across replicas. Redis outages fail open.
package middleware
