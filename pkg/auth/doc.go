// Package auth implements the authentication strategies that resolve an
// inbound HTTP request to a principal.
//
// # Overview
//
// Every strategy satisfies the Strategy interface: given a request it
// returns the principal string, or an error wrapping ErrUnauthorized.
// Exactly one strategy runs per request (selected at startup); on
// success the middleware records the principal on the request context
// exactly once, read-only after.
//
// # Strategies
//
// Token: static bearer secrets from configuration
//
//	strategy := auth.NewTokenStrategy([]string{"s3cr3t:ci-deploy", "other"}, log)
//	// Authorization: Bearer s3cr3t  ->  principal "ci-deploy"
//	// unnamed entries get positional names ("token 2")
//
// TOTP: RFC 6238 one-time codes against configured identities
//
//	strategy := auth.NewTOTPStrategy(identities, 30*time.Second, 1, log)
//	// Authorization: Bearer 492039
//
// HMAC: per-request signatures with replay protection
//
//	// Authorization: HMAC-SHA256 <serviceId>:<unixMillis>:<hexSignature>
//	// signing string: METHOD|PATH_WITH_QUERY|timestampMs|bodyHashHex
//
// LLNG and OIDC delegate to an external identity system and only copy
// its assertion into the principal.
//
// # Error Handling
//
// Failure detail (unknown token, stale signature, out-of-window code)
// is carried in the error for server-side logs only; the HTTP boundary
// answers every authentication failure with the same opaque 401 so a
// caller cannot probe which check failed.
package auth
