package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is the sentinel every authentication failure wraps.
// The HTTP boundary matches on it and answers with an opaque 401.
var ErrUnauthorized = errors.New("unauthorized")

// Strategy resolves a request to a principal or fails the request.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string
	// Authenticate returns the principal for the request, or an error
	// wrapping ErrUnauthorized. The error text is for server-side logs
	// only and must never reach the client.
	Authenticate(r *http.Request) (string, error)
}

// failure builds an ErrUnauthorized-wrapping error carrying the
// strategy name and a server-side reason.
func failure(strategy, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s: %w", strategy, fmt.Sprintf(format, args...), ErrUnauthorized)
}

// bearerToken extracts the credential from an "Authorization: Bearer"
// header. No whitespace trimming is applied to the credential itself: a
// secret with surrounding whitespace is a different, invalid secret.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// MaskSecret renders a secret safe for log output. Only a short prefix
// survives; everything else is replaced.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-2)
}
