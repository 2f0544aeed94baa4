package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dirgate/dirgate/pkg/contextkeys"
)

// RequestIDHeader carries the request ID back to the client and
// accepts one from trusted upstream proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a UUID (or adopts the inbound
// header) and stores it on the context for logging and audit.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
