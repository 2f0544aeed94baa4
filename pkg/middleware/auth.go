package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/auth"
	"github.com/dirgate/dirgate/pkg/contextkeys"
	"github.com/dirgate/dirgate/pkg/hooks"
	"github.com/dirgate/dirgate/pkg/observability"
)

// Authenticator runs the configured authentication strategies against
// each request. The first strategy that accepts the request sets the
// principal on the context, exactly once; no later stage can overwrite
// it. When every strategy rejects, the client gets one opaque 401 with
// no hint of which strategy failed or why.
type Authenticator struct {
	strategies []auth.Strategy
	bus        *hooks.Bus
	optional   bool
	log        *logrus.Logger
}

// NewAuthenticator creates the middleware. Authentication outcomes are
// dispatched on the bus as notify hooks when one is given. optional
// lets requests without a resolvable principal through
// unauthenticated; the authorization engine then decides their fate.
func NewAuthenticator(strategies []auth.Strategy, bus *hooks.Bus, optional bool, log *logrus.Logger) *Authenticator {
	if log == nil {
		log = logrus.New()
	}
	return &Authenticator{
		strategies: strategies,
		bus:        bus,
		optional:   optional,
		log:        log,
	}
}

// Handler wraps next with authentication.
func (m *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, strategy := range m.strategies {
			principal, err := strategy.Authenticate(r)
			if err != nil {
				observability.AuthAttempts.WithLabelValues(strategy.Name(), "failure").Inc()
				// Detail stays server-side; the client response never
				// distinguishes failure causes.
				m.log.WithFields(logrus.Fields{
					"strategy": strategy.Name(),
					"remote":   r.RemoteAddr,
				}).WithError(err).Debug("authentication attempt rejected")
				continue
			}

			observability.AuthAttempts.WithLabelValues(strategy.Name(), "success").Inc()
			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			if m.bus != nil {
				m.bus.NotifyAll(ctx, hooks.HookAuthSuccess, hooks.Args{strategy.Name(), principal})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if m.optional {
			next.ServeHTTP(w, r)
			return
		}
		if m.bus != nil {
			m.bus.NotifyAll(r.Context(), hooks.HookAuthFailure, hooks.Args{r.RemoteAddr})
		}
		unauthorized(w)
	})
}

// unauthorized writes the one opaque 401 body every authentication
// failure shares.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}`))
}
