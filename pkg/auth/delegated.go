package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
)

// LLNGStrategy trusts the authenticated-user header injected by a
// LemonLDAP::NG handler running in front of the gateway. It must only
// be enabled when the gateway is unreachable except through that proxy.
type LLNGStrategy struct {
	header string
}

// DefaultLLNGHeader is the header the LemonLDAP::NG handler sets.
const DefaultLLNGHeader = "Auth-User"

// NewLLNGStrategy creates the header-trusting strategy. An empty header
// name selects the default.
func NewLLNGStrategy(header string) *LLNGStrategy {
	if header == "" {
		header = DefaultLLNGHeader
	}
	return &LLNGStrategy{header: header}
}

// Name implements Strategy.
func (s *LLNGStrategy) Name() string { return "llng" }

// Authenticate copies the proxy assertion into the principal.
func (s *LLNGStrategy) Authenticate(r *http.Request) (string, error) {
	user := r.Header.Get(s.header)
	if user == "" {
		return "", failure(s.Name(), "missing %s header", s.header)
	}
	return user, nil
}

// OIDCStrategy verifies a bearer ID token against an OpenID Connect
// provider and sets the principal from its assertion.
type OIDCStrategy struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCStrategy discovers the provider and builds a token verifier.
func NewOIDCStrategy(ctx context.Context, issuerURL, clientID string) (*OIDCStrategy, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: clientID})
	return &OIDCStrategy{verifier: verifier}, nil
}

// Name implements Strategy.
func (s *OIDCStrategy) Name() string { return "oidc" }

// Authenticate verifies the bearer ID token and returns the preferred
// username claim, falling back to the token subject.
func (s *OIDCStrategy) Authenticate(r *http.Request) (string, error) {
	rawToken, ok := bearerToken(r)
	if !ok {
		return "", failure(s.Name(), "missing or malformed Authorization header")
	}

	token, err := s.verifier.Verify(r.Context(), rawToken)
	if err != nil {
		return "", failure(s.Name(), "token verification failed: %v", err)
	}

	var claims struct {
		PreferredUsername string `json:"preferred_username"`
	}
	if err := token.Claims(&claims); err == nil && claims.PreferredUsername != "" {
		return claims.PreferredUsername, nil
	}

	return token.Subject, nil
}
