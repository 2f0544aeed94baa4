package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// TokenStrategy authenticates requests against a static set of bearer
// secrets from configuration.
type TokenStrategy struct {
	tokens map[string]string // secret -> principal name
	log    *logrus.Logger
}

// NewTokenStrategy builds a strategy from config entries of the form
// "secret[:name]". Entries without a name get a positional placeholder
// ("token 1", "token 2", ...). Empty entries are skipped with a warning.
func NewTokenStrategy(entries []string, log *logrus.Logger) *TokenStrategy {
	if log == nil {
		log = logrus.New()
	}

	tokens := make(map[string]string, len(entries))
	for i, entry := range entries {
		secret, name, hasName := strings.Cut(entry, ":")
		if secret == "" {
			log.Warnf("token entry %d has an empty secret, skipping", i+1)
			continue
		}
		if !hasName || name == "" {
			name = fmt.Sprintf("token %d", i+1)
		}
		if prev, dup := tokens[secret]; dup {
			log.Warnf("token entry %d duplicates the secret of %q, keeping the first", i+1, prev)
			continue
		}
		tokens[secret] = name
	}

	return &TokenStrategy{tokens: tokens, log: log}
}

// Name implements Strategy.
func (s *TokenStrategy) Name() string { return "token" }

// Authenticate validates the bearer credential by exact membership in
// the configured token map.
func (s *TokenStrategy) Authenticate(r *http.Request) (string, error) {
	credential, ok := bearerToken(r)
	if !ok {
		return "", failure(s.Name(), "missing or malformed Authorization header")
	}

	name, ok := s.tokens[credential]
	if !ok {
		return "", failure(s.Name(), "unknown token %s", MaskSecret(credential))
	}

	return name, nil
}
