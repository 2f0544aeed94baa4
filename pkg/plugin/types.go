package plugin

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/config"
	"github.com/dirgate/dirgate/pkg/directory"
	"github.com/dirgate/dirgate/pkg/hooks"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name is the plugin's self-reported identifier.
	Name() string
	// Hooks returns the handlers the plugin installs on the bus, keyed
	// by hook name. May be empty.
	Hooks() map[string]hooks.Handler
}

// RouterPlugin is implemented by plugins that expose HTTP endpoints.
// Mount receives a subrouter rooted at /plugins/<finalName>/.
type RouterPlugin interface {
	Plugin
	Mount(r *mux.Router)
}

// DependentPlugin is implemented by plugins that need other plugins
// loaded before them. Dependencies are factory identifiers, loaded
// on demand with an empty descriptor.
type DependentPlugin interface {
	Plugin
	Dependencies() []string
}

// Env is what a factory gets to build its plugin from: the global
// configuration, the descriptor's JSON override fragment, and the
// shared gateway collaborators.
type Env struct {
	Config    *config.Config
	Overrides json.RawMessage
	Client    *directory.Client
	Bus       *hooks.Bus
	Log       *logrus.Logger
}

// DecodeOverrides unmarshals the descriptor's JSON override fragment
// into v. A descriptor without overrides is a no-op.
func (e Env) DecodeOverrides(v interface{}) error {
	if len(e.Overrides) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Overrides, v); err != nil {
		return fmt.Errorf("invalid plugin overrides: %w", err)
	}
	return nil
}

// Factory instantiates a plugin from its environment.
type Factory func(env Env) (Plugin, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory installs a factory under an identifier. Meant to be
// called from init in the package providing the plugin; a duplicate
// identifier panics because it is a programming error, not input.
func RegisterFactory(identifier string, factory Factory) {
	if factory == nil {
		panic("plugin: nil factory for " + identifier)
	}

	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, exists := factories[identifier]; exists {
		panic("plugin: duplicate factory " + identifier)
	}
	factories[identifier] = factory
}

func lookupFactory(identifier string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[identifier]
	return f, ok
}

// Factories lists the registered factory identifiers.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for id := range factories {
		out = append(out, id)
	}
	return out
}
