package hooks

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dirgate/dirgate/pkg/observability"
)

// Gateway-level notify hooks. The HTTP boundary dispatches these so
// subscribers (the audit trail in particular) see authentication and
// authorization outcomes without depending on the middleware.
const (
	// HookAuthSuccess args: strategy name, principal.
	HookAuthSuccess = "authsuccess"
	// HookAuthFailure args: remote address.
	HookAuthFailure = "authfailure"
	// HookAccessDenied args: operation, entry DN.
	HookAccessDenied = "accessdenied"
)

// Args is the positional argument list a hook handler receives and, for
// transform chains, returns. The meaning of each slot is fixed per hook
// name (see pkg/directory for the directory-operation hooks).
type Args []interface{}

// Handler is a single hook handler. For NotifyAll dispatch the returned
// Args are ignored; for TransformChain they feed the next handler.
type Handler func(ctx context.Context, args Args) (Args, error)

// Registration ties a handler to the plugin that installed it, in
// registration order.
type Registration struct {
	Name    string
	Plugin  string
	Handler Handler
}

// Bus is a named, ordered handler registry. Safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Registration
	log      *logrus.Logger
}

// NewBus creates an empty hook bus.
func NewBus(log *logrus.Logger) *Bus {
	if log == nil {
		log = logrus.New()
	}
	return &Bus{
		handlers: make(map[string][]Registration),
		log:      log,
	}
}

// Register appends a handler under a hook name. Order of registration
// determines both notify and transform execution order.
func (b *Bus) Register(name, plugin string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], Registration{
		Name:    name,
		Plugin:  plugin,
		Handler: handler,
	})
}

// RegisterAll merges a plugin's hook map into the bus, appending each
// handler under its hook name.
func (b *Bus) RegisterAll(plugin string, hookMap map[string]Handler) {
	for name, handler := range hookMap {
		b.Register(name, plugin, handler)
	}
}

// Handlers returns the registrations for a hook name, in order.
func (b *Bus) Handlers(name string) []Registration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	regs := b.handlers[name]
	out := make([]Registration, len(regs))
	copy(out, regs)
	return out
}

// Count returns the number of handlers registered under a hook name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// NotifyAll invokes every handler registered under name in order.
// Handler errors are logged and never abort the remaining handlers; the
// caller's arguments are never transformed.
func (b *Bus) NotifyAll(ctx context.Context, name string, args Args) {
	observability.HookDispatches.WithLabelValues(name, "notify").Inc()
	for _, reg := range b.Handlers(name) {
		if _, err := reg.Handler(ctx, args); err != nil {
			b.log.WithFields(logrus.Fields{
				"hook":   name,
				"plugin": reg.Plugin,
			}).WithError(err).Warn("hook handler failed")
		}
	}
}

// TransformChain invokes every handler registered under name in order,
// feeding each handler the previous handler's output. The first handler
// error aborts the chain and is returned to the caller together with
// the arguments as transformed so far.
func (b *Bus) TransformChain(ctx context.Context, name string, args Args) (Args, error) {
	observability.HookDispatches.WithLabelValues(name, "transform").Inc()
	for _, reg := range b.Handlers(name) {
		next, err := reg.Handler(ctx, args)
		if err != nil {
			return args, err
		}
		args = next
	}
	return args, nil
}
