package plugin

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dirgate/dirgate/pkg/observability"
)

// Options controls load ordering. Priority plugins load strictly first,
// sequentially, in list order; the aggregator (when named) loads
// strictly last, after the concurrent phase has settled.
type Options struct {
	Priority   []string
	Aggregator string
}

// Registry instantiates plugins from descriptors and tracks loaded
// instances by final name. Safe for concurrent use; the concurrent
// phase of LoadAll relies on that.
type Registry struct {
	env    Env
	router *mux.Router
	opts   Options
	log    *logrus.Logger

	mu      sync.Mutex
	loaded  map[string]Plugin
	order   []string
	loading map[string]bool
	closed  bool
}

// NewRegistry creates an empty registry. router may be nil when no
// plugin HTTP surface is wanted.
func NewRegistry(env Env, router *mux.Router, opts Options) *Registry {
	log := env.Log
	if log == nil {
		log = logrus.New()
	}
	return &Registry{
		env:     env,
		router:  router,
		opts:    opts,
		log:     log,
		loaded:  make(map[string]Plugin),
		loading: make(map[string]bool),
	}
}

// Get returns a loaded plugin by final name.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.loaded[name]
	return p, ok
}

// Names returns the final names of loaded plugins in load order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count returns the number of loaded plugins.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loaded)
}

// Load parses a descriptor, instantiates the plugin through its factory
// and registers it. Registering under an already-taken final name is a
// logged no-op, not an error.
func (r *Registry) Load(descriptor string) error {
	d, err := ParseDescriptor(descriptor)
	if err != nil {
		return err
	}
	return r.load(d)
}

// Register installs an already-constructed instance under identifier,
// or under alias when non-empty. Returns false without error when the
// final name is already taken. Unregistered declared dependencies are
// loaded first, on demand.
func (r *Registry) Register(identifier string, instance Plugin, alias string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(identifier, instance, alias)
}

// LoadAll loads every descriptor in three phases: the priority list
// strictly sequentially, the remainder concurrently, the aggregator
// strictly last. Any failure is returned and should fail readiness.
func (r *Registry) LoadAll(ctx context.Context, descriptors []string) error {
	parsed := make([]Descriptor, 0, len(descriptors))
	for _, s := range descriptors {
		d, err := ParseDescriptor(s)
		if err != nil {
			return err
		}
		parsed = append(parsed, d)
	}

	var normal, last []Descriptor
	byName := make(map[string][]Descriptor)
	for _, d := range parsed {
		byName[d.Name] = append(byName[d.Name], d)
	}

	// Phase 1: priority plugins, in list order, one at a time.
	prioritized := make(map[string]bool, len(r.opts.Priority))
	for _, name := range r.opts.Priority {
		prioritized[name] = true
		for _, d := range byName[name] {
			if err := r.load(d); err != nil {
				return err
			}
		}
	}

	for _, d := range parsed {
		switch {
		case prioritized[d.Name]:
		case r.opts.Aggregator != "" && d.Name == r.opts.Aggregator:
			last = append(last, d)
		default:
			normal = append(normal, d)
		}
	}

	// Phase 2: independent plugins in parallel.
	g, _ := errgroup.WithContext(ctx)
	for _, d := range normal {
		d := d
		g.Go(func() error {
			return r.load(d)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Phase 3: the aggregator sees every other plugin already loaded.
	for _, d := range last {
		if err := r.load(d); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) load(d Descriptor) error {
	instance, err := r.construct(d)
	if err != nil {
		observability.PluginLoads.WithLabelValues(d.Name, "failed").Inc()
		return err
	}

	registered, err := r.Register(d.Name, instance, d.Alias)
	if err != nil {
		observability.PluginLoads.WithLabelValues(d.Name, "failed").Inc()
		return err
	}
	if !registered {
		observability.PluginLoads.WithLabelValues(d.Name, "duplicate").Inc()
		r.log.WithField("plugin", d.FinalName()).Warn("plugin name already registered, skipping")
		return nil
	}
	observability.PluginLoads.WithLabelValues(d.Name, "loaded").Inc()
	return nil
}

// loadLocked is the dependency-resolution path: the caller already
// holds r.mu.
func (r *Registry) loadLocked(d Descriptor) error {
	instance, err := r.construct(d)
	if err != nil {
		observability.PluginLoads.WithLabelValues(d.Name, "failed").Inc()
		return err
	}
	if _, err := r.registerLocked(d.Name, instance, d.Alias); err != nil {
		observability.PluginLoads.WithLabelValues(d.Name, "failed").Inc()
		return err
	}
	observability.PluginLoads.WithLabelValues(d.Name, "loaded").Inc()
	return nil
}

// construct resolves the factory and instantiates the plugin. A panic
// inside a factory is contained and reported as a construction error.
func (r *Registry) construct(d Descriptor) (Plugin, error) {
	factory, ok := lookupFactory(d.Name)
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q", d.Name)
	}

	env := r.env
	env.Overrides = d.Overrides

	var instance Plugin
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = observability.RecoveredError(rec)
			}
		}()
		instance, err = factory(env)
		return
	}()
	if err != nil {
		return nil, fmt.Errorf("plugin %q construction failed: %w", d.Name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("plugin %q factory returned nil", d.Name)
	}
	return instance, nil
}

func (r *Registry) registerLocked(identifier string, instance Plugin, alias string) (bool, error) {
	final := alias
	if final == "" {
		final = identifier
	}

	if _, exists := r.loaded[final]; exists {
		return false, nil
	}
	if r.loading[final] {
		return false, fmt.Errorf("plugin dependency cycle at %q", final)
	}
	r.loading[final] = true
	defer delete(r.loading, final)

	if dp, ok := instance.(DependentPlugin); ok {
		for _, dep := range dp.Dependencies() {
			if _, exists := r.loaded[dep]; exists {
				continue
			}
			if err := r.loadLocked(Descriptor{Name: dep}); err != nil {
				return false, fmt.Errorf("loading dependency %q of %q: %w", dep, final, err)
			}
		}
	}

	if rp, ok := instance.(RouterPlugin); ok && r.router != nil {
		sub := r.router.PathPrefix("/plugins/" + final + "/").Subrouter()
		rp.Mount(sub)
	}
	r.env.Bus.RegisterAll(final, instance.Hooks())

	r.loaded[final] = instance
	r.order = append(r.order, final)
	r.log.WithField("plugin", final).Info("plugin registered")
	return true, nil
}

// Close shuts down loaded plugins that hold resources, in reverse load
// order. Plugins without a Close method are skipped.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Close once; plugin backends must not see a second Close.
	if r.closed {
		return nil
	}
	r.closed = true

	var firstErr error
	for i := len(r.order) - 1; i >= 0; i-- {
		closer, ok := r.loaded[r.order[i]].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			r.log.WithField("plugin", r.order[i]).WithError(err).Warn("plugin close failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
