package cache

import (
	"maps"
	"slices"
	"sync"
)

// Built-in names understood by NewRegistry.
const (
	PerpetualName    = "perpetual"
	LruName          = "lru"
	FifoName         = "fifo"
	WeakName         = "weak"
	ScheduledName    = "scheduled"
	SerializedName   = "serialized"
	LoggingName      = "logging"
	SynchronizedName = "synchronized"
	BlockingName     = "blocking"
)

// Registry resolves implementation and decorator names used in configuration.
type Registry struct {
	mu              sync.RWMutex
	implementations map[string]Factory
	decorators      map[string]Decorator
}

// NewRegistry returns a registry holding the built-in implementations and decorators.
func NewRegistry() *Registry {
	return &Registry{
		implementations: map[string]Factory{
			PerpetualName: PerpetualFactory,
		},
		decorators: map[string]Decorator{
			LruName:          LruDecorator,
			FifoName:         FifoDecorator,
			WeakName:         WeakDecorator,
			ScheduledName:    ScheduledDecorator,
			SerializedName:   SerializedDecorator,
			LoggingName:      LoggingDecorator,
			SynchronizedName: SynchronizedDecorator,
			BlockingName:     BlockingDecorator,
		},
	}
}

// RegisterImplementation adds or replaces a base cache factory.
func (r *Registry) RegisterImplementation(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.implementations[name] = f
}

// RegisterDecorator adds or replaces a decorator.
func (r *Registry) RegisterDecorator(name string, d Decorator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators[name] = d
}

// Implementation resolves a factory by name.
func (r *Registry) Implementation(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.implementations[name]
	if !ok || f == nil {
		return nil, configErrorf("unknown cache implementation %q", name)
	}
	return f, nil
}

// Decorator resolves a decorator by name.
func (r *Registry) Decorator(name string) (Decorator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decorators[name]
	if !ok || d == nil {
		return nil, configErrorf("unknown cache decorator %q", name)
	}
	return d, nil
}

// Decorators returns the registered decorator names, sorted.
func (r *Registry) Decorators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.decorators))
}
