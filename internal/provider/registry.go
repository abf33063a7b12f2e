package provider

import (
	"fmt"
	"sync"
)

// Factory constructs a fresh provider instance.
type Factory func() Provider

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a provider available under the given name. Provider
// packages call it from init, so importing a provider package is enough
// to enable it.
func Register(name string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("provider: Register called twice for %s", name))
	}
	factories[name] = f
}

// Registry manages the lifecycle of providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// LoadProvider initializes and registers a provider. Loading the same
// name twice is a no-op. Providers are built in; in the future this
// would load plugins via go-plugin.
func (r *Registry) LoadProvider(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return nil
	}

	factoryMu.RLock()
	f, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown provider: %s", name)
	}

	r.providers[name] = f()
	return nil
}

// Get returns a loaded provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return p, nil
}
