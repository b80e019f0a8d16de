package chain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/machinepulse/machinepulse/internal/stage"
)

// Registry maps stage type names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]stage.Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]stage.Factory)}
}

// Register binds a factory to a type name. Re-registering a name replaces
// the previous factory.
func (r *Registry) Register(name string, f stage.Factory) error {
	if name == "" {
		return fmt.Errorf("register: empty stage type name")
	}
	if f == nil {
		return fmt.Errorf("register %q: nil factory", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	return nil
}

// Unregister removes a type name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Lookup returns the factory for a type name.
func (r *Registry) Lookup(name string) (stage.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
