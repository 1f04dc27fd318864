package executor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps backend kinds to factories so configuration can build
// any executor by kind string.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// RegisterFactory registers a factory for an executor kind. Empty
// kinds and nil factories are ignored.
func (r *Registry) RegisterFactory(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == "" || factory == nil {
		return
	}
	r.factories[kind] = factory
}

// Create builds an executor of the given kind.
func (r *Registry) Create(kind, name string) (Executor, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotFound, kind)
	}
	return factory(name)
}

// Kinds returns registered kinds sorted for deterministic output.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
