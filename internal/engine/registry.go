package engine

import (
	"fmt"
	"sync"

	"github.com/robertjbass/spindb/internal/enum"
)

// Creator builds an Adapter for one engine tag.
type Creator func() (Adapter, error)

// Registry is a map-based, concurrency-safe dispatch table from engine
// tag to adapter constructor, grounded on the teacher's
// internal/runner/registry.go RWMutex-guarded map pattern.
type Registry struct {
	mu       sync.RWMutex
	creators map[enum.Engine]Creator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{creators: map[enum.Engine]Creator{}}
}

// Register associates an engine tag with a Creator. Re-registering the
// same tag overwrites the previous entry (used by tests to inject fakes).
func (r *Registry) Register(e enum.Engine, creator Creator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creators[e] = creator
}

// Create dispatches to the registered Creator for e.
func (r *Registry) Create(e enum.Engine) (Adapter, error) {
	r.mu.RLock()
	creator, ok := r.creators[e]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no adapter registered for engine %q", e)
	}
	return creator()
}

// Registered reports whether e has a registered Creator.
func (r *Registry) Registered(e enum.Engine) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.creators[e]
	return ok
}
