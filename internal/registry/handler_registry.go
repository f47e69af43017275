package registry

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Run carries one execution request to a handler. Config is the job's
// opaque configuration document, already decoded.
type Run struct {
	TaskID string
	Now    time.Time
	Config map[string]any
}

// HandlerFunc executes one job run and returns a short human-readable
// summary for the run history.
type HandlerFunc func(ctx context.Context, run Run) (string, error)

// Registry maps handler IDs to handlers. It is constructed explicitly
// and injected into the scheduler; there is no package-level registry.
type Registry struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
	}
}

// Register adds a handler by ID.
func (r *Registry) Register(id string, handler HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[id]; exists {
		return fmt.Errorf("handler '%s' already registered", id)
	}
	r.handlers[id] = handler
	return nil
}

// Lookup returns the handler registered under id.
func (r *Registry) Lookup(id string) (HandlerFunc, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handler, exists := r.handlers[id]
	return handler, exists
}

// List returns the registered handler IDs.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	return ids
}
