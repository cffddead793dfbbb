// Package executor dispatches validated actions to their handlers and
// records the outcome in the audit trail.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrHandlerNotFound reports an action that cleared validation but has no
// handler registered to run it.
var ErrHandlerNotFound = errors.New("no handler registered for action")

// Handler performs an action after it has cleared validation. The returned
// map becomes the result payload visible to the caller.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registry maps action names to handlers. Registration normally happens at
// startup, but the registry is safe for concurrent use so handlers can be
// swapped in tests.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register binds a handler to an action name, replacing any previous binding.
func (r *Registry) Register(action string, h Handler) error {
	if action == "" {
		return fmt.Errorf("action name is empty")
	}
	if h == nil {
		return fmt.Errorf("handler for %q is nil", action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
	return nil
}

// Get looks up the handler for an action.
func (r *Registry) Get(action string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[action]
	return h, ok
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
