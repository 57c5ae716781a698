package delegate

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores renderers by term type, providing discovery and duplication
// safeguards.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

var _ Store = (*Registry)(nil)

// NewRegistry creates an empty registry instance.
func NewRegistry() *Registry {
	return &Registry{
		renderers: make(map[string]Renderer),
	}
}

// Register adds a renderer for termType. Duplicate types return an error.
func (r *Registry) Register(termType string, renderer Renderer) error {
	if renderer == nil {
		return fmt.Errorf("delegate: renderer is required")
	}
	termType = strings.TrimSpace(termType)
	if termType == "" {
		return fmt.Errorf("delegate: term type is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.renderers[termType]; exists {
		return fmt.Errorf("delegate: renderer for %q already registered", termType)
	}

	r.renderers[termType] = renderer
	return nil
}

// MustRegister panics on registration failure. Useful for init-time wiring.
func (r *Registry) MustRegister(termType string, renderer Renderer) {
	if err := r.Register(termType, renderer); err != nil {
		panic(err)
	}
}

// Replace registers renderer for termType, overwriting any previous entry.
func (r *Registry) Replace(termType string, renderer Renderer) error {
	if renderer == nil {
		return fmt.Errorf("delegate: renderer is required")
	}
	termType = strings.TrimSpace(termType)
	if termType == "" {
		return fmt.Errorf("delegate: term type is required")
	}
	r.mu.Lock()
	r.renderers[termType] = renderer
	r.mu.Unlock()
	return nil
}

// Get retrieves the renderer for termType. Missing entries wrap ErrNotFound.
func (r *Registry) Get(termType string) (Renderer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	renderer, ok := r.renderers[termType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, termType)
	}
	return renderer, nil
}

// MustGet panics if the renderer is missing.
func (r *Registry) MustGet(termType string) Renderer {
	renderer, err := r.Get(termType)
	if err != nil {
		panic(err)
	}
	return renderer
}

// List returns a sorted list of registered term types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a renderer is registered.
func (r *Registry) Has(termType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.renderers[termType]
	return ok
}
