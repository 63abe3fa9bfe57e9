package engine

import (
	"sort"
	"sync"

	"github.com/flowline-dev/flowline/pkg/pipeline"
)

// Registry stores built pipelines by name. It is an explicitly constructed
// object passed to whatever orchestrates pipelines; there is no
// process-wide static state in the engine.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[string]*Pipeline
}

// NewRegistry creates an empty pipeline registry.
func NewRegistry() *Registry {
	return &Registry{
		pipelines: make(map[string]*Pipeline),
	}
}

// Register stores a pipeline keyed by its name.
func (r *Registry) Register(p *Pipeline) error {
	if p == nil {
		return pipeline.NewValidationError("pipeline is nil", nil)
	}
	if p.Name() == "" {
		return pipeline.NewValidationError("pipeline name is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pipelines[p.Name()]; exists {
		return pipeline.NewDuplicateError(p.Name())
	}
	r.pipelines[p.Name()] = p
	return nil
}

// Get retrieves a pipeline by name.
func (r *Registry) Get(name string) (*Pipeline, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.pipelines[name]
	if !ok {
		return nil, pipeline.NewNotFoundError("pipeline", name)
	}
	return p, nil
}

// Remove drops a pipeline from the registry. Removing an unknown name is a
// no-op.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pipelines, name)
}

// Names returns the registered pipeline names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.pipelines))
	for name := range r.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
