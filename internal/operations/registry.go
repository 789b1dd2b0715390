package operations

import (
	"fmt"
	"sync"
)

// Registry holds the steps of an operation in execution order
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
	order []string
}

// NewRegistry creates a registry holding steps, in order
func NewRegistry(steps ...Step) (*Registry, error) {
	r := &Registry{steps: make(map[string]Step, len(steps))}
	for _, s := range steps {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends a step. IDs must be unique and non-empty.
func (r *Registry) Register(step Step) error {
	if step == nil {
		return fmt.Errorf("cannot register nil step")
	}
	id := step.ID()
	if id == "" {
		return fmt.Errorf("step ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.steps[id]; exists {
		return fmt.Errorf("step %s already registered", id)
	}
	r.steps[id] = step
	r.order = append(r.order, id)
	return nil
}

// Get retrieves a step by ID
func (r *Registry) Get(id string) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, ok := r.steps[id]
	if !ok {
		return nil, &OperationError{Type: ErrorTypeNotFound, Step: id, Message: "step not registered"}
	}
	return step, nil
}

// List returns the steps in registration order
func (r *Registry) List() []Step {
	r.mu.RLock()
	defer r.mu.RUnlock()

	steps := make([]Step, 0, len(r.order))
	for _, id := range r.order {
		steps = append(steps, r.steps[id])
	}
	return steps
}

// IDs returns the step IDs in registration order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered steps
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
