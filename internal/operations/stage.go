package operations

import (
	"context"
	"sync"
	"time"
)

// Step is one unit of work in an operation
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Execute runs the step. Steps exchange data through the state.
	Execute(ctx context.Context, state *OperationState) error

	// Validate checks that the state holds what the step needs
	Validate(state *OperationState) error
}

// StepStatus represents the current status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// StepState represents the runtime state of a step
type StepState struct {
	mu        sync.RWMutex
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    StepStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Rows      int        `json:"rows"`
	Error     string     `json:"error,omitempty"`
}

// NewStepState creates a pending step state
func NewStepState(id, name string) *StepState {
	return &StepState{ID: id, Name: name, Status: StepStatusPending}
}

// Start marks the step as active
func (s *StepState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = &now
	s.Status = StepStatusActive
}

// Complete marks the step as completed with the size of what it produced
func (s *StepState) Complete(rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusCompleted
	s.Rows = rows
}

// Fail marks the step as failed
func (s *StepState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.EndTime = &now
	s.Status = StepStatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// GetStatus returns the current status
func (s *StepState) GetStatus() StepStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// Duration returns the duration of the step execution
func (s *StepState) Duration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.StartTime == nil {
		return 0
	}
	if s.EndTime != nil {
		return s.EndTime.Sub(*s.StartTime)
	}
	return time.Since(*s.StartTime)
}

func (s *StepState) snapshot() StepSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := StepSummary{ID: s.ID, Name: s.Name, Status: s.Status, Rows: s.Rows, Error: s.Error}
	if s.StartTime != nil && s.EndTime != nil {
		sum.Duration = s.EndTime.Sub(*s.StartTime).String()
	}
	return sum
}

// ExecuteFunc is the body of a FuncStep
type ExecuteFunc func(ctx context.Context, state *OperationState) (rows int, err error)

// FuncStep adapts a function to the Step interface
type FuncStep struct {
	id       string
	name     string
	requires []string
	fn       ExecuteFunc
}

// NewStep creates a step running fn. The step is invalid unless every key
// in requires is present in the operation context.
func NewStep(id, name string, fn ExecuteFunc, requires ...string) *FuncStep {
	return &FuncStep{id: id, name: name, fn: fn, requires: requires}
}

// ID returns the step ID
func (f *FuncStep) ID() string { return f.id }

// Name returns the step name
func (f *FuncStep) Name() string { return f.name }

// Validate checks that the required context keys are present
func (f *FuncStep) Validate(state *OperationState) error {
	for _, key := range f.requires {
		if _, ok := state.GetContext(key); !ok {
			return NewValidationError(f.id, "missing input "+key)
		}
	}
	return nil
}

// Execute runs the function and records the produced row count
func (f *FuncStep) Execute(ctx context.Context, state *OperationState) error {
	rows, err := f.fn(ctx, state)
	if err != nil {
		return err
	}
	state.SetRows(f.id, rows)
	return nil
}
