package operations

import (
	"sync"
	"time"
)

// OperationStatus represents the overall operation status
type OperationStatus string

const (
	OperationStatusPending   OperationStatus = "pending"
	OperationStatusRunning   OperationStatus = "running"
	OperationStatusCompleted OperationStatus = "completed"
	OperationStatusFailed    OperationStatus = "failed"
	OperationStatusCancelled OperationStatus = "cancelled"
)

// OperationState represents the state of one operation run
type OperationState struct {
	mu sync.RWMutex

	ID        string
	Status    OperationStatus
	StartTime time.Time
	EndTime   *time.Time
	Error     error

	steps []*StepState
	rows  map[string]int

	// context passes data between steps
	context map[string]any
}

// NewOperationState creates a new operation state
func NewOperationState(id string) *OperationState {
	return &OperationState{
		ID:        id,
		Status:    OperationStatusPending,
		StartTime: time.Now(),
		rows:      make(map[string]int),
		context:   make(map[string]any),
	}
}

// Start marks the operation as running
func (p *OperationState) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = OperationStatusRunning
	p.StartTime = time.Now()
}

// Complete marks the operation as completed
func (p *OperationState) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusCompleted
}

// Fail marks the operation as failed, or cancelled for cancellation errors
func (p *OperationState) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.EndTime = &now
	p.Status = OperationStatusFailed
	if GetErrorType(err) == ErrorTypeCancellation {
		p.Status = OperationStatusCancelled
	}
	p.Error = err
}

// AddStep records the state of a step about to run
func (p *OperationState) AddStep(s *StepState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps = append(p.steps, s)
}

// GetStep returns the state of a step, nil if it has not run
func (p *OperationState) GetStep(id string) *StepState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SetRows records the size of the table a step produced
func (p *OperationState) SetRows(stepID string, rows int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows[stepID] = rows
}

// Rows returns the size recorded by a step
func (p *OperationState) Rows(stepID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rows[stepID]
}

// GetContext retrieves a value from the operation context
func (p *OperationState) GetContext(key string) (any, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	val, ok := p.context[key]
	return val, ok
}

// SetContext sets a value in the operation context
func (p *OperationState) SetContext(key string, value any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.context[key] = value
}

// Duration returns the duration of the operation execution
func (p *OperationState) Duration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.EndTime != nil {
		return p.EndTime.Sub(p.StartTime)
	}
	return time.Since(p.StartTime)
}

// Summary returns a serialisable snapshot of the run
func (p *OperationState) Summary() Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	sum := Summary{
		ID:        p.ID,
		Status:    p.Status,
		StartTime: p.StartTime,
		Steps:     make([]StepSummary, 0, len(p.steps)),
	}
	if p.EndTime != nil {
		sum.Duration = p.EndTime.Sub(p.StartTime).String()
	}
	if p.Error != nil {
		sum.Error = p.Error.Error()
	}
	for _, s := range p.steps {
		sum.Steps = append(sum.Steps, s.snapshot())
	}
	return sum
}
