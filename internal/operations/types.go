package operations

import "time"

// Summary is the serialisable view of an operation run
type Summary struct {
	ID        string          `json:"id"`
	Status    OperationStatus `json:"status"`
	StartTime time.Time       `json:"start_time"`
	Duration  string          `json:"duration,omitempty"`
	Steps     []StepSummary   `json:"steps"`
	Error     string          `json:"error,omitempty"`
}

// StepSummary is the serialisable view of one step
type StepSummary struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   StepStatus `json:"status"`
	Duration string     `json:"duration,omitempty"`
	Rows     int        `json:"rows"`
	Error    string     `json:"error,omitempty"`
}
