package operations

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type of operation error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUpstream     ErrorType = "upstream"
	ErrorTypeIntegrity    ErrorType = "integrity"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeInvalidState ErrorType = "invalid_state"
)

// OperationError represents a step-specific error
type OperationError struct {
	Type    ErrorType      `json:"type"`
	Step    string         `json:"step,omitempty"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a new validation error
func NewValidationError(step, message string) *OperationError {
	return &OperationError{
		Type:    ErrorTypeValidation,
		Step:    step,
		Message: message,
	}
}

// NewExecutionError creates a new execution error
func NewExecutionError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeExecution,
		Step:    step,
		Message: "step execution failed",
		Cause:   cause,
	}
}

// NewCancellationError creates a new cancellation error
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{
		Type:    ErrorTypeCancellation,
		Step:    step,
		Message: "operation was cancelled",
		Cause:   cause,
	}
}

// GetErrorType returns the type of the first OperationError in err's
// chain, ErrorTypeExecution for other errors
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ""
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ErrorTypeExecution
}

// Classifier maps a step failure to an ErrorType
type Classifier func(err error) ErrorType

// DefaultClassifier recognises context cancellation and deadlines
func DefaultClassifier(err error) ErrorType {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeCancellation
	}
	return ErrorTypeExecution
}

// WrapError wraps a step failure with operation context. An OperationError
// is returned as is, with its step filled in when missing.
func WrapError(err error, step string, classify Classifier) *OperationError {
	if err == nil {
		return nil
	}

	var opErr *OperationError
	if errors.As(err, &opErr) {
		if opErr.Step == "" {
			opErr.Step = step
		}
		return opErr
	}

	if classify == nil {
		classify = DefaultClassifier
	}
	typ := classify(err)
	if typ == ErrorTypeExecution && DefaultClassifier(err) == ErrorTypeCancellation {
		typ = ErrorTypeCancellation
	}

	message := "step execution failed"
	switch typ {
	case ErrorTypeCancellation:
		message = "operation was cancelled"
	case ErrorTypeUpstream:
		message = "upstream source unavailable"
	case ErrorTypeIntegrity:
		message = "data integrity violated"
	case ErrorTypeValidation:
		message = "invalid input"
	}
	return &OperationError{Type: typ, Step: step, Message: message, Cause: err}
}

// ErrEmptyRegistry is returned when running a registry with no steps
var ErrEmptyRegistry = &OperationError{
	Type:    ErrorTypeInvalidState,
	Message: "no steps registered",
}
