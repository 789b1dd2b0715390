package sources

import (
	"context"
	"errors"
	"fmt"

	"covid19datasets/internal/table"
)

// Canonical key columns shared by every adapter
const (
	ISOColumn  = "ISO"
	DateColumn = "DATE"
)

var (
	// ErrUpstreamUnavailable is matched by every failure to read an upstream resource
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrSchemaMismatch reports an upstream file missing a declared column
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Source is the contract every upstream dataset satisfies. GetData returns
// a table the caller owns: mutating it never affects later calls.
type Source interface {
	Name() string
	GetData(ctx context.Context, daily bool) (*table.Table, error)
}

// Reloader is implemented by sources that cache their load and can be
// forced to fetch again
type Reloader interface {
	Reload(ctx context.Context) error
}

// UpstreamError describes a failed fetch of an upstream resource
type UpstreamError struct {
	Source   string
	Location string
	Status   int
	Err      error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: fetch %s", e.Source, e.Location)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is matches ErrUpstreamUnavailable
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}
