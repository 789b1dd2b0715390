package http

import (
	"context"

	"covid19datasets/internal/operations"
	"covid19datasets/internal/table"
)

// DatasetService is the part of combined.Dataset the handlers use
type DatasetService interface {
	Load(ctx context.Context, forceLoad bool) (*table.Table, error)
	Table() (*table.Table, error)
	LastBuild() *operations.Summary
}

// MortalitySource is an excess mortality provider served by name
type MortalitySource interface {
	Name() string
	GetData(ctx context.Context, daily bool) (*table.Table, error)
}
