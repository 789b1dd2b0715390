package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

// GenerateTraceID creates a new unique trace ID using UUID v4
func GenerateTraceID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return traceID
	}
	return ""
}

// EnsureTraceID ensures the context has a trace ID, generating one if needed
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		return WithTraceID(ctx, GenerateTraceID())
	}
	return ctx
}

// WithBuildID tags the context with the ID of a dataset build
func WithBuildID(ctx context.Context, buildID string) context.Context {
	return context.WithValue(ctx, BuildIDContextKey, buildID)
}

// GetBuildID retrieves the build ID from context
func GetBuildID(ctx context.Context) string {
	if id, ok := ctx.Value(BuildIDContextKey).(string); ok {
		return id
	}
	return ""
}
