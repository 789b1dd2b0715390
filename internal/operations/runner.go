package operations

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"covid19datasets/internal/infrastructure"
)

// Runner executes the steps of a registry sequentially
type Runner struct {
	registry *Registry
	tracer   trace.Tracer
	metrics  *infrastructure.PipelineMetrics
	logger   *slog.Logger
	classify Classifier
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithTracer sets the tracer used for operation and step spans
func WithTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithMetrics sets the metrics sink for step timings
func WithMetrics(m *infrastructure.PipelineMetrics) RunnerOption {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClassifier sets how step failures are typed
func WithClassifier(c Classifier) RunnerOption {
	return func(r *Runner) {
		if c != nil {
			r.classify = c
		}
	}
}

// NewRunner creates a runner over registry
func NewRunner(registry *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		tracer:   noop.NewTracerProvider().Tracer(infrastructure.TracerName),
		metrics:  infrastructure.NoopMetrics(),
		logger:   slog.Default(),
		classify: DefaultClassifier,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every registered step in order against state. The first
// failing step stops the run; its error is returned as an *OperationError.
func (r *Runner) Run(ctx context.Context, state *OperationState) error {
	steps := r.registry.List()
	if len(steps) == 0 {
		return ErrEmptyRegistry
	}

	ctx, span := r.tracer.Start(ctx, "operation.run",
		trace.WithAttributes(
			attribute.String("operation.id", state.ID),
			attribute.Int("operation.steps", len(steps)),
		))
	defer span.End()

	logger := r.logger.With(slog.String("operation_id", state.ID))
	state.Start()
	logger.InfoContext(ctx, "operation started", slog.Int("steps", len(steps)))

	for _, step := range steps {
		if err := r.runStep(ctx, logger, step, state); err != nil {
			state.Fail(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.ErrorContext(ctx, "operation failed",
				slog.String("step", step.ID()),
				slog.String("error_type", string(err.Type)),
				slog.String("error", err.Error()),
				slog.Duration("duration", state.Duration()))
			return err
		}
	}

	state.Complete()
	span.SetStatus(codes.Ok, "")
	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", state.Duration()))
	return nil
}

func (r *Runner) runStep(ctx context.Context, logger *slog.Logger, step Step, state *OperationState) *OperationError {
	ctx, span := r.tracer.Start(ctx, "step."+step.ID(),
		trace.WithAttributes(attribute.String("step.name", step.Name())))
	defer span.End()

	ss := NewStepState(step.ID(), step.Name())
	state.AddStep(ss)

	if err := ctx.Err(); err != nil {
		ss.Fail(err)
		return NewCancellationError(step.ID(), err)
	}

	if err := step.Validate(state); err != nil {
		ss.Fail(err)
		span.RecordError(err)
		return WrapError(err, step.ID(), func(error) ErrorType { return ErrorTypeValidation })
	}

	ss.Start()
	start := time.Now()
	err := step.Execute(ctx, state)
	duration := time.Since(start)
	rows := state.Rows(step.ID())
	r.metrics.RecordStep(ctx, step.ID(), duration, rows, err == nil)

	if err != nil {
		ss.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return WrapError(err, step.ID(), r.classify)
	}

	ss.Complete(rows)
	span.SetAttributes(attribute.Int("step.rows", rows))
	logger.DebugContext(ctx, "step completed",
		slog.String("step", step.ID()),
		slog.Int("rows", rows),
		slog.Duration("duration", duration))
	return nil
}
