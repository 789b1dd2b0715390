package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// PipelineMetrics holds the instruments recorded while building datasets
// and serving them
type PipelineMetrics struct {
	BuildsTotal     metric.Int64Counter
	BuildDuration   metric.Float64Histogram
	StepDuration    metric.Float64Histogram
	StepRows        metric.Int64Gauge
	SourceLoads     metric.Int64Counter
	DroppedStrata   metric.Int64Counter
	HTTPRequests    metric.Int64Counter
	HTTPRequestTime metric.Float64Histogram
}

// NewPipelineMetrics creates the pipeline instruments on meter. A nil meter
// yields no-op instruments.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	buildsTotal, err := meter.Int64Counter(
		"combined_builds_total",
		metric.WithDescription("Total number of combined dataset builds"),
	)
	if err != nil {
		return nil, err
	}

	buildDuration, err := meter.Float64Histogram(
		"combined_build_duration_seconds",
		metric.WithDescription("Combined dataset build duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepDuration, err := meter.Float64Histogram(
		"pipeline_step_duration_seconds",
		metric.WithDescription("Pipeline step duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepRows, err := meter.Int64Gauge(
		"pipeline_step_rows",
		metric.WithDescription("Rows in the table produced by a pipeline step"),
	)
	if err != nil {
		return nil, err
	}

	sourceLoads, err := meter.Int64Counter(
		"source_loads_total",
		metric.WithDescription("Total number of upstream source loads"),
	)
	if err != nil {
		return nil, err
	}

	droppedStrata, err := meter.Int64Counter(
		"mortality_dropped_strata_total",
		metric.WithDescription("Stratum-weeks dropped for lack of reference history"),
	)
	if err != nil {
		return nil, err
	}

	httpRequests, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestTime, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		BuildsTotal:     buildsTotal,
		BuildDuration:   buildDuration,
		StepDuration:    stepDuration,
		StepRows:        stepRows,
		SourceLoads:     sourceLoads,
		DroppedStrata:   droppedStrata,
		HTTPRequests:    httpRequests,
		HTTPRequestTime: httpRequestTime,
	}, nil
}

// NoopMetrics returns instruments that record nothing
func NoopMetrics() *PipelineMetrics {
	m, _ := NewPipelineMetrics(nil)
	return m
}

// RecordBuild records the outcome of one dataset build
func (m *PipelineMetrics) RecordBuild(ctx context.Context, duration time.Duration, success bool) {
	attrs := metric.WithAttributes(attribute.String("status", status(success)))
	m.BuildsTotal.Add(ctx, 1, attrs)
	m.BuildDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordStep records one pipeline step
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, duration time.Duration, rows int, success bool) {
	attrs := metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", status(success)),
	)
	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
	if success {
		m.StepRows.Record(ctx, int64(rows), metric.WithAttributes(attribute.String("step", step)))
	}
}

// RecordSourceLoad records one upstream load
func (m *PipelineMetrics) RecordSourceLoad(ctx context.Context, source string, success bool) {
	m.SourceLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", status(success)),
	))
}

// RecordDroppedStrata records stratum-weeks dropped by an estimator
func (m *PipelineMetrics) RecordDroppedStrata(ctx context.Context, provider string, n int) {
	if n == 0 {
		return
	}
	m.DroppedStrata.Add(ctx, int64(n), metric.WithAttributes(attribute.String("provider", provider)))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
