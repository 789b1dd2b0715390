package infrastructure

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid19datasets/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitTelemetryPrometheus(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	providers, err := InitTelemetry(cfg, discardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)
	metrics.RecordBuild(context.Background(), 2*time.Second, true)
	metrics.RecordStep(context.Background(), "interventions", time.Second, 42, true)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "combined_builds")
	assert.Contains(t, rec.Body.String(), "pipeline_step_rows")
}

func TestInitTelemetryDisabled(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	providers, err := InitTelemetry(cfg, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Tracer)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitTelemetryUnsupportedExporter(t *testing.T) {
	cfg := config.Default().Telemetry
	cfg.MetricExporter = "statsd"

	_, err := InitTelemetry(cfg, discardLogger())
	assert.Error(t, err)
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics()
	require.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.RecordSourceLoad(context.Background(), "hmd", false)
		m.RecordDroppedStrata(context.Background(), "hmd", 3)
	})
}
