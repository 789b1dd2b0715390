package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"covid19datasets/internal/config"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, closer, err := NewLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: logFile,
	})
	require.NoError(t, err)

	logger.Info("test message", "key", "value")
	logger.Debug("hidden")
	require.NoError(t, closer.Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(content), []byte("\n"))
	require.Len(t, lines, 1, "debug must be filtered at info level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNewLoggerRejectsEmptyFilePath(t *testing.T) {
	_, _, err := NewLogger(config.LoggingConfig{Output: "file"})
	assert.Error(t, err)
}

func TestContextCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	ctx := WithBuildID(WithTraceID(context.Background(), "trace-1"), "build-1")
	WithComponent(logger, "combined").InfoContext(ctx, "built")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "build-1", entry["build_id"])
	assert.Equal(t, "combined", entry["component"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
	assert.Empty(t, GetBuildID(ctx))
}
