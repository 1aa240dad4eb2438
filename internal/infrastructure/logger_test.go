package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amtest/internal/config"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "harness.log")

	logger, closeLog, err := NewLogger(config.LoggingConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Info("hello", slog.String("component", "test"))
	require.NoError(t, closeLog())

	assert.FileExists(t, logPath)
}

func TestTraceIDFlowsIntoRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&traceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	ctx := WithTraceID(context.Background(), "run-123")
	logger.InfoContext(ctx, "traced")
	logger.Info("untraced")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var traced, untraced map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &traced))
	require.NoError(t, json.Unmarshal(lines[1], &untraced))

	assert.Equal(t, "run-123", traced["trace_id"])
	assert.NotContains(t, untraced, "trace_id")
}

func TestNewTraceContextGeneratesUniqueIDs(t *testing.T) {
	a := TraceID(NewTraceContext(context.Background()))
	b := TraceID(NewTraceContext(context.Background()))

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
