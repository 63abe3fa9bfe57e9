package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowline-dev/flowline/pkg/ports"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line, "expected a log entry")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "debug", Writer: &buf, Component: "engine"})
	require.NoError(t, err)

	logger.Info(context.Background(), "pipeline started", "pipeline", "demo", "steps", 3)

	entry := decodeLine(t, &buf)
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "pipeline started", entry["message"])
	require.Equal(t, "engine", entry["component"])
	require.Equal(t, "demo", entry["pipeline"])
	require.EqualValues(t, 3, entry["steps"])
	require.Contains(t, entry, "time")
}

func TestLoggerIncludesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	ctx := ports.WithCorrelationID(context.Background(), "run-123")
	logger.Warn(ctx, "slow step")

	entry := decodeLine(t, &buf)
	require.Equal(t, "run-123", entry["correlation_id"])
}

func TestLoggerRendersErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	logger.Error(context.Background(), "step failed", "error", errors.New("boom"))

	entry := decodeLine(t, &buf)
	require.Equal(t, "boom", entry["error"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Debug(context.Background(), "invisible")
	logger.Info(context.Background(), "also invisible")
	require.Empty(t, buf.String())

	logger.Warn(context.Background(), "visible")
	require.NotEmpty(t, buf.String())
}

func TestLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "shouty"})
	require.Error(t, err)
}

func TestLoggerWithDerivesChild(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Writer: &buf})
	require.NoError(t, err)

	child := logger.With("pipeline", "demo")
	child.Info(context.Background(), "from child")

	entry := decodeLine(t, &buf)
	require.Equal(t, "demo", entry["pipeline"])
}

func TestNoOpLoggerDiscardsEverything(t *testing.T) {
	logger := NewNoOpLogger()
	ctx := context.Background()
	logger.Debug(ctx, "a")
	logger.Info(ctx, "b")
	logger.Warn(ctx, "c")
	logger.Error(ctx, "d")
	require.NotNil(t, logger.With("k", "v"))
}
