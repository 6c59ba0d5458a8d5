package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"distance-matrix-batch/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("row failed", "cause", "network")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "row failed", rec["msg"])
	assert.Equal(t, "network", rec["cause"])
}

func TestNewPretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.Log{Pretty: true, Level: "debug"}, &buf)
	require.NoError(t, err)

	logger.Debug("timing", "op", "google.Route")
	assert.Contains(t, buf.String(), "op=google.Route")
}

func TestParseLogLevel(t *testing.T) {
	level, err := parseLogLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, level)

	level, err = parseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = parseLogLevel("verbose")
	assert.Error(t, err)
}
