package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"aegisnet/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Named("ingest").Info("alert raised", zap.String("agent_id", "web-1"))
	logger.Debug("hidden")
	require.NoError(t, logger.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "alert raised", entry["message"])
	assert.Equal(t, "ingest", entry["logger"])
	assert.Equal(t, "web-1", entry["agent_id"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aegisnet.log")
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{
		Level:      "debug",
		Format:     "console",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("window closed")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"window closed"`)
	assert.Contains(t, buf.String(), "window closed")
}

func TestSetLevelAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	child := logger.Named("detectors")
	child.Info("dropped")
	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	child.Debug("kept")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
	assert.Error(t, logger.SetLevel("loud"))
}

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json"})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)
}
