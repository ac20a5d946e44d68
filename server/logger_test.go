package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	config := NewLoggerConfig()
	config.Level = "warn"
	config.File = filepath.Join(t.TempDir(), "appearance.log")

	logger, err := NewLogger(config)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger.Warn("Rotated log entry")
	_ = logger.Sync()

	data, err := os.ReadFile(config.File)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rotated log entry")
	assert.Contains(t, string(data), `"module":"appearance"`)
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	config := NewLoggerConfig()
	config.Level = "loud"

	_, err := NewLogger(config)
	assert.Error(t, err)
}
