package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Development(t *testing.T) {
	log := New("development", "debug", "test-service")
	require.NotNil(t, log)

	assert.True(t, log.Core().Enabled(zap.DebugLevel))
	log.Debug("debug message", zap.String("component", "test"))
}

func TestNew_ProductionDefaultsToInfo(t *testing.T) {
	log := New("production", "verbose", "test-service")
	require.NotNil(t, log)

	assert.False(t, log.Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Core().Enabled(zap.InfoLevel))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	log := zap.NewExample()
	assert.Same(t, log, OrNop(log))
}
