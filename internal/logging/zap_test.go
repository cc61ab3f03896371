package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/sartorproj/goarch/archerr"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "console")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("warn", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewErrors(t *testing.T) {
	_, err := New("info", "xml")
	assert.ErrorIs(t, err, archerr.ErrConfiguration)

	_, err = New("loud", "console")
	assert.ErrorIs(t, err, archerr.ErrConfiguration)
}
