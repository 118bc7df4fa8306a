package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		expectErr bool
		enabled   zapcore.Level
	}{
		{name: "info level", level: "info", enabled: zapcore.InfoLevel},
		{name: "debug level", level: "debug", enabled: zapcore.DebugLevel},
		{name: "warn level", level: "warn", enabled: zapcore.WarnLevel},
		{name: "invalid level", level: "loud", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Initialize(tt.level)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer Sync()

			assert.True(t, Logger.Core().Enabled(tt.enabled))
			assert.False(t, Logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestFor(t *testing.T) {
	require.NoError(t, Initialize("info"))
	defer Sync()

	l := For("state")
	assert.NotNil(t, l)
	l.Info("scoped logger works")
}
