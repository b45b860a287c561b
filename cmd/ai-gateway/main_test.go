package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/yamanotatsu/task-master-api/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{"json debug", "debug", "json"},
		{"text info", "info", "text"},
		{"bad level falls back to info", "loud", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Observability: config.ObservabilityConfig{
					LogLevel:  tt.level,
					LogFormat: tt.format,
				},
			}

			logger, err := newLogger(cfg)

			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	cfg := &config.Config{
		Observability: config.ObservabilityConfig{LogLevel: "warn", LogFormat: "json"},
	}

	logger, err := newLogger(cfg)

	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}
