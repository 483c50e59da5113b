package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"picoyplaca/internal/config"
	"picoyplaca/pkg/logging"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LoggingConfig
	}{
		{name: "json", cfg: config.LoggingConfig{Level: "debug", Format: "json"}},
		{name: "console", cfg: config.LoggingConfig{Level: "warn", Format: "console"}},
		{name: "unknown level falls back", cfg: config.LoggingConfig{Level: "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg, "circulation-service")
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core, "circulation-service").With("component", "rule_cache")

	ctx := logging.WithRequestID(context.Background(), "req-42")
	log.InfowCtx(ctx, "Rule cache invalidated", "city_id", "c-1")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields[string(logging.RequestIDKey)])
	assert.Equal(t, "circulation-service", fields[string(logging.ServiceNameKey)])
	assert.Equal(t, "rule_cache", fields["component"])
	assert.Equal(t, "c-1", fields["city_id"])
}
