package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewModesAndLevels(t *testing.T) {
	l, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, l.SugaredLogger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.SugaredLogger.Desugar().Core().Enabled(zapcore.WarnLevel))

	l, err = New("dev", "")
	require.NoError(t, err)
	assert.True(t, l.SugaredLogger.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.SugaredLogger.Desugar().Core().Enabled(zapcore.DebugLevel))

	_, err = New("dev", "loud")
	assert.Error(t, err)
}

func TestLoggerRedactsCredentials(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.Info("storage opened", "driver", "postgres", "postgres_dsn", "postgres://u:p@db/x")
	l.With("secret_access_key", "abc").Warn("blob configured", "bucket", "reports")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "postgres", fields["driver"])
	assert.Equal(t, "[REDACTED]", fields["postgres_dsn"])
	fields = entries[1].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["secret_access_key"])
	assert.Equal(t, "reports", fields["bucket"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded", "k", "v")
	l.Sync()
}
