package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestObservedLogger_WithFieldsCarriesContext(t *testing.T) {
	log, logs := NewObservedLogger(zapcore.DebugLevel)

	scoped := log.WithFields(map[string]interface{}{"component": "wizard"})
	scoped.Warn("step save failed", map[string]interface{}{
		"reportId": int64(7),
		"error":    errors.New("boom"),
	})

	entries := logs.FilterMessage("step save failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "wizard", ctx["component"])
	assert.Equal(t, int64(7), ctx["reportId"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestObservedLogger_LevelFiltering(t *testing.T) {
	log, logs := NewObservedLogger(zapcore.InfoLevel)

	log.Debug("hidden", nil)
	log.Info("shown", nil)

	assert.Equal(t, 1, logs.Len())
}

func TestNewWithOutput_FallsBackOnBadPath(t *testing.T) {
	l := NewWithOutput("info", "json", "/nonexistent-dir/sub/app.log")
	require.NotNil(t, l)
	l.Info("still usable")
}
