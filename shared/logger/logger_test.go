package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.level))
		})
	}
}

func TestJSONHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	l := &Logger{Logger: slog.New(handler)}

	l.Debug("test debug message", slog.String("key", "value"))

	var entry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "test debug message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Contains(t, entry, "time")
}

func TestInfoLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	l := &Logger{Logger: slog.New(handler)}

	l.Debug("should be dropped")
	assert.Empty(t, buf.String())

	l.Info("should be logged")
	assert.Contains(t, buf.String(), "should be logged")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{})
	l := &Logger{Logger: slog.New(handler)}

	child := l.With("service", "fileforge-api")
	child.Info("hello")

	var entry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)
	assert.Equal(t, "fileforge-api", entry["service"])
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	require.NotNil(t, l.Logger)
}
