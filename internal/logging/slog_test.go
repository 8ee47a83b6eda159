package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger() (*SlogLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), buf
}

func TestSlogLogger_Levels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		log   func(l *SlogLogger)
		level string
	}{
		{"debug", func(l *SlogLogger) { l.Debug(ctx, "msg") }, "DEBUG"},
		{"info", func(l *SlogLogger) { l.Info(ctx, "msg") }, "INFO"},
		{"warn", func(l *SlogLogger) { l.Warn(ctx, "msg") }, "WARN"},
		{"error", func(l *SlogLogger) { l.Error(ctx, "msg") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newBufferLogger()
			tt.log(l)

			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, tt.level, rec["level"])
			assert.Equal(t, "msg", rec["msg"])
		})
	}
}

func TestSlogLogger_With(t *testing.T) {
	l, buf := newBufferLogger()

	child := l.With("module", "orchestrator")
	child.Info(context.Background(), "run finished", "moved", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "orchestrator", rec["module"])
	assert.Equal(t, float64(3), rec["moved"])
}
