package mqtt3

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevelNone, "NONE"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	assert.Equal(t, LogLevelNone, l.Level())

	l.Debug("x", nil)
	l.Info("x", LogFields{"a": 1})
	l.Warn("x", nil)
	l.Error("x", nil)
	assert.Same(t, l, l.WithFields(LogFields{"a": 1}))

	// the level cannot be raised on a logger that writes nothing
	l.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelNone, l.Level())
}

func TestStdLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLogger(&buf, LogLevelInfo)

	l.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	l.Info("connected", LogFields{LogFieldAddress: "tcp://broker:1883"})
	assert.True(t, strings.HasSuffix(buf.String(), "[INFO] connected address=tcp://broker:1883\n"), buf.String())

	buf.Reset()
	child := l.WithFields(LogFields{LogFieldClientID: "c1"})
	child.Warn("connection lost", LogFields{LogFieldError: "EOF"})
	assert.True(t, strings.HasSuffix(buf.String(), "[WARN] connection lost client_id=c1 error=EOF\n"), buf.String())

	buf.Reset()
	l.Error("plain", nil)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(buf.String()), "[ERROR] plain"))

	// derived loggers share the level
	child.SetLevel(LogLevelNone)
	buf.Reset()
	l.Error("silenced", nil)
	assert.Empty(t, buf.String())
	assert.Equal(t, LogLevelNone, l.Level())
}

func TestStdLoggerNestedFields(t *testing.T) {
	var buf bytes.Buffer
	root := NewStdLogger(&buf, LogLevelDebug)

	a := root.WithFields(LogFields{LogFieldClientID: "c1"})
	b := a.WithFields(LogFields{LogFieldAddress: "ws://b"})
	_ = a.WithFields(LogFields{LogFieldTopic: "other"})

	b.Debug("x", nil)
	assert.True(t, strings.HasSuffix(buf.String(), "[DEBUG] x client_id=c1 address=ws://b\n"), buf.String())

	buf.Reset()
	a.Debug("y", nil)
	assert.True(t, strings.HasSuffix(buf.String(), "[DEBUG] y client_id=c1\n"), buf.String())
}

func TestAppendLogfmt(t *testing.T) {
	tests := []struct {
		name     string
		fields   LogFields
		expected string
	}{
		{"none", nil, ""},
		{"sorted", LogFields{"b": 2, "a": 1}, " a=1 b=2"},
		{"error text", LogFields{LogFieldError: "connection reset by peer"}, ` error="connection reset by peer"`},
		{"equals sign", LogFields{"k": "a=b"}, ` k="a=b"`},
		{"quote", LogFields{"k": `say "hi"`}, ` k="say \"hi\""`},
		{"empty", LogFields{"k": ""}, ` k=""`},
		{"state", LogFields{LogFieldState: StateConnected}, " state=connected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(appendLogfmt(nil, tt.fields)))
		})
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), LogLevelInfo)

	l.Debug("hidden", nil)
	assert.Empty(t, buf.String())

	child := l.WithFields(LogFields{LogFieldClientID: "c1"})
	child.Info("action pending", LogFields{LogFieldPacketID: 7, LogFieldPacketType: "PUBLISH"})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "action pending", record["msg"])
	assert.Equal(t, "c1", record["client_id"])
	assert.Equal(t, float64(7), record["packet_id"])
	assert.Equal(t, "PUBLISH", record["packet_type"])

	// derived loggers share the level
	child.SetLevel(LogLevelError)
	assert.Equal(t, LogLevelError, l.Level())

	buf.Reset()
	l.Warn("hidden", nil)
	assert.Empty(t, buf.String())
	l.Error("shown", nil)
	assert.Contains(t, buf.String(), "shown")
}

func TestSlogLoggerLevels(t *testing.T) {
	l := NewSlogLogger(nil, LogLevelDebug)

	for _, level := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError, LogLevelNone} {
		l.SetLevel(level)
		assert.Equal(t, level, l.Level())
	}
}

func TestSlogArgsSorted(t *testing.T) {
	args := slogArgs(LogFields{"b": 2, "a": 1})
	require.Len(t, args, 2)
	assert.Equal(t, "a", args[0].(slog.Attr).Key)
	assert.Equal(t, "b", args[1].(slog.Attr).Key)
	assert.Nil(t, slogArgs(nil))
}
