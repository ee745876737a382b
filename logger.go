package mqtt3

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug is the debug log level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the info log level.
	LogLevelInfo
	// LogLevelWarn is the warn log level.
	LogLevelWarn
	// LogLevelError is the error log level.
	LogLevelError
	// LogLevelNone disables all logging.
	LogLevelNone
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// LogFields represents key-value pairs for structured logging.
type LogFields map[string]any

// Logger defines the interface for logging.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, fields LogFields)

	// Info logs an info message.
	Info(msg string, fields LogFields)

	// Warn logs a warning message.
	Warn(msg string, fields LogFields)

	// Error logs an error message.
	Error(msg string, fields LogFields)

	// WithFields returns a new logger with the given fields added.
	WithFields(fields LogFields) Logger

	// Level returns the current log level.
	Level() LogLevel

	// SetLevel sets the log level.
	SetLevel(level LogLevel)
}

// NoOpLogger discards everything. Its level is fixed at LogLevelNone.
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards everything.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (*NoOpLogger) Debug(string, LogFields)       {}
func (*NoOpLogger) Info(string, LogFields)        {}
func (*NoOpLogger) Warn(string, LogFields)        {}
func (*NoOpLogger) Error(string, LogFields)       {}
func (n *NoOpLogger) WithFields(LogFields) Logger { return n }
func (*NoOpLogger) Level() LogLevel               { return LogLevelNone }
func (*NoOpLogger) SetLevel(LogLevel)             {}

// StdLogger writes one logfmt-style line per record through a *log.Logger:
//
//	2024/05/01 10:00:00 [WARN] connection lost address=tcp://broker:1883 error=EOF
//
// Keys are sorted; values containing spaces, quotes or '=' are quoted.
// Loggers derived with WithFields share the level of their parent.
type StdLogger struct {
	logger *log.Logger
	level  *atomic.Int32
	prefix []byte
}

// NewStdLogger creates a logger writing to w, or to os.Stderr when w is nil.
func NewStdLogger(w io.Writer, level LogLevel) *StdLogger {
	if w == nil {
		w = os.Stderr
	}
	s := &StdLogger{logger: log.New(w, "", log.LstdFlags), level: new(atomic.Int32)}
	s.SetLevel(level)
	return s
}

func (s *StdLogger) Debug(msg string, fields LogFields) { s.log(LogLevelDebug, msg, fields) }
func (s *StdLogger) Info(msg string, fields LogFields)  { s.log(LogLevelInfo, msg, fields) }
func (s *StdLogger) Warn(msg string, fields LogFields)  { s.log(LogLevelWarn, msg, fields) }
func (s *StdLogger) Error(msg string, fields LogFields) { s.log(LogLevelError, msg, fields) }

// WithFields returns a logger that renders fields on every line after the
// fields of s.
func (s *StdLogger) WithFields(fields LogFields) Logger {
	return &StdLogger{
		logger: s.logger,
		level:  s.level,
		prefix: appendLogfmt(slices.Clip(s.prefix), fields),
	}
}

// Level returns the current log level.
func (s *StdLogger) Level() LogLevel {
	return LogLevel(s.level.Load())
}

// SetLevel sets the log level.
func (s *StdLogger) SetLevel(level LogLevel) {
	s.level.Store(int32(level))
}

func (s *StdLogger) log(level LogLevel, msg string, fields LogFields) {
	if level < s.Level() {
		return
	}

	line := make([]byte, 0, 64+len(s.prefix))
	line = append(line, '[')
	line = append(line, level.String()...)
	line = append(line, "] "...)
	line = append(line, msg...)
	line = append(line, s.prefix...)
	line = appendLogfmt(line, fields)
	s.logger.Print(string(line))
}

// appendLogfmt appends " key=value" for every field in key order.
func appendLogfmt(b []byte, fields LogFields) []byte {
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		b = append(b, ' ')
		b = append(b, k...)
		b = append(b, '=')

		v := fmt.Sprint(fields[k])
		if v == "" || strings.ContainsAny(v, " =\"\t\n") {
			b = strconv.AppendQuote(b, v)
		} else {
			b = append(b, v...)
		}
	}
	return b
}

// SlogLogger adapts a *slog.Logger to the Logger interface.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewSlogLogger creates a Logger writing through l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger, level LogLevel) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	s := &SlogLogger{logger: l, level: new(slog.LevelVar)}
	s.SetLevel(level)
	return s
}

// Debug logs a debug message.
func (s *SlogLogger) Debug(msg string, fields LogFields) {
	s.log(slog.LevelDebug, msg, fields)
}

// Info logs an info message.
func (s *SlogLogger) Info(msg string, fields LogFields) {
	s.log(slog.LevelInfo, msg, fields)
}

// Warn logs a warning message.
func (s *SlogLogger) Warn(msg string, fields LogFields) {
	s.log(slog.LevelWarn, msg, fields)
}

// Error logs an error message.
func (s *SlogLogger) Error(msg string, fields LogFields) {
	s.log(slog.LevelError, msg, fields)
}

// WithFields returns a new logger with the given fields added.
func (s *SlogLogger) WithFields(fields LogFields) Logger {
	return &SlogLogger{
		logger: s.logger.With(slogArgs(fields)...),
		level:  s.level,
	}
}

// Level returns the current log level.
func (s *SlogLogger) Level() LogLevel {
	switch lvl := s.level.Level(); {
	case lvl > slog.LevelError:
		return LogLevelNone
	case lvl >= slog.LevelError:
		return LogLevelError
	case lvl >= slog.LevelWarn:
		return LogLevelWarn
	case lvl >= slog.LevelInfo:
		return LogLevelInfo
	default:
		return LogLevelDebug
	}
}

// SetLevel sets the log level. Loggers derived with WithFields share it.
func (s *SlogLogger) SetLevel(level LogLevel) {
	switch level {
	case LogLevelDebug:
		s.level.Set(slog.LevelDebug)
	case LogLevelInfo:
		s.level.Set(slog.LevelInfo)
	case LogLevelWarn:
		s.level.Set(slog.LevelWarn)
	case LogLevelError:
		s.level.Set(slog.LevelError)
	default:
		s.level.Set(slog.LevelError + 4)
	}
}

func (s *SlogLogger) log(level slog.Level, msg string, fields LogFields) {
	if level < s.level.Level() {
		return
	}
	s.logger.Log(context.Background(), level, msg, slogArgs(fields)...)
}

func slogArgs(fields LogFields) []any {
	if len(fields) == 0 {
		return nil
	}

	args := make([]any, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, slog.Any(k, fields[k]))
	}
	return args
}

// Standard field names for client logging.
const (
	// LogFieldClientID is the client ID field.
	LogFieldClientID = "client_id"

	// LogFieldAddress is the broker address field.
	LogFieldAddress = "address"

	// LogFieldState is the connection state field.
	LogFieldState = "state"

	// LogFieldTopic is the topic field.
	LogFieldTopic = "topic"

	// LogFieldPacketID is the packet ID field.
	LogFieldPacketID = "packet_id"

	// LogFieldPacketType is the packet type field.
	LogFieldPacketType = "packet_type"

	// LogFieldQoS is the QoS field.
	LogFieldQoS = "qos"

	// LogFieldReturnCode is the CONNACK return code field.
	LogFieldReturnCode = "return_code"

	// LogFieldError is the error field.
	LogFieldError = "error"

	// LogFieldCode is the transport close code field.
	LogFieldCode = "code"
)
