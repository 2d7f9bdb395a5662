package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a structured logger backed by zerolog
type Logger struct {
	zl zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level       string `json:"level" yaml:"level"`
	Output      string `json:"output" yaml:"output"` // "stdout", "stderr", or file path
	Component   string `json:"component" yaml:"component"`
	IncludeFile bool   `json:"include_file" yaml:"include_file"` // Include file and line number
	JSONFormat  bool   `json:"json_format" yaml:"json_format"`   // Output as JSON
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// ParseLevel converts a string to a zerolog level, defaulting to info
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return level
}

// New creates a new logger with the given configuration
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	if cfg.Output == "stderr" {
		output = os.Stderr
	} else if cfg.Output != "" && cfg.Output != "stdout" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	return NewWithWriter(cfg, output)
}

// NewWithWriter builds a logger that writes to w, ignoring cfg.Output
func NewWithWriter(cfg *Config, w io.Writer) *Logger {
	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	if cfg.IncludeFile {
		ctx = ctx.CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 2)
	}

	return &Logger{zl: ctx.Logger()}
}

// Default returns the default logger instance
func Default() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = New(&Config{
			Level:      "info",
			Output:     "stdout",
			Component:  "app",
			JSONFormat: true,
		})
	}
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// Zerolog exposes the underlying logger for components that use the
// zerolog event API directly
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zl
}

// WithComponent returns a new logger with the specified component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithTraceID returns a new logger with the specified trace ID
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{zl: l.zl.With().Str("trace_id", traceID).Logger()}
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{zl: l.zl.With().Fields(fields).Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Err(err).Logger()}
}

// WithDuration returns a new logger with duration field
func (l *Logger) WithDuration(d time.Duration) *Logger {
	return &Logger{zl: l.zl.With().Int64("duration_ms", d.Milliseconds()).Logger()}
}

// log writes one event. args are either key-value pairs or printf arguments.
func (l *Logger) log(ev *zerolog.Event, msg string, args ...interface{}) {
	if ev == nil {
		return
	}

	if len(args) > 0 {
		if _, ok := args[0].(string); ok && len(args)%2 == 0 {
			ev = ev.Fields(args)
		} else {
			msg = fmt.Sprintf(msg, args...)
		}
	}

	ev.Msg(msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(l.zl.Debug(), msg, args...)
}

// Info logs an info message
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(l.zl.Info(), msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(l.zl.Warn(), msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(l.zl.Error(), msg, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log(l.zl.Fatal(), msg, args...)
}

// Package-level functions for default logger

// Debug logs a debug message using the default logger
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}

// Info logs an info message using the default logger
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs a warning message using the default logger
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs an error message using the default logger
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// Fatal logs a fatal message using the default logger
func Fatal(msg string, args ...interface{}) {
	Default().Fatal(msg, args...)
}

// WithComponent returns a new logger with the specified component
func WithComponent(component string) *Logger {
	return Default().WithComponent(component)
}

// WithFields returns a new logger with additional fields
func WithFields(fields map[string]interface{}) *Logger {
	return Default().WithFields(fields)
}

// WithError returns a new logger with an error field
func WithError(err error) *Logger {
	return Default().WithError(err)
}
