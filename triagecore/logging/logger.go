// Package logging provides the structured key-value Logger used across the
// triage core, with a slog-backed default implementation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the interface for logging.
type Logger interface {
	Info(msg string, fields ...any)
	Debug(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Bind(fields ...any) Logger
}

// slogLogger implements Logger on top of log/slog.
type slogLogger struct {
	l *slog.Logger
}

// Options configures the default logger.
type Options struct {
	Level      string    // debug, info, warn, error (default info)
	JSONFormat bool      // JSON handler instead of text
	Output     io.Writer // default os.Stderr
}

// New creates a slog-backed Logger writing to stderr by default.
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	switch strings.ToLower(opts.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSONFormat {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return &slogLogger{l: slog.New(handler)}
}

func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

func (s *slogLogger) Bind(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) Bind(...any) Logger { return n }

// Nop returns a Logger that discards all output. Intended for tests.
func Nop() Logger { return nopLogger{} }
