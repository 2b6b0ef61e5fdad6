// Package logger implements the logging adapter using log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"

	"go.trai.ch/mason/internal/core/ports"
)

var _ ports.Logger = (*Logger)(nil)

// Logger implements ports.Logger on top of a slog text handler.
type Logger struct {
	logger *slog.Logger
}

// New creates a logger writing to stderr at the given verbosity: 0 warns
// and up, 1 adds info, 2 and above adds debug.
func New(verbosity int) *Logger {
	return NewWriter(os.Stderr, verbosity)
}

// NewWriter creates a logger writing to w.
func NewWriter(w io.Writer, verbosity int) *Logger {
	level := slog.LevelWarn
	switch {
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{logger: slog.New(handler)}
}

// Debug logs a high-verbosity diagnostic message.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a warning.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs a failure.
func (l *Logger) Error(err error) {
	l.logger.Error("operation failed", "error", err)
}
