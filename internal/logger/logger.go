// Package logger provides structured logging for the engine, wrapping
// log/slog with JSON/text handler selection driven by config.
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/workflowkit/engine/internal/config"
)

// Logger wraps slog.Logger with the engine's own construction conventions.
type Logger struct {
	logger *slog.Logger
}

// New creates a Logger from the logging section of the engine's config.
func New(cfg config.LoggingConfig) *Logger {
	level := parseLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.Level == "debug",
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &Logger{logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a Logger with the given attributes attached to every entry.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...interface{})  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...interface{}) {
	l.logger.DebugContext(ctx, msg, args...)
}
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...interface{}) {
	l.logger.InfoContext(ctx, msg, args...)
}
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...interface{}) {
	l.logger.WarnContext(ctx, msg, args...)
}
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...interface{}) {
	l.logger.ErrorContext(ctx, msg, args...)
}
