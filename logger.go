package blockstream

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with blockstream-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithStack adds the stack identity to the logger.
func (l *Logger) WithStack(timepoint, setup int) *Logger {
	return &Logger{
		Logger: l.Logger.With("timepoint", timepoint, "setup", setup),
	}
}

// WithComponent adds a component field to the logger.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogFrame logs the outcome of one Update.
func (l *Logger) LogFrame(ctx context.Context, f Frame, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"base_level", f.BaseLevel,
			"error", err,
		)
		return
	}
	if !f.Visible {
		l.DebugContext(ctx, "volume not visible")
		return
	}
	l.DebugContext(ctx, "update completed",
		"base_level", f.BaseLevel,
		"required", f.Required,
		"blocks", f.Blocks,
		"evictions", f.Evictions,
		"needs_repaint", f.NeedsRepaint,
		"duration", f.Duration,
	)
}

// LogStackSwitch logs a SetStack call, or one stack of a SetStacks call.
func (l *Logger) LogStackSwitch(ctx context.Context, timepoint, setup int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stack switch failed",
			"timepoint", timepoint,
			"setup", setup,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "stack switched",
			"timepoint", timepoint,
			"setup", setup,
		)
	}
}
