package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a context carrying lg, retrievable by the package-level
// Debug/Info/Warn/Error functions below.
func WithLogger(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the Logger attached to ctx, or a discarding Logger if
// none was attached with WithLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return discard{}
}

// contextSkip accounts for the extra frame these package functions add
// relative to the Logger methods they delegate to.
const contextSkip = 4

func logFromContext(ctx context.Context, level slog.Level, msg string, args []any) {
	lg := FromContext(ctx)
	if sl, ok := lg.(*slogLogger); ok {
		sl.record(level, contextSkip, msg, args)
		return
	}
	switch level {
	case slog.LevelDebug:
		lg.Debug(msg, args...)
	case slog.LevelWarn:
		lg.Warn(msg, args...)
	case slog.LevelError:
		lg.Error(msg, args...)
	default:
		lg.Info(msg, args...)
	}
}

// Debug logs at debug level using the Logger bound to ctx.
func Debug(ctx context.Context, msg string, args ...any) { logFromContext(ctx, slog.LevelDebug, msg, args) }

// Info logs at info level using the Logger bound to ctx.
func Info(ctx context.Context, msg string, args ...any) { logFromContext(ctx, slog.LevelInfo, msg, args) }

// Warn logs at warn level using the Logger bound to ctx.
func Warn(ctx context.Context, msg string, args ...any) { logFromContext(ctx, slog.LevelWarn, msg, args) }

// Error logs at error level using the Logger bound to ctx.
func Error(ctx context.Context, msg string, args ...any) { logFromContext(ctx, slog.LevelError, msg, args) }

// Debugf logs a formatted debug message using the Logger bound to ctx.
func Debugf(ctx context.Context, format string, args ...any) {
	logFromContext(ctx, slog.LevelDebug, fmt.Sprintf(format, args...), nil)
}

// Infof logs a formatted info message using the Logger bound to ctx.
func Infof(ctx context.Context, format string, args ...any) {
	logFromContext(ctx, slog.LevelInfo, fmt.Sprintf(format, args...), nil)
}

// Warnf logs a formatted warn message using the Logger bound to ctx.
func Warnf(ctx context.Context, format string, args ...any) {
	logFromContext(ctx, slog.LevelWarn, fmt.Sprintf(format, args...), nil)
}

// Errorf logs a formatted error message using the Logger bound to ctx.
func Errorf(ctx context.Context, format string, args ...any) {
	logFromContext(ctx, slog.LevelError, fmt.Sprintf(format, args...), nil)
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}
func (discard) Errorf(string, ...any) {}
func (d discard) With(...any) Logger       { return d }
func (d discard) WithGroup(string) Logger  { return d }
