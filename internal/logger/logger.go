// Package logger provides the structured logger used by every actor in the
// runtime. It wraps log/slog so callers get leveled, source-annotated output
// without depending on slog directly, and composes with slog-multi when a
// verbose run also wants a copy of its log lines on disk.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// Logger is the logging contract used throughout the codebase. Each method
// records the call site of its own caller, not of the Logger implementation,
// so log lines point at the actor code that emitted them.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	// With returns a Logger that attaches the given key/value pairs to every
	// subsequent record.
	With(args ...any) Logger
	// WithGroup returns a Logger that nests subsequent attributes under name.
	WithGroup(name string) Logger
}

// Option configures a Logger built by NewLogger.
type Option func(*options)

type options struct {
	debug  bool
	format string
	writer io.Writer
	quiet  bool
}

// WithDebug enables debug-level logging and source-location annotations.
func WithDebug() Option { return func(o *options) { o.debug = true } }

// WithFormat selects "text" (default) or "json" record encoding.
func WithFormat(format string) Option { return func(o *options) { o.format = format } }

// WithWriter directs log output to w instead of stderr.
func WithWriter(w io.Writer) Option { return func(o *options) { o.writer = w } }

// WithQuiet suppresses the stderr destination when combined with WithWriter,
// so tests can assert on a single buffer's contents.
func WithQuiet() Option { return func(o *options) { o.quiet = true } }

// NewLogger builds a Logger from the given options. With no options it logs
// info-and-above text records to stderr.
func NewLogger(opts ...Option) Logger {
	o := options{format: "text", writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}

	if !o.quiet && o.writer != os.Stderr {
		fanout := slogmulti.Fanout(handlerFor(o.format, o.writer, level, o.debug), handlerFor(o.format, os.Stderr, level, o.debug))
		return &slogLogger{handler: fanout}
	}

	h := handlerFor(o.format, o.writer, level, o.debug)
	return &slogLogger{handler: h}
}

// WithHandlers builds a Logger that fans out to every given handler,
// grounded on samber/slog-multi's Fanout combinator. The CLI does not call
// it; its logger is built by NewLogger.
func WithHandlers(level slog.Level, handlers ...slog.Handler) Logger {
	switch len(handlers) {
	case 0:
		return &slogLogger{handler: slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})}
	case 1:
		return &slogLogger{handler: handlers[0]}
	default:
		return &slogLogger{handler: slogmulti.Fanout(handlers...)}
	}
}

func handlerFor(format string, w io.Writer, level slog.Level, addSource bool) slog.Handler {
	hopts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	if format == "json" {
		return slog.NewJSONHandler(w, hopts)
	}
	return slog.NewTextHandler(w, hopts)
}

type slogLogger struct {
	handler slog.Handler
}

// record captures the call site skip frames above itself and emits a log
// record at level. Every public entry point — the Logger methods here and
// the context-bound functions in context.go — must be exactly skip frames
// below the original caller for the source annotation to land correctly.
func (l *slogLogger) record(level slog.Level, skip int, msg string, args []any) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.handler.Handle(ctx, r)
}

const directSkip = 3

func (l *slogLogger) Debug(msg string, args ...any) { l.record(slog.LevelDebug, directSkip, msg, args) }
func (l *slogLogger) Info(msg string, args ...any)  { l.record(slog.LevelInfo, directSkip, msg, args) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.record(slog.LevelWarn, directSkip, msg, args) }
func (l *slogLogger) Error(msg string, args ...any) { l.record(slog.LevelError, directSkip, msg, args) }

func (l *slogLogger) Debugf(format string, args ...any) {
	l.record(slog.LevelDebug, directSkip, fmt.Sprintf(format, args...), nil)
}

func (l *slogLogger) Infof(format string, args ...any) {
	l.record(slog.LevelInfo, directSkip, fmt.Sprintf(format, args...), nil)
}

func (l *slogLogger) Warnf(format string, args ...any) {
	l.record(slog.LevelWarn, directSkip, fmt.Sprintf(format, args...), nil)
}

func (l *slogLogger) Errorf(format string, args ...any) {
	l.record(slog.LevelError, directSkip, fmt.Sprintf(format, args...), nil)
}

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{handler: l.handler.WithAttrs(argsToAttrs(args))}
}

func (l *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{handler: l.handler.WithGroup(name)}
}

func argsToAttrs(args []any) []slog.Attr {
	r := slog.NewRecord(time.Time{}, slog.LevelInfo, "", 0)
	r.Add(args...)
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}
