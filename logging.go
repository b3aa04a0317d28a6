package kernel

import (
	"log/slog"
	"os"

	"github.com/joeycumines/logiface"
	logifaceslog "github.com/joeycumines/logiface-slog"
)

// Logger is the structured logging surface the kernel writes through for
// trap dispatch diagnostics, task lifecycle transitions, and worker pool
// events. It wraps logiface's generic Logger so callers can plug in any
// logiface-compatible backend; NewSlogLogger wires up a slog backend.
// Without WithLogger the kernel uses noopLogger, which discards everything.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// logifaceLogger adapts a *logiface.Logger[*logifaceslog.Event] to the
// Logger interface, translating alternating key/value pairs into
// logiface's fluent field builder.
type logifaceLogger struct {
	l *logiface.Logger[*logifaceslog.Event]
}

// NewSlogLogger builds a Logger backed by log/slog via logiface-slog,
// writing through w's handler at the given minimum level.
func NewSlogLogger(w *slog.Logger, level logiface.Level) Logger {
	return &logifaceLogger{
		l: logiface.New[*logifaceslog.Event](
			logifaceslog.NewLogger(w.Handler(), logifaceslog.WithLevel(level)),
		),
	}
}

func (l *logifaceLogger) Debug(msg string, kv ...any) { l.log(logiface.LevelDebug, msg, kv) }
func (l *logifaceLogger) Info(msg string, kv ...any)  { l.log(logiface.LevelInformational, msg, kv) }
func (l *logifaceLogger) Warn(msg string, kv ...any)  { l.log(logiface.LevelWarning, msg, kv) }
func (l *logifaceLogger) Error(msg string, kv ...any) { l.log(logiface.LevelError, msg, kv) }

func (l *logifaceLogger) log(level logiface.Level, msg string, kv []any) {
	b := l.l.Build(level)
	if b == nil {
		return
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		b = b.Any(key, kv[i+1])
	}
	b.Log(msg)
}

// noopLogger discards everything; it is the default when no WithLogger
// option is supplied.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DefaultLogger returns a Logger writing to stderr at info level, suitable
// for cmd/kernelctl and quick experimentation.
func DefaultLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)), logiface.LevelInformational)
}
