package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const RequestIDKey ctxKey = "requestId"

// New builds a logger for a service. level accepts logrus names
// (debug, info, warn, error); unknown values fall back to info.
func New(level string, json bool) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, json)
}

func NewWithOutput(out io.Writer, level string, json bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05",
		})
	}
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel is lenient: "" and unknown names mean info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// WithLevel returns a copy of base sharing its output, formatter and hooks
// but logging at level. Used for per-invocation verbose logging.
func WithLevel(base *logrus.Logger, level logrus.Level) *logrus.Logger {
	if base.GetLevel() == level {
		return base
	}
	return &logrus.Logger{
		Out:          base.Out,
		Hooks:        base.Hooks,
		Formatter:    base.Formatter,
		ReportCaller: base.ReportCaller,
		Level:        level,
		ExitFunc:     base.ExitFunc,
	}
}

func For(ctx context.Context, base *logrus.Logger) *logrus.Entry {
	id, ok := ctx.Value(RequestIDKey).(string)
	if !ok {
		return logrus.NewEntry(base)
	}
	return base.WithField("request_id", id)
}

type entryKey struct{}

// NewContext attaches an invocation's log entry so the clients it calls log
// with the same fields and level.
func NewContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, entryKey{}, entry)
}

// FromContext returns the entry stored by NewContext, or one built on
// fallback.
func FromContext(ctx context.Context, fallback *logrus.Logger) *logrus.Entry {
	if e, ok := ctx.Value(entryKey{}).(*logrus.Entry); ok {
		return e
	}
	return For(ctx, fallback)
}

func ContextWithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// Track logs the duration of an operation when the returned func runs.
// Anything slower than 500ms is a warning.
func Track(entry *logrus.Entry, msg string) func() {
	start := time.Now()
	return func() {
		dur := time.Since(start)
		e := entry.WithField("duration", dur.String())

		if dur > 500*time.Millisecond {
			e.Warnf("%s completed (SLOW)", msg)
		} else {
			e.Debugf("%s completed", msg)
		}
	}
}
