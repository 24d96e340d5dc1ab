// Package logger wraps a process-wide logrus logger.  Every helper takes a
// context so that the request id attached by the HTTP layer is stamped on
// each entry.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
)

// RequestIDField is the entry field carrying the request id.
const RequestIDField = "request_id"

type ctxKey struct{}

var (
	log     = newLogger(os.Stdout)
	newline = regexp.MustCompile(`(\n)|(\r\n)`)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	return l
}

// Init sets the log level by name ("debug", "info", ...).  Unknown names
// keep the current level.
func Init(level string) {
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) { log.SetOutput(w) }

// WithRequestID returns a child context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id stored in ctx, or "-".
func RequestID(ctx context.Context) string {
	if ctx != nil {
		if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
			return v
		}
	}
	return "-"
}

func entry(ctx context.Context) *logrus.Entry {
	return log.WithField(RequestIDField, RequestID(ctx))
}

// WithFields returns an entry with the request id and the given fields.
func WithFields(ctx context.Context, fields logrus.Fields) *logrus.Entry {
	return entry(ctx).WithFields(fields)
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Debug(escape(format, args...))
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Warnf(format, args...)
}

// Errorf logs on a single line; embedded newlines are escaped.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Error(escape(format, args...))
}

func Fatalf(ctx context.Context, format string, args ...interface{}) {
	entry(ctx).Fatalf(format, args...)
}

func escape(format string, args ...interface{}) string {
	return newline.ReplaceAllString(fmt.Sprintf(format, args...), "\\n ")
}
