package contextkeys

import (
	"context"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

type loggerKeyType struct{}

var loggerKey = loggerKeyType{}

func ContextWithLogger(ctx context.Context, logger port.LoggerPort) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger stored in ctx, or one that discards
// everything.
func LoggerFromContext(ctx context.Context) port.LoggerPort {
	if logger, ok := ctx.Value(loggerKey).(port.LoggerPort); ok {
		return logger
	}
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Info(msg string, fields port.Fields)             {}
func (noopLogger) Warn(msg string, fields port.Fields)             {}
func (noopLogger) Error(msg string, err error, fields port.Fields) {}
func (noopLogger) Debug(msg string, fields port.Fields)            {}
func (n noopLogger) WithFields(fields port.Fields) port.LoggerPort { return n }
