package logging

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

type contextKey int

var loggerKey = contextKey(0)

var ErrNoLoggerInContext = errors.New("no logger in context")

func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

func LoggerFromContext(ctx context.Context) (*zap.Logger, error) {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger, nil
	}

	return nil, ErrNoLoggerInContext
}

// FromContext is like LoggerFromContext but falls back to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, err := LoggerFromContext(ctx); err == nil {
		return logger
	}

	return zap.NewNop()
}
