// Package logger configures the process-wide slog logger and provides
// helpers for component- and run-scoped child loggers.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type requestIDKey struct{}
type runIDKey struct{}

// Setup installs the default slog logger with the given level and output
// format ("json" or "text").
func Setup(level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithRequestID stores an HTTP request id in the context for FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// WithRunID stores a batch-run id in the context for FromContext. Every
// ingestion or rebuild run gets one so its log lines can be correlated.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// FromContext returns the default logger enriched with any request or run id
// carried by ctx.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		logger = logger.With("request_id", requestID)
	}
	if runID, ok := ctx.Value(runIDKey{}).(string); ok {
		logger = logger.With("run_id", runID)
	}
	return logger
}

// RequestIDFromContext returns the HTTP request id carried by ctx, if any.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// RunIDFromContext returns the batch-run id carried by ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	runID, _ := ctx.Value(runIDKey{}).(string)
	return runID
}

// WithComponent returns a child logger tagged with the component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
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
