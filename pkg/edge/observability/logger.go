// Package observability provides structured logging, metrics, and tracing
// for the edge client.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds request context to a logger.
// Returns a new logger with request_id, event_type, and event_source fields.
func EnrichLogger(logger *slog.Logger, requestID, eventType, eventSource string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("request_id", requestID),
		slog.String("event_type", eventType),
		slog.String("event_source", eventSource),
	)
}

// LogDispatch logs an envelope handed to the bus.
func LogDispatch(logger *slog.Logger, requestID, eventType, eventSource string) {
	if logger == nil {
		return
	}
	logger.Debug("envelope dispatched",
		slog.String("request_id", requestID),
		slog.String("event_type", eventType),
		slog.String("event_source", eventSource),
	)
}

// LogValidationFailure logs a request declined before dispatch.
func LogValidationFailure(logger *slog.Logger, operation, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("request declined",
		slog.String("operation", operation),
		slog.String("reason", reason),
	)
}

// LogResponseHandle logs a response fragment routed to a pending request.
func LogResponseHandle(logger *slog.Logger, requestID, handleType string, itemCount int) {
	if logger == nil {
		return
	}
	logger.Debug("response handle received",
		slog.String("request_id", requestID),
		slog.String("handle_type", handleType),
		slog.Int("item_count", itemCount),
	)
}

// LogCompletion logs terminal delivery of a pending request.
func LogCompletion(logger *slog.Logger, requestID string, handleCount int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("request completed",
		slog.String("request_id", requestID),
		slog.Int("handle_count", handleCount),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTimeout logs a pending request evicted without a terminal signal.
func LogTimeout(logger *slog.Logger, requestID string, age time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("pending request timed out",
		slog.String("request_id", requestID),
		slog.Duration("age", age),
	)
}

// LogDispatchError logs a failed bus submission (non-fatal).
func LogDispatchError(logger *slog.Logger, requestID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("dispatch failed",
		slog.String("request_id", requestID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
