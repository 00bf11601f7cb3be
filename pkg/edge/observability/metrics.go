package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records edge client metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records an envelope submission with its error status.
	RecordDispatch(ctx context.Context, eventType, eventSource string, err error)

	// RecordResponseHandle records a response fragment routed to a pending request.
	RecordResponseHandle(ctx context.Context, handleType string)

	// RecordCompletion records terminal delivery of a pending request.
	RecordCompletion(ctx context.Context, handleCount int, duration time.Duration)

	// RecordTimeout records a pending request evicted without a terminal signal.
	RecordTimeout(ctx context.Context)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches        metric.Int64Counter
	dispatchErrors    metric.Int64Counter
	responseHandles   metric.Int64Counter
	completions       metric.Int64Counter
	completionLatency metric.Float64Histogram
	timeouts          metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("edgeclient")

	dispatches, err := meter.Int64Counter("edgeclient.dispatches",
		metric.WithDescription("Number of envelopes submitted to the bus"),
	)
	if err != nil {
		return nil, err
	}

	dispatchErrors, err := meter.Int64Counter("edgeclient.dispatch.errors",
		metric.WithDescription("Number of failed bus submissions"),
	)
	if err != nil {
		return nil, err
	}

	responseHandles, err := meter.Int64Counter("edgeclient.response.handles",
		metric.WithDescription("Number of response handles routed to pending requests"),
	)
	if err != nil {
		return nil, err
	}

	completions, err := meter.Int64Counter("edgeclient.completions",
		metric.WithDescription("Number of pending requests completed"),
	)
	if err != nil {
		return nil, err
	}

	completionLatency, err := meter.Float64Histogram("edgeclient.completion.latency_ms",
		metric.WithDescription("Time from registration to terminal delivery in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	timeouts, err := meter.Int64Counter("edgeclient.timeouts",
		metric.WithDescription("Number of pending requests evicted without a terminal signal"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:        dispatches,
		dispatchErrors:    dispatchErrors,
		responseHandles:   responseHandles,
		completions:       completions,
		completionLatency: completionLatency,
		timeouts:          timeouts,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records an envelope submission.
func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType, eventSource string, err error) {
	attrs := metric.WithAttributes(
		attribute.String("event.type", eventType),
		attribute.String("event.source", eventSource),
	)
	m.dispatches.Add(ctx, 1, attrs)
	if err != nil {
		m.dispatchErrors.Add(ctx, 1, attrs)
	}
}

// RecordResponseHandle records a routed response fragment.
func (m *otelMetrics) RecordResponseHandle(ctx context.Context, handleType string) {
	m.responseHandles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("handle.type", handleType),
	))
}

// RecordCompletion records terminal delivery of a pending request.
func (m *otelMetrics) RecordCompletion(ctx context.Context, handleCount int, duration time.Duration) {
	m.completions.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("handle.count", handleCount),
	))
	m.completionLatency.Record(ctx, float64(duration.Milliseconds()))
}

// RecordTimeout records an evicted pending request.
func (m *otelMetrics) RecordTimeout(ctx context.Context) {
	m.timeouts.Add(ctx, 1)
}
