package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer("edgeclient")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestStartRequestSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	require.NotNil(t, sm)

	t.Run("creates span with operation name and request id", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := sm.StartRequestSpan(ctx, "send_event", "req-123")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "edgeclient.send_event", s.Name)

		var requestID string
		for _, attr := range s.Attributes {
			if attr.Key == "request.id" {
				requestID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "req-123", requestID)
	})

	t.Run("returns context carrying the span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := sm.StartRequestSpan(ctx, "get_location_hint", "req-456")

		assert.NotEqual(t, ctx, newCtx)

		span.End()
		require.Len(t, exporter.GetSpans(), 1)
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		_, span := sm.StartRequestSpan(context.Background(), "send_event", "req-1")

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		_, span := sm.StartRequestSpan(context.Background(), "send_event", "req-2")
		sm.EndSpanWithError(span, errors.New("hub unavailable"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "hub unavailable", s.Status.Description)

		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, errors.New("x"))
		})
	})
}

func TestAddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := sm.StartRequestSpan(ctx, "send_event", "req-1")

		sm.AddSpanEvent(ctx, "fragment_received",
			attribute.String("handle_type", "personalization:decisions"),
			attribute.Int64("item_count", 2),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		require.NotEmpty(t, spans[0].Events)

		var found bool
		for _, event := range spans[0].Events {
			if event.Name == "fragment_received" {
				found = true
			}
		}
		assert.True(t, found, "expected fragment_received event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(context.Background(), "orphan_event")
		})
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}

	ctx := context.Background()
	newCtx, span := sm.StartRequestSpan(ctx, "send_event", "req-1")
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)
	assert.False(t, span.IsRecording())

	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("ignored"))
		sm.AddSpanEvent(ctx, "ignored")
	})
}
