package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a reader to
// collect metrics from.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumOf(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum data")

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}

func TestRecordDispatch(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDispatch(ctx, "experience.edge", "request.content", nil)
	m.RecordDispatch(ctx, "experience.edge", "request.content", errors.New("hub unavailable"))

	rm := collectMetrics(t, reader)

	dispatches := findMetric(rm, "edgeclient.dispatches")
	require.NotNil(t, dispatches)
	assert.Equal(t, int64(2), sumOf(t, dispatches))

	dispatchErrors := findMetric(rm, "edgeclient.dispatch.errors")
	require.NotNil(t, dispatchErrors)
	assert.Equal(t, int64(1), sumOf(t, dispatchErrors))
}

func TestRecordResponseHandle(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordResponseHandle(ctx, "personalization:decisions")
	m.RecordResponseHandle(ctx, "identity:exchange")

	rm := collectMetrics(t, reader)

	handles := findMetric(rm, "edgeclient.response.handles")
	require.NotNil(t, handles)
	assert.Equal(t, int64(2), sumOf(t, handles))
}

func TestRecordCompletion(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordCompletion(context.Background(), 2, 150*time.Millisecond)

	rm := collectMetrics(t, reader)

	completions := findMetric(rm, "edgeclient.completions")
	require.NotNil(t, completions)
	assert.Equal(t, int64(1), sumOf(t, completions))

	latency := findMetric(rm, "edgeclient.completion.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected float64 histogram data")
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestRecordTimeout(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordTimeout(context.Background())

	rm := collectMetrics(t, reader)

	timeouts := findMetric(rm, "edgeclient.timeouts")
	require.NotNil(t, timeouts)
	assert.Equal(t, int64(1), sumOf(t, timeouts))
}

func TestNoopMetricsDoesNothing(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordDispatch(ctx, "experience.edge", "request.content", errors.New("x"))
		m.RecordResponseHandle(ctx, "personalization:decisions")
		m.RecordCompletion(ctx, 1, time.Second)
		m.RecordTimeout(ctx)
	})
}
