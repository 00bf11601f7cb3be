package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for assertions.
type testHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *testHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *testHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *testHandler) WithGroup(_ string) slog.Handler      { return h }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

func (h *testHandler) last() slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.records[len(h.records)-1]
}

func attrsOf(r slog.Record) map[string]any {
	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	return attrs
}

func TestNilLoggerSafety(t *testing.T) {
	// Every helper must tolerate a nil logger without panicking.
	assert.Nil(t, EnrichLogger(nil, "id", "type", "source"))
	LogDispatch(nil, "id", "type", "source")
	LogValidationFailure(nil, "send_event", "reason")
	LogResponseHandle(nil, "id", "personalization:decisions", 1)
	LogCompletion(nil, "id", 2, 10.0)
	LogTimeout(nil, "id", time.Second)
	LogDispatchError(nil, "id", errors.New("boom"))
}

func TestEnrichLogger(t *testing.T) {
	h := &testHandler{}
	logger := EnrichLogger(slog.New(h), "req-1", "experience.edge", "request.content")
	require.NotNil(t, logger)

	logger.Info("hello")

	require.Equal(t, 1, h.count())
	// With-attrs are attached by the handler chain; the enriched logger must
	// still route through the original handler.
	assert.Equal(t, "hello", h.last().Message)
}

func TestLogDispatch(t *testing.T) {
	h := &testHandler{}
	LogDispatch(slog.New(h), "req-1", "experience.edge", "request.content")

	require.Equal(t, 1, h.count())
	r := h.last()
	assert.Equal(t, slog.LevelDebug, r.Level)

	attrs := attrsOf(r)
	assert.Equal(t, "req-1", attrs["request_id"])
	assert.Equal(t, "experience.edge", attrs["event_type"])
	assert.Equal(t, "request.content", attrs["event_source"])
}

func TestLogValidationFailure(t *testing.T) {
	h := &testHandler{}
	LogValidationFailure(slog.New(h), "send_event", "missing or empty xdm data")

	require.Equal(t, 1, h.count())
	r := h.last()
	assert.Equal(t, slog.LevelWarn, r.Level)

	attrs := attrsOf(r)
	assert.Equal(t, "send_event", attrs["operation"])
	assert.Equal(t, "missing or empty xdm data", attrs["reason"])
}

func TestLogCompletion(t *testing.T) {
	h := &testHandler{}
	LogCompletion(slog.New(h), "req-1", 3, 42.0)

	require.Equal(t, 1, h.count())
	attrs := attrsOf(h.last())
	assert.Equal(t, "req-1", attrs["request_id"])
	assert.EqualValues(t, 3, attrs["handle_count"])
}

func TestLogTimeout(t *testing.T) {
	h := &testHandler{}
	LogTimeout(slog.New(h), "req-1", 5*time.Minute)

	require.Equal(t, 1, h.count())
	assert.Equal(t, slog.LevelWarn, h.last().Level)
}

func TestTimedOperation(t *testing.T) {
	elapsed := TimedOperation()
	time.Sleep(10 * time.Millisecond)

	ms := elapsed()
	assert.GreaterOrEqual(t, ms, 10.0)
	assert.Less(t, ms, 5000.0)
}
