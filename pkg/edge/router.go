package edge

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/edgeclient/pkg/edge/event"
	"github.com/randalmurphal/edgeclient/pkg/edge/observability"
)

// handleTypeError tags fragments synthesized from error responses whose
// payload carried no handle type of its own.
const handleTypeError = "error"

// responseRouter feeds bus deliveries into the callback registry. It runs
// on bus-owned goroutines; all its handlers tolerate malformed envelopes by
// treating them as non-matching.
type responseRouter struct {
	registry   *CallbackRegistry
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	onComplete func(requestID string)
}

// requestIDOf extracts the originating request id from a response envelope,
// preferring the explicit payload key over the response pairing field.
func requestIDOf(evt *event.Envelope) string {
	if evt == nil {
		return ""
	}
	if id, ok := evt.Data()[event.KeyRequestID].(string); ok && id != "" {
		return id
	}
	return evt.ResponseID()
}

// handleResponse routes one response fragment to its pending request.
func (r *responseRouter) handleResponse(ctx context.Context, evt *event.Envelope) {
	if !event.IsResponseContent(evt) {
		return
	}

	requestID := requestIDOf(evt)
	if requestID == "" {
		if r.logger != nil {
			r.logger.Debug("response envelope without request id ignored",
				slog.String("event_id", evt.ID()),
			)
		}
		return
	}

	handle, ok := event.HandleFromData(evt.Data())
	if !ok {
		if r.logger != nil {
			r.logger.Debug("malformed response payload ignored",
				slog.String("request_id", requestID),
			)
		}
		return
	}

	r.registry.ResolveFragment(requestID, handle)
	r.metrics.RecordResponseHandle(ctx, handle.Type)
	observability.LogResponseHandle(r.logger, requestID, handle.Type, len(handle.Payload))
}

// handleError records an error response as an error-tagged fragment so the
// caller sees it in the terminal result.
func (r *responseRouter) handleError(ctx context.Context, evt *event.Envelope) {
	if !event.IsErrorResponse(evt) {
		return
	}

	requestID := requestIDOf(evt)
	if requestID == "" {
		return
	}

	handle, ok := event.HandleFromData(evt.Data())
	if !ok {
		handle = event.Handle{Type: handleTypeError}
	}

	if r.logger != nil {
		r.logger.Warn("error response received",
			slog.String("request_id", requestID),
			slog.String("handle_type", handle.Type),
		)
	}

	r.registry.ResolveFragment(requestID, handle)
	r.metrics.RecordResponseHandle(ctx, handle.Type)
}

// handleComplete delivers the terminal signal for a request.
func (r *responseRouter) handleComplete(_ context.Context, evt *event.Envelope) {
	if !event.IsContentComplete(evt) {
		return
	}

	requestID := requestIDOf(evt)
	if requestID == "" {
		return
	}

	r.registry.Complete(requestID)
	if r.onComplete != nil {
		r.onComplete(requestID)
	}
}
