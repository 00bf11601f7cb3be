package edge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/randalmurphal/edgeclient/pkg/edge/bus"
	"github.com/randalmurphal/edgeclient/pkg/edge/config"
	"github.com/randalmurphal/edgeclient/pkg/edge/event"
	"github.com/randalmurphal/edgeclient/pkg/edge/journal"
	"github.com/randalmurphal/edgeclient/pkg/edge/observability"
)

// ExperienceEvent is the caller-facing request shape. XDM carries the
// semantic payload and must be non-empty; Data carries free-form context
// data; DatasetID optionally overrides the destination dataset.
type ExperienceEvent struct {
	XDM       map[string]any
	Data      map[string]any
	DatasetID string
}

// payload serializes the experience event into envelope data.
func (e ExperienceEvent) payload() map[string]any {
	if len(e.XDM) == 0 {
		return nil
	}

	data := map[string]any{event.KeyXDM: e.XDM}
	if len(e.Data) > 0 {
		data[event.KeyData] = e.Data
	}
	if e.DatasetID != "" {
		data[event.KeyDatasetID] = e.DatasetID
	}
	return data
}

// Client submits experience requests over an event bus and delivers
// correlated responses back to callers. Construct with New; a Client owns
// its callback registry and response subscriptions.
type Client struct {
	bus      bus.Bus
	registry *CallbackRegistry
	journal  journal.Store
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	settings config.Settings

	subs   []bus.Subscription
	closed atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpanManager sets the span manager used for request tracing.
func WithSpanManager(s observability.SpanManager) Option {
	return func(c *Client) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithJournal sets the pending-request journal. Envelopes with a
// registered callback are recorded before dispatch and removed on terminal
// resolution; see ReplayJournal. The caller retains ownership and must
// close the store itself.
func WithJournal(store journal.Store) Option {
	return func(c *Client) {
		c.journal = store
	}
}

// WithSettings applies client settings (pending TTL, hint timeout, etc).
func WithSettings(s config.Settings) Option {
	return func(c *Client) {
		c.settings = s
	}
}

// New creates a Client on the given bus and subscribes its response
// handlers.
func New(b bus.Bus, opts ...Option) *Client {
	c := &Client{
		bus:      b,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		settings: config.New(nil).Settings(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.registry = NewCallbackRegistry(c.settings.PendingTTL, c.logger, c.metrics)

	router := &responseRouter{
		registry:   c.registry,
		logger:     c.logger,
		metrics:    c.metrics,
		onComplete: c.clearJournal,
	}

	c.subs = append(c.subs,
		b.Subscribe(event.TypeExperience, event.SourceResponseContent, router.handleResponse),
		b.Subscribe(event.TypeExperience, event.SourceErrorResponse, router.handleError),
		b.Subscribe(event.TypeExperience, event.SourceContentComplete, router.handleComplete),
	)

	return c
}

// SendEvent validates and submits an experience request. When onComplete
// is non-nil it is registered under the new envelope's id and invoked
// exactly once, asynchronously, with the correlated response fragments.
//
// A declined request (nil/empty XDM, empty serialized payload) is logged
// and returned as a *ValidationError; nothing is submitted and no
// registration is created.
func (c *Client) SendEvent(ctx context.Context, exp ExperienceEvent, onComplete CompletionFunc) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	if len(exp.XDM) == 0 {
		observability.LogValidationFailure(c.logger, "send_event", "missing or empty xdm data")
		return &ValidationError{Field: "xdm", Message: "missing or empty xdm data"}
	}

	data := exp.payload()
	if len(data) == 0 {
		observability.LogValidationFailure(c.logger, "send_event", "empty event data")
		return &ValidationError{Field: "data", Message: "empty event data"}
	}

	evt := event.New(event.TypeExperience, event.SourceRequestContent, data)

	ctx, span := c.spans.StartRequestSpan(ctx, "send_event", evt.ID())

	if onComplete != nil {
		c.registry.Register(evt.ID(), onComplete)
		c.recordJournal(evt)
	}

	err := c.bus.Dispatch(ctx, evt)
	c.metrics.RecordDispatch(ctx, evt.Type(), evt.Source(), err)
	c.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogDispatchError(c.logger, evt.ID(), err)
		if onComplete != nil {
			c.clearJournal(evt.ID())
			c.registry.Cancel(evt.ID(), &Error{Code: CodeUnexpected, Message: "dispatch failed", Err: err})
		}
		return err
	}

	observability.LogDispatch(c.logger, evt.ID(), evt.Type(), evt.Source())
	return nil
}

// GetLocationHint queries the current location hint through the bus's
// one-shot response primitive. onResult is invoked exactly once, possibly
// on a different goroutine: with the hint (empty means no hint set), with
// ErrCallbackTimeout when no response arrives in time, or with
// ErrUnexpected when the response lacks the hint key or carries a
// non-string value.
func (c *Client) GetLocationHint(ctx context.Context, onResult HintFunc) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if onResult == nil {
		observability.LogValidationFailure(c.logger, "get_location_hint", "nil callback")
		return &ValidationError{Field: "callback", Message: "a callback is required to receive the location hint"}
	}

	evt := event.New(event.TypeExperience, event.SourceRequestIdentity, map[string]any{
		event.KeyLocationHint: true,
	})

	ctx, span := c.spans.StartRequestSpan(ctx, "get_location_hint", evt.ID())

	err := c.bus.DispatchWithResponse(ctx, evt, c.settings.HintTimeout, func(resp *event.Envelope) {
		if resp == nil {
			onResult("", ErrCallbackTimeout)
			return
		}

		v, ok := resp.Data()[event.KeyLocationHint]
		if !ok {
			onResult("", ErrUnexpected)
			return
		}

		hint, ok := v.(string)
		if !ok {
			if c.logger != nil {
				c.logger.Warn("location hint response value is not a string",
					slog.String("request_id", evt.ID()),
				)
			}
			onResult("", ErrUnexpected)
			return
		}

		// An empty hint is a successful "no hint set" answer.
		onResult(hint, nil)
	})

	c.metrics.RecordDispatch(ctx, evt.Type(), evt.Source(), err)
	c.spans.EndSpanWithError(span, err)

	if err != nil {
		observability.LogDispatchError(c.logger, evt.ID(), err)
		return err
	}

	observability.LogDispatch(c.logger, evt.ID(), evt.Type(), evt.Source())
	return nil
}

// SetLocationHint submits a new location hint, fire-and-forget. An empty
// hint clears the current one. No response is awaited; a submission
// failure is logged and returned.
func (c *Client) SetLocationHint(ctx context.Context, hint string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	evt := event.New(event.TypeExperience, event.SourceUpdateIdentity, map[string]any{
		event.KeyLocationHint: hint,
	})

	err := c.bus.Dispatch(ctx, evt)
	c.metrics.RecordDispatch(ctx, evt.Type(), evt.Source(), err)

	if err != nil {
		observability.LogDispatchError(c.logger, evt.ID(), err)
		return err
	}

	observability.LogDispatch(c.logger, evt.ID(), evt.Type(), evt.Source())
	return nil
}

// ReplayJournal re-dispatches journaled requests that never reached a
// terminal resolution, typically once per process start. Completion
// callbacks do not survive a restart, so replayed requests resolve without
// one; entries are removed when their terminal signal arrives. Entries
// whose re-dispatch fails stay journaled for the next replay.
func (c *Client) ReplayJournal(ctx context.Context) error {
	if c.journal == nil {
		return nil
	}
	if c.closed.Load() {
		return ErrClientClosed
	}

	entries, err := c.journal.Pending()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var evt event.Envelope
		if err := json.Unmarshal(entry.Data, &evt); err != nil {
			if c.logger != nil {
				c.logger.Warn("dropping unreadable journal entry",
					slog.String("request_id", entry.RequestID),
					slog.String("error", err.Error()),
				)
			}
			c.clearJournal(entry.RequestID)
			continue
		}

		if err := c.bus.Dispatch(ctx, &evt); err != nil {
			observability.LogDispatchError(c.logger, entry.RequestID, err)
			continue
		}
		observability.LogDispatch(c.logger, evt.ID(), evt.Type(), evt.Source())
	}

	return nil
}

// Pending returns the number of requests awaiting a terminal signal.
func (c *Client) Pending() int {
	return c.registry.Pending()
}

// Close unsubscribes from the bus and cancels all pending registrations
// with ErrClientClosed. The bus and journal are owned by the caller and
// are not closed. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	for _, sub := range c.subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	c.subs = nil

	c.registry.Close()
	return nil
}

func (c *Client) recordJournal(evt *event.Envelope) {
	if c.journal == nil {
		return
	}

	data, err := json.Marshal(evt)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to serialize envelope for journal",
				slog.String("request_id", evt.ID()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := c.journal.Record(evt.ID(), data); err != nil && c.logger != nil {
		c.logger.Warn("failed to journal request",
			slog.String("request_id", evt.ID()),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) clearJournal(requestID string) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Remove(requestID); err != nil && c.logger != nil {
		c.logger.Warn("failed to clear journal entry",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
	}
}
