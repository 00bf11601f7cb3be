// Package event defines the envelope exchanged over the event hub and the
// classification helpers used to route it.
//
// Envelopes are immutable once created - the payload map is copied at
// construction and must not be mutated by handlers. Classification is done
// with pure predicate functions over type, source, and payload; a predicate
// never returns an error, a malformed envelope simply does not match.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types. Type is the coarse classification of an envelope.
const (
	TypeExperience = "experience.edge"
	TypeConsent    = "experience.consent"
	TypeIdentity   = "experience.identity"
)

// Event sources. Source is the fine-grained classification within a type.
const (
	SourceRequestContent  = "request.content"
	SourceResponseContent = "response.content"
	SourceErrorResponse   = "response.error"
	SourceContentComplete = "response.complete"
	SourceRequestIdentity = "request.identity"
	SourceUpdateIdentity  = "update.identity"
	SourceUpdateConsent   = "update.consent"
	SourceResetComplete   = "reset.complete"
	SourceStateChange     = "state.change"
)

// Well-known payload keys. Payload key lookups are case-sensitive.
const (
	KeyLocationHint  = "locationHint"
	KeyRequestID     = "requestId"
	KeyXDM           = "xdm"
	KeyData          = "data"
	KeyDatasetID     = "datasetId"
	KeyHandleType    = "type"
	KeyHandlePayload = "payload"
	KeyStateOwner    = "stateowner"
)

// Shared-state configuration keys read by ExtractConfiguration.
const (
	ConfigKeyDatastreamID = "edge.datastreamId"
	ConfigKeyEnvironment  = "edge.environment"
	ConfigKeyDomain       = "edge.domain"

	IntegrationIDKey = "integrationId"
)

// Envelope is an immutable event record dispatched over the hub.
type Envelope struct {
	id         string
	eventType  string
	source     string
	data       map[string]any
	responseID string
	timestamp  time.Time
}

// Option configures envelope creation.
type Option func(*Envelope)

// WithID sets a specific envelope ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Envelope) {
		e.id = id
	}
}

// WithResponseID marks the envelope as a response to the given request
// envelope ID. One-shot exchanges are paired through this field.
func WithResponseID(id string) Option {
	return func(e *Envelope) {
		e.responseID = id
	}
}

// WithTimestamp sets a specific timestamp (default: time.Now()).
func WithTimestamp(t time.Time) Option {
	return func(e *Envelope) {
		e.timestamp = t
	}
}

// New creates an envelope with the given type, source, and payload data.
// The data map is copied so later mutation by the caller cannot leak into
// the envelope.
func New(eventType, source string, data map[string]any, opts ...Option) *Envelope {
	e := &Envelope{
		id:        uuid.New().String(),
		eventType: eventType,
		source:    source,
		timestamp: time.Now(),
	}

	if len(data) > 0 {
		e.data = make(map[string]any, len(data))
		for k, v := range data {
			e.data[k] = v
		}
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ID returns the unique envelope identifier.
func (e *Envelope) ID() string {
	return e.id
}

// Type returns the event type.
func (e *Envelope) Type() string {
	return e.eventType
}

// Source returns the event source.
func (e *Envelope) Source() string {
	return e.source
}

// Data returns the payload map. Callers must treat it as read-only.
func (e *Envelope) Data() map[string]any {
	return e.data
}

// ResponseID returns the ID of the request envelope this one responds to,
// or "" if this envelope is not a response.
func (e *Envelope) ResponseID() string {
	return e.responseID
}

// Timestamp returns when the envelope was created.
func (e *Envelope) Timestamp() time.Time {
	return e.timestamp
}

// envelopeJSON is the wire form of an Envelope.
type envelopeJSON struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Data       map[string]any `json:"data,omitempty"`
	ResponseID string         `json:"response_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// MarshalJSON implements json.Marshaler.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeJSON{
		ID:         e.id,
		Type:       e.eventType,
		Source:     e.source,
		Data:       e.data,
		ResponseID: e.responseID,
		Timestamp:  e.timestamp,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w envelopeJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.id = w.ID
	e.eventType = w.Type
	e.source = w.Source
	e.data = w.Data
	e.responseID = w.ResponseID
	e.timestamp = w.Timestamp
	return nil
}

// Handle is one unit of an asynchronous response: a semantic type tag and
// an ordered sequence of payload items. A single request may yield many
// handles, delivered in any order across any number of envelopes.
type Handle struct {
	Type    string           `json:"type"`
	Payload []map[string]any `json:"payload,omitempty"`
}

// HandleFromData builds a Handle from a response envelope payload.
// Returns false if the payload does not carry a usable handle shape;
// individual payload items of the wrong type are skipped.
func HandleFromData(data map[string]any) (Handle, bool) {
	if len(data) == 0 {
		return Handle{}, false
	}

	handleType, ok := data[KeyHandleType].(string)
	if !ok || handleType == "" {
		return Handle{}, false
	}

	h := Handle{Type: handleType}

	if raw, ok := data[KeyHandlePayload].([]any); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]any); ok {
				h.Payload = append(h.Payload, m)
			}
		}
	}

	return h, true
}
