// Package bus defines the event hub boundary consumed by the edge client
// and provides an in-process implementation of it.
//
// The hub delivers envelopes to subscribed handlers on worker goroutines it
// owns; handlers for independent requests may run concurrently and see no
// ordering guarantee relative to each other.
package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/edgeclient/pkg/edge/event"
)

// Handler processes an envelope delivered by the hub.
type Handler func(ctx context.Context, evt *event.Envelope)

// Bus is the event hub boundary.
type Bus interface {
	// Dispatch publishes an envelope to all matching subscribers.
	Dispatch(ctx context.Context, evt *event.Envelope) error

	// DispatchWithResponse publishes an envelope and invokes onResponse at
	// most once: with the response envelope paired to it, or with nil after
	// timeout elapses. The caller is never blocked.
	DispatchWithResponse(ctx context.Context, evt *event.Envelope, timeout time.Duration, onResponse func(*event.Envelope)) error

	// Subscribe registers a handler for envelopes matching the given type
	// and source (case-insensitive). Each matching envelope is delivered at
	// least once.
	Subscribe(eventType, source string, handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription is an active subscription on the bus.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()
}

// Config configures the in-process bus.
type Config struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// NonBlocking makes Dispatch non-blocking (drops envelopes when a
	// subscriber buffer is full).
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when an envelope is dropped (non-blocking mode).
	OnDrop func(evt *event.Envelope)
}

// DefaultConfig provides reasonable defaults.
var DefaultConfig = Config{
	BufferSize: 256,
}

// InProcBus is an in-memory Bus implementation.
type InProcBus struct {
	config Config

	mu   sync.RWMutex
	subs map[int64]*subscription

	waiterMu sync.Mutex
	waiters  map[string]*responseWaiter // request envelope ID -> waiter

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

// NewInProcBus creates a new in-process bus.
func NewInProcBus(config Config) *InProcBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig.BufferSize
	}

	return &InProcBus{
		config:  config,
		subs:    make(map[int64]*subscription),
		waiters: make(map[string]*responseWaiter),
		closeCh: make(chan struct{}),
	}
}

type subscription struct {
	id        int64
	eventType string
	source    string
	handler   Handler
	events    chan *event.Envelope
	done      chan struct{}
	doneOnce  sync.Once
	bus       *InProcBus
}

type responseWaiter struct {
	once       sync.Once
	onResponse func(*event.Envelope)
	timer      *time.Timer
}

// Dispatch publishes an envelope to all matching subscribers and resolves
// any one-shot waiter paired to it.
func (b *InProcBus) Dispatch(ctx context.Context, evt *event.Envelope) error {
	if evt == nil {
		return ErrNilEnvelope
	}
	if b.closed.Load() {
		return ErrBusClosed
	}

	// Resolve a pending one-shot exchange before fan-out so the waiter is
	// not raced by its own timeout.
	if rid := evt.ResponseID(); rid != "" {
		b.resolveWaiter(rid, evt)
	}

	b.mu.RLock()
	matching := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if strings.EqualFold(sub.eventType, evt.Type()) && strings.EqualFold(sub.source, evt.Source()) {
			matching = append(matching, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matching {
		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt)
				}
			}
		} else {
			select {
			case sub.events <- evt:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closeCh:
				return ErrBusClosed
			}
		}
	}

	return nil
}

// DispatchWithResponse publishes an envelope and arms a one-shot waiter for
// the paired response.
func (b *InProcBus) DispatchWithResponse(ctx context.Context, evt *event.Envelope, timeout time.Duration, onResponse func(*event.Envelope)) error {
	if evt == nil {
		return ErrNilEnvelope
	}
	if b.closed.Load() {
		return ErrBusClosed
	}

	w := &responseWaiter{onResponse: onResponse}
	w.timer = time.AfterFunc(timeout, func() {
		b.expireWaiter(evt.ID())
	})

	b.waiterMu.Lock()
	b.waiters[evt.ID()] = w
	b.waiterMu.Unlock()

	if err := b.Dispatch(ctx, evt); err != nil {
		b.waiterMu.Lock()
		delete(b.waiters, evt.ID())
		b.waiterMu.Unlock()
		w.timer.Stop()
		return err
	}

	return nil
}

func (b *InProcBus) resolveWaiter(requestID string, evt *event.Envelope) {
	b.waiterMu.Lock()
	w, ok := b.waiters[requestID]
	if ok {
		delete(b.waiters, requestID)
	}
	b.waiterMu.Unlock()

	if !ok {
		return
	}

	w.timer.Stop()
	w.once.Do(func() {
		if w.onResponse != nil {
			w.onResponse(evt)
		}
	})
}

func (b *InProcBus) expireWaiter(requestID string) {
	b.waiterMu.Lock()
	w, ok := b.waiters[requestID]
	if ok {
		delete(b.waiters, requestID)
	}
	b.waiterMu.Unlock()

	if !ok {
		return
	}

	w.once.Do(func() {
		if w.onResponse != nil {
			w.onResponse(nil)
		}
	})
}

// Subscribe registers a handler for envelopes of the given type and source.
func (b *InProcBus) Subscribe(eventType, source string, handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	sub := &subscription{
		id:        b.nextID.Add(1),
		eventType: eventType,
		source:    source,
		handler:   handler,
		events:    make(chan *event.Envelope, b.config.BufferSize),
		done:      make(chan struct{}),
		bus:       b,
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go sub.process()

	return sub
}

// Close shuts down the bus. Pending one-shot waiters expire with nil.
func (b *InProcBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.closeCh)

	b.mu.Lock()
	for _, sub := range b.subs {
		sub.stop()
	}
	b.subs = make(map[int64]*subscription)
	b.mu.Unlock()

	b.waiterMu.Lock()
	waiters := b.waiters
	b.waiters = make(map[string]*responseWaiter)
	b.waiterMu.Unlock()

	for _, w := range waiters {
		w.timer.Stop()
		w.once.Do(func() {
			if w.onResponse != nil {
				w.onResponse(nil)
			}
		})
	}

	return nil
}

func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			s.handler(context.Background(), evt)
		case <-s.done:
			return
		}
	}
}

func (s *subscription) stop() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s.id)
	s.bus.mu.Unlock()

	s.stop()
}
