package edge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/edgeclient/pkg/edge/event"
	"github.com/randalmurphal/edgeclient/pkg/edge/observability"
)

// Result is the terminal outcome of a pending request. Handles holds the
// accumulated response fragments in arrival order (possibly empty); Err is
// non-nil when the request was cancelled or timed out. Callers that do not
// care about errors simply ignore Err.
type Result struct {
	Handles []event.Handle
	Err     error
}

// CompletionFunc receives the Result of a pending request, exactly once,
// possibly on a different goroutine than the one that submitted it.
type CompletionFunc func(Result)

// HintFunc receives the outcome of a location hint query, exactly once.
// An empty hint with a nil error means no hint is currently set.
type HintFunc func(hint string, err error)

// CallbackRegistry correlates request ids to pending completion callbacks
// and their accumulated response fragments. All operations are safe for
// concurrent use; operations on different ids never block each other, and
// each entry reaches a terminal state exactly once.
type CallbackRegistry struct {
	entries sync.Map // request ID -> *pending
	ttl     time.Duration
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	closeCh   chan struct{}
	closeOnce sync.Once
}

type pending struct {
	mu        sync.Mutex
	callback  CompletionFunc
	handles   []event.Handle
	done      bool
	createdAt time.Time
}

// NewCallbackRegistry creates a registry. Entries older than ttl are
// cancelled with ErrCallbackTimeout by a background sweep; ttl <= 0
// disables the sweep.
func NewCallbackRegistry(ttl time.Duration, logger *slog.Logger, metrics observability.MetricsRecorder) *CallbackRegistry {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	r := &CallbackRegistry{
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		closeCh: make(chan struct{}),
	}

	if ttl > 0 {
		go r.sweep()
	}

	return r
}

// Register stores a callback under the given request id. A duplicate
// registration for a live id is dropped: the first registration wins and
// the duplicate is logged. Registering a nil callback is a no-op.
func (r *CallbackRegistry) Register(requestID string, callback CompletionFunc) {
	if requestID == "" || callback == nil {
		return
	}

	p := &pending{
		callback:  callback,
		createdAt: time.Now(),
	}

	if _, loaded := r.entries.LoadOrStore(requestID, p); loaded {
		if r.logger != nil {
			r.logger.Warn("duplicate callback registration dropped",
				slog.String("request_id", requestID),
			)
		}
	}
}

// ResolveFragment appends a response fragment to the entry for requestID.
// Resolving an unknown or already-terminal id is a no-op: other listeners
// may observe the same bus event for ids this registry never tracked.
func (r *CallbackRegistry) ResolveFragment(requestID string, handle event.Handle) {
	v, ok := r.entries.Load(requestID)
	if !ok {
		return
	}

	p := v.(*pending)
	p.mu.Lock()
	if !p.done {
		p.handles = append(p.handles, handle)
	}
	p.mu.Unlock()
}

// Complete invokes the callback for requestID exactly once with the
// accumulated fragments and removes the entry. Completing an unknown id is
// a no-op.
func (r *CallbackRegistry) Complete(requestID string) {
	r.finish(requestID, nil)
}

// Cancel invokes the callback for requestID exactly once with the
// accumulated fragments and the given reason, then removes the entry.
// Cancelling an unknown id is a no-op.
func (r *CallbackRegistry) Cancel(requestID string, reason error) {
	r.finish(requestID, reason)
}

func (r *CallbackRegistry) finish(requestID string, reason error) {
	v, ok := r.entries.LoadAndDelete(requestID)
	if !ok {
		return
	}

	p := v.(*pending)
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	p.done = true
	handles := p.handles
	age := time.Since(p.createdAt)
	p.mu.Unlock()

	p.callback(Result{Handles: handles, Err: reason})

	ctx := context.Background()
	if reason == nil {
		r.metrics.RecordCompletion(ctx, len(handles), age)
		observability.LogCompletion(r.logger, requestID, len(handles), float64(age.Milliseconds()))
	}
}

// Pending returns the number of registrations awaiting a terminal signal.
func (r *CallbackRegistry) Pending() int {
	count := 0
	r.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// Close cancels all pending registrations with ErrClientClosed and stops
// the sweep goroutine. Safe to call more than once.
func (r *CallbackRegistry) Close() {
	r.closeOnce.Do(func() {
		close(r.closeCh)
	})

	r.entries.Range(func(key, _ any) bool {
		r.Cancel(key.(string), ErrClientClosed)
		return true
	})
}

// sweep cancels entries that outlived the ttl without a terminal signal.
func (r *CallbackRegistry) sweep() {
	interval := r.ttl / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-r.ttl)
			r.entries.Range(func(key, value any) bool {
				p := value.(*pending)
				p.mu.Lock()
				expired := !p.done && p.createdAt.Before(cutoff)
				age := time.Since(p.createdAt)
				p.mu.Unlock()

				if expired {
					requestID := key.(string)
					observability.LogTimeout(r.logger, requestID, age)
					r.metrics.RecordTimeout(context.Background())
					r.Cancel(requestID, ErrCallbackTimeout)
				}
				return true
			})

		case <-r.closeCh:
			return
		}
	}
}
