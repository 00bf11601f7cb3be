// Package edge is an event-driven client for submitting experience
// requests over a shared event bus and delivering correlated responses
// back to the caller.
//
// A submitted request may yield zero, one, or many response fragments,
// delivered asynchronously on bus-owned goroutines with no ordering
// guarantee across independent requests. The package is built from three
// parts:
//
//   - Client: validates input, builds request envelopes, and submits them.
//   - CallbackRegistry: correlates request ids to pending completion
//     callbacks, accumulates response fragments, and guarantees exactly one
//     terminal delivery per registration (completion, cancellation, or
//     timeout eviction).
//   - response routing: classifier-guarded bus handlers that feed
//     fragments and terminal signals into the registry.
//
// Location hints use the bus's one-shot response primitive instead of the
// registry, because the answer is a single scalar rather than a fragment
// stream.
//
// No failure in this package crashes the caller: validation failures are
// logged and returned as typed errors, malformed envelopes classify as
// non-matching, and timeouts surface as coded errors on the callback's
// error channel.
package edge
