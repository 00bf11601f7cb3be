// Package journal provides persistent storage for in-flight requests so
// they can be re-dispatched after a process restart.
package journal

import (
	"errors"
	"time"
)

// Store persists in-flight request envelopes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record stores the serialized envelope for a request.
	// Overwrites if an entry for requestID already exists.
	Record(requestID string, data []byte) error

	// Load retrieves a journaled envelope.
	// Returns ErrNotFound if the entry doesn't exist.
	Load(requestID string) ([]byte, error)

	// Pending returns all journaled entries, oldest first.
	// Returns empty slice (not error) when the journal is empty.
	Pending() ([]Entry, error)

	// Remove deletes a journal entry.
	// Returns nil if the entry doesn't exist.
	Remove(requestID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Entry is one journaled request.
type Entry struct {
	RequestID string
	Data      []byte
	CreatedAt time.Time
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates a journal entry doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
