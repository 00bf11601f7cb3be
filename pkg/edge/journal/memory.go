package journal

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory journal store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedEntry
	closed bool
}

type storedEntry struct {
	data      []byte
	createdAt time.Time
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedEntry),
	}
}

// Record implements Store.
func (m *MemoryStore) Record(requestID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	m.data[requestID] = storedEntry{
		data:      stored,
		createdAt: time.Now().UTC(),
	}

	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(requestID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	entry, ok := m.data[requestID]
	if !ok {
		return nil, ErrNotFound
	}

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Pending implements Store.
func (m *MemoryStore) Pending() ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	entries := make([]Entry, 0, len(m.data))
	for id, stored := range m.data {
		data := make([]byte, len(stored.data))
		copy(data, stored.data)
		entries = append(entries, Entry{
			RequestID: id,
			Data:      data,
			CreatedAt: stored.createdAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})

	return entries, nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, requestID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of journaled entries. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
