// Package kv provides the softphone's durable key-value slot. Values are
// opaque blobs replaced whole on every write; there is no incremental or
// partial persistence.
package kv

import "sync"

// Store is a durable key-value slot.
type Store interface {
	// Get returns the value under key, or (nil, nil) if the key is absent.
	Get(key string) ([]byte, error)

	// Put replaces the value under key.
	Put(key string, value []byte) error

	// Delete removes key. Removing an absent key is not an error.
	Delete(key string) error

	// Close releases the backing resources.
	Close() error
}

// MemoryStore is an in-memory Store for tests and ephemeral runs.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string][]byte)}
}

// Get implements Store.
func (m *MemoryStore) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.slots[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put implements Store.
func (m *MemoryStore) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.slots[key] = stored
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, key)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
