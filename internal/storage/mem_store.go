package storage

import "sync"

// MemStore is an in-memory Store for tests. It records call counts so
// tests can assert how often the coordinator touched the mirror.
type MemStore struct {
	mu     sync.Mutex
	values map[string][]byte
	calls  MemCalls

	// FailSet, when non-nil, is returned from every Set call.
	FailSet error
}

// MemCalls tracks method invocations for test verification.
type MemCalls struct {
	Get int
	Set int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{values: make(map[string][]byte)}
}

// Get reads the value stored under key.
func (m *MemStore) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Set stores a copy of value under key.
func (m *MemStore) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Set++
	if m.FailSet != nil {
		return m.FailSet
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.values[key] = v
	return nil
}

// Close is a no-op.
func (m *MemStore) Close() error { return nil }

// Calls returns a snapshot of the recorded call counts.
func (m *MemStore) Calls() MemCalls {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
