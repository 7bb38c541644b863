// Package correlation maps client chosen speech ids to backend assigned speech ids.
package correlation

import "sync"

// Table is a synchronized bidirectional map between client and backend speech ids.
// Zero is never a valid id and is returned as the not-found sentinel.
type Table struct {
	mu      sync.Mutex
	entries map[uint32]uint32 // client id -> backend id
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{entries: make(map[uint32]uint32)}
}

// Add inserts the pair unless clientID is already present.
// It reports false for a duplicate client id; the existing entry wins.
func (t *Table) Add(clientID, backendID uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[clientID]; ok {
		return false
	}
	t.entries[clientID] = backendID
	return true
}

// BackendID returns the backend id mapped to clientID, or 0
func (t *Table) BackendID(clientID uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[clientID]
}

// ClientID returns the client id mapped to backendID, or 0
func (t *Table) ClientID(backendID uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for client, backend := range t.entries {
		if backend == backendID {
			return client
		}
	}
	return 0
}

// RemoveByBackendID removes the entry for backendID and returns its client id, or 0
// when nothing was mapped. A repeated call for the same id is a no-op.
func (t *Table) RemoveByBackendID(backendID uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for client, backend := range t.entries {
		if backend == backendID {
			delete(t.entries, client)
			return client
		}
	}
	return 0
}

// RemoveByClientID removes the entry for clientID and returns its backend id, or 0
func (t *Table) RemoveByClientID(clientID uint32) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	backend, ok := t.entries[clientID]
	if !ok {
		return 0
	}
	delete(t.entries, clientID)
	return backend
}

// IsEmpty reports whether no speech is tracked
func (t *Table) IsEmpty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) == 0
}

// Len returns the number of tracked speeches
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops every entry
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[uint32]uint32)
}
