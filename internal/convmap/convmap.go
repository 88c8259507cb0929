// Package convmap tracks the correspondence between local conversations and
// the upstream provider's own conversation identifiers.
package convmap

import (
	"sync"
)

// Table maps (local user id, local conversation id) to the upstream
// conversation id. One table exists per deployment; it is injected into the
// orchestrator rather than living in package state.
type Table struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewTable creates an empty mapping table.
func NewTable() *Table {
	return &Table{m: make(map[string]string)}
}

func key(userID, conversationID string) string {
	return userID + "\x00" + conversationID
}

// Lookup returns the upstream conversation id for the key, if any.
func (t *Table) Lookup(userID, conversationID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.m[key(userID, conversationID)]
	return id, ok
}

// Record stores the upstream id for the key if none is mapped yet. An
// existing mapping is never overwritten mid-stream.
func (t *Table) Record(userID, conversationID, upstreamID string) {
	if upstreamID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key(userID, conversationID)
	if _, ok := t.m[k]; !ok {
		t.m[k] = upstreamID
	}
}

// Confirm stores the upstream id from a final chunk, overwriting any
// existing mapping for the key.
func (t *Table) Confirm(userID, conversationID, upstreamID string) {
	if upstreamID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[key(userID, conversationID)] = upstreamID
}

// Invalidate removes the mapping so the next request starts a fresh
// upstream conversation.
func (t *Table) Invalidate(userID, conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, key(userID, conversationID))
}

// Len reports the number of mapped conversations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}
