// Package cache provides a minimal in-process query cache. The sync layer
// only drives invalidation; this is the simplest collaborator that satisfies
// it, used by the session agent and in tests.
package cache

import "sync"

type entry struct {
	value any
	stale bool
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// Set stores a fresh value for the view key.
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{value: value}
}

// Get returns the cached value and whether it is present and fresh.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || e.stale {
		return nil, false
	}
	return e.value, true
}

// Invalidate marks the view stale; the next access refetches.
func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.stale = true
	}
}

// Remove drops the view entirely.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Patch applies an in-place update to the cached value, if present. The
// value stays fresh or stale as it was; patching is an optimistic touch-up,
// not a revalidation.
func (m *Memory) Patch(key string, apply func(value any) any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.value = apply(e.value)
	}
}
