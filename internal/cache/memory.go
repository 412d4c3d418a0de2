package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache = (*Memory)(nil)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// GetMulti returns the live values for keys.
func (m *Memory) GetMulti(_ context.Context, keys []string) (map[string]string, error) {
	now := m.now()
	out := make(map[string]string, len(keys))

	var expired []string
	m.mu.RLock()
	for _, k := range keys {
		e, ok := m.entries[k]
		if !ok {
			continue
		}
		if !e.expiresAt.After(now) {
			expired = append(expired, k)
			continue
		}
		out[k] = e.value
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.mu.Lock()
		for _, k := range expired {
			if e, ok := m.entries[k]; ok && !e.expiresAt.After(now) {
				delete(m.entries, k)
			}
		}
		m.mu.Unlock()
	}
	return out, nil
}

// SetMulti stores entries until now+ttl. A non-positive ttl is a no-op.
func (m *Memory) SetMulti(_ context.Context, entries map[string]string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	expiresAt := m.now().Add(ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.entries[k] = memoryEntry{value: v, expiresAt: expiresAt}
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
