package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bookwell/cartsync/internal/domain/catalog"
)

// MemoryCache is an in-process snapshot cache with per-entry expiry. Entries
// are values, so readers get copies.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	snap      catalog.Snapshot
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (m *MemoryCache) Get(ctx context.Context, serviceID string) (catalog.Snapshot, error) {
	_ = ctx

	m.mu.RLock()
	entry, ok := m.entries[serviceID]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return catalog.Snapshot{}, ErrCacheMiss
	}
	return entry.snap, nil
}

func (m *MemoryCache) Set(ctx context.Context, serviceID string, snap catalog.Snapshot) error {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[serviceID] = memoryEntry{
		snap:      snap,
		expiresAt: time.Now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, serviceID string) error {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, serviceID)
	return nil
}
