// In-memory cache store.
//
// Information Hiding:
// - Map structure hidden from users
// - Thread-safe access via RWMutex hidden behind the Store interface
// - Suitable for testing and single-run pipelines

package storage

import (
	"context"
	"sync"
)

// MemoryStore implements Store using an in-memory map.
// Data is lost when the process terminates.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]CacheEntry),
	}
}

// Load retrieves an entry by fingerprint.
func (s *MemoryStore) Load(ctx context.Context, fingerprint string) (CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[fingerprint]
	return entry, ok, nil
}

// Save persists an entry, replacing any existing one.
func (s *MemoryStore) Save(ctx context.Context, entry CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[entry.Fingerprint] = entry
	return nil
}

// Delete removes an entry.
func (s *MemoryStore) Delete(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, fingerprint)
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
