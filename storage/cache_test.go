package storage

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

// failingStore simulates a broken backend.
type failingStore struct {
	loadErr error
	saveErr error
}

func (f *failingStore) Load(ctx context.Context, fingerprint string) (CacheEntry, bool, error) {
	return CacheEntry{}, false, f.loadErr
}

func (f *failingStore) Save(ctx context.Context, entry CacheEntry) error {
	return f.saveErr
}

func (f *failingStore) Delete(ctx context.Context, fingerprint string) error {
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCacheRoundtrip(t *testing.T) {
	cache := NewResponseCache(NewMemoryStore(), time.Hour, quietLogger())
	ctx := context.Background()

	cache.Put(ctx, "fp1", "response text", "gpt-4o")

	entry, ok := cache.Get(ctx, "fp1")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if entry.Response != "response text" || entry.Model != "gpt-4o" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestCacheMissForUnknownFingerprint(t *testing.T) {
	cache := NewResponseCache(NewMemoryStore(), time.Hour, quietLogger())

	if _, ok := cache.Get(context.Background(), "missing"); ok {
		t.Error("unknown fingerprint must miss")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	cache := NewResponseCache(store, time.Hour, quietLogger())
	ctx := context.Background()

	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put(ctx, "fp1", "response", "m")

	current = current.Add(30 * time.Minute)
	if _, ok := cache.Get(ctx, "fp1"); !ok {
		t.Fatal("entry within TTL must hit")
	}

	current = current.Add(31 * time.Minute)
	if _, ok := cache.Get(ctx, "fp1"); ok {
		t.Fatal("entry past TTL must miss")
	}

	// Lazy expiry removes the stale entry from the backend.
	if store.Len() != 0 {
		t.Errorf("stale entry should be cleaned up, store has %d entries", store.Len())
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	cache := NewResponseCache(NewMemoryStore(), 0, quietLogger())
	ctx := context.Background()

	current := time.Unix(1000, 0)
	cache.now = func() time.Time { return current }

	cache.Put(ctx, "fp1", "response", "m")
	current = current.Add(1000 * time.Hour)

	if _, ok := cache.Get(ctx, "fp1"); !ok {
		t.Error("zero TTL entries must never expire")
	}
}

func TestCacheLoadFailureReadsAsMiss(t *testing.T) {
	cache := NewResponseCache(&failingStore{loadErr: errors.New("disk gone")}, time.Hour, quietLogger())

	if _, ok := cache.Get(context.Background(), "fp1"); ok {
		t.Error("storage failure must read as a miss")
	}
}

func TestCachePersistFailureSwallowed(t *testing.T) {
	cache := NewResponseCache(&failingStore{saveErr: errors.New("disk full")}, time.Hour, quietLogger())

	// Must not panic or propagate.
	cache.Put(context.Background(), "fp1", "response", "m")
}

func TestCachePutReplacesEntry(t *testing.T) {
	cache := NewResponseCache(NewMemoryStore(), time.Hour, quietLogger())
	ctx := context.Background()

	cache.Put(ctx, "fp1", "old", "m")
	cache.Put(ctx, "fp1", "new", "m")

	entry, ok := cache.Get(ctx, "fp1")
	if !ok || entry.Response != "new" {
		t.Errorf("last write must win, got %+v", entry)
	}
}
