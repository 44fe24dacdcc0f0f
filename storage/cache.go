// Package storage provides the response cache and its persistence backends.
//
// Information Hiding:
// - Storage backend details hidden behind the Store interface
// - TTL enforcement lives in ResponseCache, not in the stores
// - Persist failures are logged and treated as misses, never propagated
package storage

import (
	"context"
	"log/slog"
	"time"
)

// CacheEntry maps a request fingerprint to a previously obtained response.
// Entries are never mutated, only replaced.
type CacheEntry struct {
	Fingerprint string    `json:"fingerprint"`
	Response    string    `json:"response"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the key-value persistence contract behind ResponseCache.
// Implementations can use memory, SQLite, or any durable KV store.
type Store interface {
	// Load retrieves an entry by fingerprint. The bool reports presence;
	// error is reserved for storage failures.
	Load(ctx context.Context, fingerprint string) (CacheEntry, bool, error)

	// Save persists an entry, replacing any existing one (last write wins).
	Save(ctx context.Context, entry CacheEntry) error

	// Delete removes an entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, fingerprint string) error
}

// ResponseCache is a content-addressed store of text responses with lazy
// TTL expiry. There is no background sweep; Get treats an entry older than
// the TTL as absent.
type ResponseCache struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewResponseCache creates a cache over the given store. A zero TTL means
// entries never expire.
func NewResponseCache(store Store, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseCache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the cached entry for a fingerprint. Expired entries and
// storage failures both read as misses.
func (c *ResponseCache) Get(ctx context.Context, fingerprint string) (CacheEntry, bool) {
	entry, ok, err := c.store.Load(ctx, fingerprint)
	if err != nil {
		c.logger.Warn("cache load failed, treating as miss",
			"fingerprint", fingerprint, "error", err)
		return CacheEntry{}, false
	}
	if !ok {
		return CacheEntry{}, false
	}

	if c.ttl > 0 && c.now().Sub(entry.CreatedAt) > c.ttl {
		// Lazy expiry; best-effort cleanup of the stale entry.
		if err := c.store.Delete(ctx, fingerprint); err != nil {
			c.logger.Debug("stale entry cleanup failed", "fingerprint", fingerprint, "error", err)
		}
		return CacheEntry{}, false
	}

	return entry, true
}

// Put stores a response under its fingerprint. Persist failures are logged
// and swallowed: a cold cache is acceptable, a failed pipeline is not.
func (c *ResponseCache) Put(ctx context.Context, fingerprint, response, model string) {
	entry := CacheEntry{
		Fingerprint: fingerprint,
		Response:    response,
		Model:       model,
		CreatedAt:   c.now(),
	}

	if err := c.store.Save(ctx, entry); err != nil {
		c.logger.Warn("cache persist failed",
			"fingerprint", fingerprint, "error", err)
	}
}
