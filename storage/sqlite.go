// SQLite cache store.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements Store using a SQLite database file, giving the
// response cache durability across runs.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS responses (
			fingerprint TEXT PRIMARY KEY,
			response TEXT NOT NULL,
			model TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_responses_created
		ON responses(created_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load retrieves an entry by fingerprint.
func (s *SqliteStore) Load(ctx context.Context, fingerprint string) (CacheEntry, bool, error) {
	var entry CacheEntry
	var createdAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT fingerprint, response, model, created_at FROM responses WHERE fingerprint = ?",
		fingerprint).Scan(&entry.Fingerprint, &entry.Response, &entry.Model, &createdAt)

	if err == sql.ErrNoRows {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("failed to load entry: %w", err)
	}

	entry.CreatedAt = time.Unix(createdAt, 0)
	return entry, true, nil
}

// Save persists an entry, replacing any existing one (last write wins).
func (s *SqliteStore) Save(ctx context.Context, entry CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO responses (fingerprint, response, model, created_at)
		VALUES (?, ?, ?, ?)`,
		entry.Fingerprint,
		entry.Response,
		entry.Model,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

// Delete removes an entry.
func (s *SqliteStore) Delete(ctx context.Context, fingerprint string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM responses WHERE fingerprint = ?", fingerprint)
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// PurgeOlderThan removes entries created before the cutoff and returns how
// many were deleted. Maintenance helper for long-lived cache files; the
// cache itself relies on lazy expiry.
func (s *SqliteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM responses WHERE created_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge entries: %w", err)
	}
	return res.RowsAffected()
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
