package synth

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CacheEntry is one persisted synthesized tool. Entries are content-addressed
// by (name, hash of source), so concurrent writers producing identical
// content are naturally idempotent.
type CacheEntry struct {
	Name        string
	Hash        string
	Source      string
	Description string
	CreatedAt   time.Time
}

// CacheStore persists synthesized tools on durable storage.
type CacheStore struct {
	db *sql.DB
}

// OpenCacheStore opens (creating if needed) the tool cache database.
func OpenCacheStore(path string) (*CacheStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open tool cache: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	schema := `
	CREATE TABLE IF NOT EXISTS tools (
		name        TEXT NOT NULL,
		hash        TEXT NOT NULL,
		source      TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		PRIMARY KEY (name, hash)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize tool cache schema: %w", err)
	}

	return &CacheStore{db: db}, nil
}

// Close closes the underlying database.
func (c *CacheStore) Close() error {
	return c.db.Close()
}

// Put stores an entry. Writing an identical (name, hash) again is a no-op.
func (c *CacheStore) Put(e CacheEntry) error {
	_, err := c.db.Exec(`
		INSERT INTO tools (name, hash, source, description, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name, hash) DO NOTHING`,
		e.Name, e.Hash, e.Source, e.Description, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to persist tool %s: %w", e.Name, err)
	}
	return nil
}

// Get looks up an entry by name and source hash.
func (c *CacheStore) Get(name, hash string) (CacheEntry, bool, error) {
	row := c.db.QueryRow(`
		SELECT name, hash, source, description, created_at
		FROM tools WHERE name = ? AND hash = ?`, name, hash)

	var e CacheEntry
	var createdAt int64
	err := row.Scan(&e.Name, &e.Hash, &e.Source, &e.Description, &createdAt)
	if err == sql.ErrNoRows {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("tool cache lookup failed: %w", err)
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return e, true, nil
}

// All returns every persisted tool, most recent first. Used to warm the
// registry at session start.
func (c *CacheStore) All() ([]CacheEntry, error) {
	rows, err := c.db.Query(`
		SELECT name, hash, source, description, created_at
		FROM tools ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("tool cache scan failed: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var createdAt int64
		if err := rows.Scan(&e.Name, &e.Hash, &e.Source, &e.Description, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
