// Package sqlite provides the persistent document store backed by SQLite.
// Records are stored as JSON keyed by (collection, object name); writes are
// last-write-wins upserts, matching the ingestion pipeline's idempotency
// contract.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/tarxiv/tarxiv/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

// Store is a SQLite-backed document store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a SQLite store at the specified data directory. If
// dataDir is empty, defaults to ~/.tarxiv/data/tarxiv.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".tarxiv", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "tarxiv.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Upsert inserts or replaces the document under (collection, key).
func (s *Store) Upsert(ctx context.Context, key string, doc any, collection string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document %s/%s: %w", collection, key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, key) DO UPDATE SET
			doc = excluded.doc,
			updated_at = excluded.updated_at
	`, collection, key, string(raw))
	if err != nil {
		return fmt.Errorf("upserting document %s/%s: %w", collection, key, err)
	}
	return nil
}

// Get returns the stored document, or domain.ErrNotFound.
func (s *Store) Get(ctx context.Context, key, collection string) (json.RawMessage, error) {
	var doc string
	row := s.db.QueryRowContext(ctx,
		"SELECT doc FROM documents WHERE collection = ? AND key = ?", collection, key)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting document %s/%s: %w", collection, key, err)
	}
	return json.RawMessage(doc), nil
}

// Keys returns every key in a collection, sorted. Used by maintenance
// commands to enumerate stored objects.
func (s *Store) Keys(ctx context.Context, collection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM documents WHERE collection = ? ORDER BY key", collection)
	if err != nil {
		return nil, fmt.Errorf("listing collection %s: %w", collection, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
