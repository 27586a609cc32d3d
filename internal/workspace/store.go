// Package workspace durably stores generated artifacts under named keys.
// File layout and directory conventions are a caller concern — the core only
// needs "write an artifact under a key and read it back".
package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	cerrors "github.com/p-blackswan/colony/internal/errors"
)

// Artifact is a stored work product.
type Artifact struct {
	Key       string
	Content   string
	Producer  string
	UpdatedAt time.Time
}

// Store persists artifacts in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the workspace database and applies migrations.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS artifacts (
			key        TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			producer   TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// Put writes (or overwrites) the artifact under key.
func (s *Store) Put(ctx context.Context, key, content, producer string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (key, content, producer, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   content    = excluded.content,
		   producer   = excluded.producer,
		   updated_at = excluded.updated_at`,
		key, content, producer, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("workspace: put %q: %w", key, err)
	}
	s.logger.Debug("artifact written", "key", key, "producer", producer, "bytes", len(content))
	return nil
}

// Get returns the artifact stored under key.
func (s *Store) Get(ctx context.Context, key string) (Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, content, producer, updated_at FROM artifacts WHERE key = ?`, key)

	var a Artifact
	if err := row.Scan(&a.Key, &a.Content, &a.Producer, &a.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Artifact{}, fmt.Errorf("workspace: artifact %q: %w", key, cerrors.ErrNotFound)
		}
		return Artifact{}, fmt.Errorf("workspace: get %q: %w", key, err)
	}
	return a, nil
}

// List returns all artifact keys in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM artifacts ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("workspace: list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("workspace: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
