// Package hashcache persists content fingerprints in SQLite so repeated runs
// over the same tree skip re-hashing unchanged files.
package hashcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/backmassage/vid2audio/internal/fingerprint"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
    path        TEXT    NOT NULL,
    size        INTEGER NOT NULL,
    mtime_ns    INTEGER NOT NULL,
    mode        TEXT    NOT NULL,
    window_size INTEGER NOT NULL,
    fingerprint TEXT    NOT NULL,
    PRIMARY KEY (path, mode, window_size)
)`

// Store is a [fingerprint.Store] backed by a SQLite database file.
type Store struct {
	db   *sql.DB
	path string
}

var _ fingerprint.Store = (*Store)(nil)

// Open creates or opens the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Lookup returns the cached fingerprint for key. Entries recorded for a
// different size or modification time are misses.
func (s *Store) Lookup(ctx context.Context, key fingerprint.Key) (fingerprint.Fingerprint, bool, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM fingerprints
         WHERE path = ? AND mode = ? AND window_size = ? AND size = ? AND mtime_ns = ?`,
		key.Path, string(key.Mode), key.Window, key.Size, key.ModTime.UnixNano(),
	).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return fingerprint.Fingerprint(fp), true, nil
}

// Save records fp for key, replacing any entry for the same path and mode.
func (s *Store) Save(ctx context.Context, key fingerprint.Key, fp fingerprint.Fingerprint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (path, size, mtime_ns, mode, window_size, fingerprint)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (path, mode, window_size) DO UPDATE
         SET size = excluded.size, mtime_ns = excluded.mtime_ns, fingerprint = excluded.fingerprint`,
		key.Path, key.Size, key.ModTime.UnixNano(), string(key.Mode), key.Window, string(fp),
	)
	if err != nil {
		return fmt.Errorf("save fingerprint: %w", err)
	}
	return nil
}

// Prune deletes entries whose files no longer exist and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT path FROM fingerprints`)
	if err != nil {
		return 0, fmt.Errorf("list cached paths: %w", err)
	}
	var gone []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan cached path: %w", err)
		}
		if _, statErr := os.Stat(p); errors.Is(statErr, os.ErrNotExist) {
			gone = append(gone, p)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range gone {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM fingerprints WHERE path = ?`, p); err != nil {
			return 0, fmt.Errorf("prune %s: %w", p, err)
		}
	}
	return len(gone), nil
}
