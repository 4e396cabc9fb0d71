package watchlist

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inkwell/internal/storage"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE watched_dirs (
    path     TEXT PRIMARY KEY,
    added_at TEXT NOT NULL
);

CREATE TABLE seen_files (
    path       TEXT PRIMARY KEY,
    first_seen TEXT NOT NULL
);
`

// Store is the SQLite-backed watchlist.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the watchlist database.
func Open(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := storage.InitSchema(context.Background(), db, schemaSQL, schemaVersion); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("watchlist schema: %w", err)
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AddDir registers a directory for periodic scanning. Adding an already
// watched directory is a no-op.
func (s *Store) AddDir(ctx context.Context, path string) error {
	_, err := storage.Exec(ctx, s.db,
		"INSERT OR IGNORE INTO watched_dirs (path, added_at) VALUES (?, ?)",
		path, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("add watched dir: %w", err)
	}
	return nil
}

// RemoveDir unregisters a directory. Reports whether it was watched.
func (s *Store) RemoveDir(ctx context.Context, path string) (bool, error) {
	res, err := storage.Exec(ctx, s.db, "DELETE FROM watched_dirs WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("remove watched dir: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Dirs returns all watched directories ordered by registration time.
func (s *Store) Dirs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM watched_dirs ORDER BY added_at, path")
	if err != nil {
		return nil, fmt.Errorf("list watched dirs: %w", err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan watched dir: %w", err)
		}
		dirs = append(dirs, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watched dirs: %w", err)
	}
	return dirs, nil
}

// MarkSeen records that a source file has been ingested. Idempotent.
func (s *Store) MarkSeen(ctx context.Context, path string) error {
	_, err := storage.Exec(ctx, s.db,
		"INSERT OR IGNORE INTO seen_files (path, first_seen) VALUES (?, ?)",
		path, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// Seen reports whether a source file has already been ingested.
func (s *Store) Seen(ctx context.Context, path string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM seen_files WHERE path = ?", path).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check seen: %w", err)
	}
	return true, nil
}

// ForgetSeen removes a file from the seen set so a future scan can ingest it
// again. Used when a file vanishes between being claimed and being ingested.
func (s *Store) ForgetSeen(ctx context.Context, path string) error {
	if _, err := storage.Exec(ctx, s.db, "DELETE FROM seen_files WHERE path = ?", path); err != nil {
		return fmt.Errorf("forget seen: %w", err)
	}
	return nil
}
