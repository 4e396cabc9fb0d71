package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inkwell/internal/mission"
	"inkwell/internal/storage"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE missions (
    id          INTEGER PRIMARY KEY,
    source_path TEXT NOT NULL,
    target_path TEXT NOT NULL,
    file_size   INTEGER NOT NULL,
    status      TEXT NOT NULL,
    retry_count INTEGER NOT NULL,
    error_log   TEXT NOT NULL DEFAULT '',
    join_time   TEXT NOT NULL,
    start_time  TEXT,
    end_time    TEXT
);

CREATE INDEX idx_missions_end_time ON missions (end_time);
`

// Store is the SQLite-backed mission archive.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archive database.
func Open(dbPath string) (*Store, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := storage.InitSchema(context.Background(), db, schemaSQL, schemaVersion); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive schema: %w", err)
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

// Append writes the terminal record for a mission. Each mission id is written
// at most once; a duplicate append is rejected by the primary key.
func (s *Store) Append(ctx context.Context, snap mission.Snapshot) error {
	_, err := storage.Exec(ctx, s.db,
		`INSERT INTO missions (
            id, source_path, target_path, file_size, status,
            retry_count, error_log, join_time, start_time, end_time
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID,
		snap.SourcePath,
		snap.TargetPath,
		snap.FileSize,
		string(snap.Status),
		snap.RetryCount,
		snap.Errors,
		formatTime(snap.JoinTime),
		nullableTime(snap.StartTime),
		nullableTime(snap.EndTime),
	)
	if err != nil {
		return fmt.Errorf("append mission %d: %w", snap.ID, err)
	}
	return nil
}

// Recent returns the most recently finished records, newest first, capped at
// limit. A non-positive limit returns everything.
func (s *Store) Recent(ctx context.Context, limit int) ([]mission.Snapshot, error) {
	query := "SELECT id, source_path, target_path, file_size, status, retry_count, error_log, join_time, start_time, end_time FROM missions ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list archive: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

// SourcePaths returns every archived source path. Ingestion uses this to
// rebuild its duplicate-suppression set after a restart.
func (s *Store) SourcePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source_path FROM missions")
	if err != nil {
		return nil, fmt.Errorf("list archived sources: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan archived source: %w", err)
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived sources: %w", err)
	}
	return paths, nil
}

// MaxID returns the highest mission id ever archived, zero on an empty
// archive. The scheduler seeds its id sequence above it.
func (s *Store) MaxID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM missions").Scan(&max); err != nil {
		return 0, fmt.Errorf("max archived id: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

func scanSnapshots(rows *sql.Rows) ([]mission.Snapshot, error) {
	var snaps []mission.Snapshot
	for rows.Next() {
		var (
			snap       mission.Snapshot
			status     string
			joinTime   string
			startTime  sql.NullString
			endTime    sql.NullString
		)
		if err := rows.Scan(
			&snap.ID, &snap.SourcePath, &snap.TargetPath, &snap.FileSize,
			&status, &snap.RetryCount, &snap.Errors,
			&joinTime, &startTime, &endTime,
		); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		snap.Status = mission.Status(status)
		snap.JoinTime = parseTime(joinTime)
		if startTime.Valid {
			snap.StartTime = parseTime(startTime.String)
		}
		if endTime.Valid {
			snap.EndTime = parseTime(endTime.String)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}
	return snaps, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.Local()
}
