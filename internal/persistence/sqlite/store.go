// Package sqlite provides a SQLite-backed export archive.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"mzquant/internal/persistence"
)

var _ persistence.Archive = (*Store)(nil)

// Store appends export records to a single SQLite table.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (and if needed creates) the archive database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "mzquant.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS export_records (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		quant_type TEXT NOT NULL,
		warning_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL,
		etag TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create export_records table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Append inserts one record; an existing ID is an error.
func (s *Store) Append(ctx context.Context, rec persistence.ExportRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_records(id, key, quant_type, warning_count, size_bytes, etag, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Key, rec.QuantType, rec.WarningCount, rec.SizeBytes, rec.ETag, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert export record: %w", err)
	}
	return nil
}

// List returns all records, oldest first.
func (s *Store) List(ctx context.Context) ([]persistence.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, key, quant_type, warning_count, size_bytes, etag, created_at
		 FROM export_records ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select export records: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []persistence.ExportRecord
	for rows.Next() {
		var rec persistence.ExportRecord
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.QuantType, &rec.WarningCount, &rec.SizeBytes, &rec.ETag, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Find looks up one record by ID.
func (s *Store) Find(ctx context.Context, id string) (persistence.ExportRecord, bool, error) {
	var rec persistence.ExportRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key, quant_type, warning_count, size_bytes, etag, created_at
		 FROM export_records WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Key, &rec.QuantType, &rec.WarningCount, &rec.SizeBytes, &rec.ETag, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ExportRecord{}, false, nil
	}
	if err != nil {
		return persistence.ExportRecord{}, false, err
	}
	return rec, true, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
