// Package postgres provides a Postgres-backed export archive mirroring the
// SQLite semantics.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"mzquant/internal/persistence"
)

var _ persistence.Archive = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mzquant?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store appends export records to a Postgres table.
type Store struct {
	db *sql.DB
}

// NewStore opens a Postgres-backed archive using the provided DSN (falls
// back to defaultDSN) and ensures the records table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS export_records (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		quant_type TEXT NOT NULL,
		warning_count INTEGER NOT NULL,
		size_bytes BIGINT NOT NULL,
		etag TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure export_records table: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts one record; an existing ID is an error.
func (s *Store) Append(ctx context.Context, rec persistence.ExportRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO export_records(id, key, quant_type, warning_count, size_bytes, etag, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7)`,
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
		 FROM export_records WHERE id = $1`, id).
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

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
