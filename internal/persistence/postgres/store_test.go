package postgres

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"mzquant/internal/persistence"
)

// The tests swap the pgx open function for a SQLite handle: the archive SQL
// sticks to the $n placeholder syntax both engines understand, so the full
// store surface runs without a live Postgres server.
func openViaSQLite(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", path)
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "postgres://ignored/ignored")
	if err != nil {
		t.Skipf("backing engine unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openViaSQLite(t)
	ctx := context.Background()

	rec := persistence.ExportRecord{
		ID:           "rec-9",
		Key:          "reports/pool.mzq",
		QuantType:    "MS2_LABEL",
		WarningCount: 0,
		SizeBytes:    1024,
		CreatedAt:    time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}
	if err := store.Append(ctx, rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, rec); err == nil {
		t.Fatalf("duplicate id accepted")
	}

	recs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "rec-9" {
		t.Fatalf("list = %+v", recs)
	}

	got, ok, err := store.Find(ctx, "rec-9")
	if err != nil || !ok || got.Key != "reports/pool.mzq" {
		t.Fatalf("find = %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := store.Find(ctx, "missing"); ok {
		t.Fatalf("found missing record")
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", filepath.Join(t.TempDir(), "missing", "nested", "db"))
	})
	t.Cleanup(restore)
	// SQLite cannot create the nested directory; ping fails.
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected error for unreachable database")
	}
}
