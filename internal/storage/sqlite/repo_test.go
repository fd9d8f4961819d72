package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	gddl "goldrates/internal/ddl"
	"goldrates/internal/storage"
)

// openRepo opens a file-backed repository through the storage registry.
func openRepo(tb testing.TB, table string) storage.Repository {
	tb.Helper()
	dsn := filepath.Join(tb.TempDir(), "gold.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn, Table: table})
	if err != nil {
		tb.Fatalf("storage.New: %v", err)
	}
	tb.Cleanup(repo.Close)
	return repo
}

func dbOf(tb testing.TB, repo storage.Repository) *sql.DB {
	tb.Helper()
	w, ok := repo.(*wrappedRepo)
	if !ok {
		tb.Fatalf("repo type %T", repo)
	}
	return w.DB()
}

func TestInsertSQL(t *testing.T) {
	t.Parallel()

	got := insertSQL("main.gold_rates", []string{"date", "buyRateUSDOz"})
	want := `INSERT INTO "main"."gold_rates" ("date", "buyRateUSDOz") VALUES (?, ?)`
	if got != want {
		t.Fatalf("insertSQL() = %q, want %q", got, want)
	}
}

// TestReplaceAndCopy covers the relational load path end to end: replace,
// insert, replace again (idempotent re-run), insert.
func TestReplaceAndCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepo(t, "gold_rates")
	cols := []string{"date", "buyRateUSD", "buyRateUSDOz"}
	td := gddl.FromColumns("gold_rates", cols, []string{"buyRateUSDOz"})
	rows := [][]any{
		{"2024-01-01", "100", 3110.35},
		{"2024-01-02", "bad", nil},
	}

	for run := 0; run < 2; run++ {
		if err := storage.ReplaceTable(ctx, "sqlite", repo, td); err != nil {
			t.Fatalf("run %d: ReplaceTable: %v", run, err)
		}
		n, err := repo.CopyFrom(ctx, cols, rows)
		if err != nil {
			t.Fatalf("run %d: CopyFrom: %v", run, err)
		}
		if n != 2 {
			t.Fatalf("run %d: inserted = %d, want 2", run, n)
		}
	}

	db := dbOf(t, repo)
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "gold_rates"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2 after re-run", count)
	}

	var oz sql.NullFloat64
	if err := db.QueryRowContext(ctx, `SELECT "buyRateUSDOz" FROM "gold_rates" WHERE "date" = '2024-01-02'`).Scan(&oz); err != nil {
		t.Fatalf("select: %v", err)
	}
	if oz.Valid {
		t.Fatalf("buyRateUSDOz = %v, want NULL", oz.Float64)
	}
	if err := db.QueryRowContext(ctx, `SELECT "buyRateUSDOz" FROM "gold_rates" WHERE "date" = '2024-01-01'`).Scan(&oz); err != nil {
		t.Fatalf("select: %v", err)
	}
	if !oz.Valid || oz.Float64 != 3110.35 {
		t.Fatalf("buyRateUSDOz = %+v, want 3110.35", oz)
	}
}

func TestCopyFrom_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := openRepo(t, "t")
	if err := storage.ReplaceTable(ctx, "sqlite", repo, gddl.FromColumns("t", []string{"a", "b"}, nil)); err != nil {
		t.Fatalf("ReplaceTable: %v", err)
	}

	if _, err := repo.CopyFrom(ctx, nil, [][]any{{1}}); err == nil {
		t.Fatalf("CopyFrom(no columns) error = nil")
	}
	if _, err := repo.CopyFrom(ctx, []string{"a", "b"}, [][]any{{"1", "2"}, {"x"}}); err == nil {
		t.Fatalf("CopyFrom(short row) error = nil")
	}
	// The failed batch rolled back.
	var count int
	if err := dbOf(t, repo).QueryRowContext(ctx, `SELECT COUNT(*) FROM "t"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0 after rollback", count)
	}
	if n, err := repo.CopyFrom(ctx, []string{"a", "b"}, nil); n != 0 || err != nil {
		t.Fatalf("CopyFrom(empty) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("NewRepository(empty DSN) error = nil")
	}
}
