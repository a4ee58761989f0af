package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"csvjson/internal/storage"
	"csvjson/pkg/records"
)

func openMemory(t *testing.T) *Repo {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo.(*Repo)
}

func selectAll(t *testing.T, db *sql.DB, q string) [][]sql.NullString {
	t.Helper()
	rows, err := db.Query(q)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	cols, _ := rows.Columns()
	var out [][]sql.NullString
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func TestSink_RoundTripsRecords(t *testing.T) {
	repo := openMemory(t)

	recs := []*records.Record{
		records.Of("name", "Ann", "age", int64(30), "active", true),
		records.Of("name", "Bob", "age", 2.5, "active", nil),
		records.Of("name", "Cy", "age", records.Undefined),
	}
	sink := &storage.Sink{
		Repo:      repo,
		Spec:      storage.TableSpec{Name: "people", Columns: []string{"name", "age", "active"}},
		BatchSize: 2,
	}

	n, err := sink.Write(context.Background(), recs)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 3 {
		t.Fatalf("written=%d, want 3", n)
	}

	got := selectAll(t, repo.db, `SELECT name, age, active FROM people ORDER BY rowid`)
	if len(got) != 3 {
		t.Fatalf("rows=%d, want 3", len(got))
	}
	if got[0][1].String != "30" || got[0][2].String != "true" {
		t.Fatalf("row 0 = %v", got[0])
	}
	if got[1][1].String != "2.5" || got[1][2].Valid {
		t.Fatalf("row 1 = %v (active must be NULL)", got[1])
	}
	if got[2][1].Valid || got[2][2].Valid {
		t.Fatalf("row 2 = %v (missing values must be NULL)", got[2])
	}
}

func TestInsertRows_UniqueIgnoresDuplicates(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	spec := storage.TableSpec{Name: "codes", Columns: []string{"code", "label"}, Unique: []string{"code"}}

	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// second call is a no-op
	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable again: %v", err)
	}

	n, err := repo.InsertRows(ctx, spec, [][]any{{"a", "x"}, {"b", "y"}, {"a", "z"}})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 2 {
		t.Fatalf("inserted=%d, want 2", n)
	}

	n, err = repo.InsertRows(ctx, spec, [][]any{{"a", "x"}, {"c", "w"}})
	if err != nil {
		t.Fatalf("InsertRows rerun: %v", err)
	}
	if n != 1 {
		t.Fatalf("rerun inserted=%d, want 1", n)
	}

	got := selectAll(t, repo.db, `SELECT code, label FROM codes ORDER BY code`)
	if len(got) != 3 || got[0][1].String != "x" {
		t.Fatalf("rows=%v", got)
	}
}

func TestInsertRows_FailureRollsBack(t *testing.T) {
	repo := openMemory(t)
	ctx := context.Background()
	spec := storage.TableSpec{Name: "t", Columns: []string{"a"}}
	if err := repo.EnsureTable(ctx, spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	bad := storage.TableSpec{Name: "t", Columns: []string{"missing"}}
	if _, err := repo.InsertRows(ctx, bad, [][]any{{"1"}}); err == nil {
		t.Fatalf("expected error for unknown column")
	}
	if got := selectAll(t, repo.db, `SELECT a FROM t`); len(got) != 0 {
		t.Fatalf("rows=%v, want none", got)
	}
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	repo, err := New(context.Background(), storage.Config{DSN: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer repo.Close()

	if err := repo.EnsureTable(context.Background(), storage.TableSpec{Name: "x", Columns: []string{"v"}}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
}

func TestBuildSQL(t *testing.T) {
	ddl, err := buildCreateTableSQL(storage.TableSpec{Name: "people", Columns: []string{"name", "age"}, Unique: []string{"name"}})
	if err != nil {
		t.Fatalf("buildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS \"people\" (\n  \"name\" TEXT,\n  \"age\" TEXT,\n  UNIQUE (\"name\")\n);"
	if ddl != want {
		t.Fatalf("ddl=%q, want %q", ddl, want)
	}

	q, args := buildInsertSQL("people", []string{"name", "age"}, [][]any{{"a", "1"}, {"b", nil}}, true)
	if !strings.HasPrefix(q, `INSERT OR IGNORE INTO "people" ("name", "age") VALUES (?,?), (?,?)`) {
		t.Fatalf("unexpected insert: %q", q)
	}
	if len(args) != 4 {
		t.Fatalf("args=%d, want 4", len(args))
	}
}
