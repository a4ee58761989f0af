package postgres

import (
	"strings"
	"testing"

	"csvjson/internal/storage"
)

func TestBuildCreateSQL_QualifiedName_CreatesSchemaAndTextColumns(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name:    "public.people",
		Columns: []string{"name", "age"},
		Unique:  []string{"name"},
	}

	schemaSQL, tableSQL, err := buildCreateSQL(spec)
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != `CREATE SCHEMA IF NOT EXISTS "public";` {
		t.Fatalf("unexpected schemaSQL: %q", schemaSQL)
	}
	want := `CREATE TABLE IF NOT EXISTS "public"."people" ("name" TEXT, "age" TEXT, UNIQUE ("name"));`
	if tableSQL != want {
		t.Fatalf("tableSQL=%q, want %q", tableSQL, want)
	}
}

func TestBuildCreateSQL_UnqualifiedName_NoSchema(t *testing.T) {
	t.Parallel()

	schemaSQL, tableSQL, err := buildCreateSQL(storage.TableSpec{Name: "imports", Columns: []string{`we"ird`}})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	if schemaSQL != "" {
		t.Fatalf("expected no schema statement, got %q", schemaSQL)
	}
	if !strings.Contains(tableSQL, `"we""ird" TEXT`) {
		t.Fatalf("identifier not escaped: %q", tableSQL)
	}
	if strings.Contains(tableSQL, "UNIQUE") {
		t.Fatalf("unexpected UNIQUE constraint: %q", tableSQL)
	}
}

func TestBuildCreateSQL_InvalidSpec(t *testing.T) {
	t.Parallel()

	if _, _, err := buildCreateSQL(storage.TableSpec{Name: "t"}); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestBuildInsertSQL_NoUnique_NoOnConflict(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"public.imports",
		[]string{"vehicle_id", "country_id", "import_date"},
		[][]any{
			{"1", "1", nil},
			{"2", "3", "2026-01-01"},
		},
		nil,
	)

	if strings.Contains(sql, "ON CONFLICT") {
		t.Fatalf("expected no ON CONFLICT clause, got: %q", sql)
	}

	// 2 rows * 3 columns = 6 args
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}

	// Placeholder numbering must be stable for Exec().
	if !strings.Contains(sql, "VALUES ($1, $2, $3), ($4, $5, $6)") {
		t.Fatalf("unexpected VALUES placeholders: %q", sql)
	}
	if args[2] != nil || args[5] != "2026-01-01" {
		t.Fatalf("args not in row-major order: %v", args)
	}
}

func TestBuildInsertSQL_WithUnique_AddsOnConflictDoNothing(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"imports",
		[]string{"vehicle_id", "country_id", "import_date"},
		[][]any{
			{"1", "1", nil},
			// duplicate key inside one statement
			{"1", "1", nil},
		},
		[]string{"vehicle_id", "country_id"},
	)

	if !strings.Contains(sql, `ON CONFLICT ("vehicle_id", "country_id") DO NOTHING`) {
		t.Fatalf("expected ON CONFLICT DO NOTHING, got: %q", sql)
	}
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
}

func TestSplitQualifiedName(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, schema, table string }{
		{"public.people", "public", "people"},
		{"people", "", "people"},
		{"a.b.c", "", "a.b.c"},
		{" s . t ", "s", "t"},
	}
	for _, tc := range cases {
		s, tb := splitQualifiedName(tc.in)
		if s != tc.schema || tb != tc.table {
			t.Fatalf("splitQualifiedName(%q)=(%q,%q), want (%q,%q)", tc.in, s, tb, tc.schema, tc.table)
		}
	}
}
