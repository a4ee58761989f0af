package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"csvjson/internal/storage"
)

// maxParams stays under SQL Server's limit of 2100 parameters per request.
const maxParams = 2000

func init() {
	storage.Register("mssql", New)
}

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Columns are NVARCHAR(MAX), or NVARCHAR(450) for Unique columns so they fit
// in an index key. Unique inserts use INSERT ... SELECT ... WHERE NOT EXISTS;
// unlike Postgres ON CONFLICT, that does not collapse duplicates inside one
// VALUES list, so rows are deduplicated in memory first (first occurrence
// wins).
type Repo struct {
	db dbConn
}

// New opens a connection using the "sqlserver" driver and validates it via
// PingContext. cfg.DSN is a sqlserver:// URL or ADO connection string.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the table when OBJECT_ID does not find it.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows in parts that fit the parameter limit, all inside
// one transaction.
func (r *Repo) InsertRows(ctx context.Context, spec storage.TableSpec, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	if len(spec.Unique) > 0 {
		var err error
		rows, err = storage.DedupeRows(rows, spec.Columns, spec.Unique)
		if err != nil {
			return 0, err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for _, part := range storage.SplitRows(rows, len(spec.Columns), maxParams) {
		var (
			q    string
			args []any
		)
		if len(spec.Unique) > 0 {
			q, args = buildInsertNotExistsSQL(spec.Name, spec.Columns, part, spec.Unique)
		} else {
			q, args = buildBulkInsertSQL(spec.Name, spec.Columns, part)
		}

		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, err
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// buildCreateSQL builds an idempotent CREATE TABLE guarded by OBJECT_ID.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}

	unique := make(map[string]bool, len(t.Unique))
	for _, u := range t.Unique {
		unique[strings.ToLower(strings.TrimSpace(u))] = true
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		typ := "NVARCHAR(MAX)"
		if unique[strings.ToLower(strings.TrimSpace(c))] {
			typ = "NVARCHAR(450)"
		}
		defs = append(defs, mssqlIdent(c)+" "+typ+" NULL")
	}
	if len(t.Unique) > 0 {
		defs = append(defs, fmt.Sprintf("UNIQUE (%s)", joinIdents(t.Unique, "")))
	}

	return wrapCreateIfMissing(t.Name, strings.Join(defs, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns, ""))
	b.WriteString(") VALUES ")

	args := writeValues(&b, columns, rows)
	return b.String(), args
}

// buildInsertNotExistsSQL constructs a single INSERT...SELECT...WHERE NOT EXISTS for a chunk of rows.
//
// It materializes incoming rows as a derived table v via VALUES, then inserts only those
// rows that do not match existing rows on the unique columns.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, uniqueColumns []string) (string, []any) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns, ""))
	b.WriteString(") SELECT ")
	b.WriteString(joinIdents(columns, "v."))
	b.WriteString(" FROM (VALUES ")

	args := writeValues(&b, columns, rows)

	b.WriteString(") AS v(")
	b.WriteString(joinIdents(columns, ""))
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")

	for i, uc := range uniqueColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(uc))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(uc))
	}
	b.WriteString(")")

	return b.String(), args
}

// writeValues writes "(@p1, @p2), (@p3, @p4)" and returns the args in the
// same order.
func writeValues(b *strings.Builder, columns []string, rows [][]any) []any {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.imports" -> [dbo].[imports]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func joinIdents(cols []string, prefix string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + mssqlIdent(c)
	}
	return strings.Join(out, ", ")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

var _ dbConn = (*sqlDB)(nil)
