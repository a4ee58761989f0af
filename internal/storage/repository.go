// Package storage persists converted records into SQL tables.
//
// Every backend stores a record as one row of text columns, one column per
// header. Backends register themselves from init() and are selected by
// Config.Kind; import csvjson/internal/storage/all to link all of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Config is the minimal configuration needed to open a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// TableSpec describes a destination table.
//
// Columns are created as nullable text columns in the given order. When
// Unique is non-empty, the table gets a UNIQUE constraint over those columns
// and inserts skip rows whose Unique values already exist, which makes
// re-running the same input idempotent.
type TableSpec struct {
	Name    string
	Columns []string
	Unique  []string
}

// Validate checks that t can be turned into DDL.
//
// Errors:
//   - empty table name or no columns
//   - empty or repeated column names (compared case-insensitively, since
//     SQL Server and SQLite treat identifiers that way)
//   - a Unique column that is not one of Columns
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		k := strings.ToLower(strings.TrimSpace(c))
		if k == "" {
			return fmt.Errorf("storage: table %s has an empty column name", t.Name)
		}
		if seen[k] {
			return fmt.Errorf("storage: table %s repeats column %q", t.Name, c)
		}
		seen[k] = true
	}
	for _, u := range t.Unique {
		if !seen[strings.ToLower(strings.TrimSpace(u))] {
			return fmt.Errorf("storage: unique column %q is not a column of %s", u, t.Name)
		}
	}
	return nil
}

// Repository is a backend-agnostic record sink.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources (connections, pools).
	//
	// Callers should treat Close as "call once".
	Close()

	// EnsureTable creates the table if it does not exist. An existing table
	// is left untouched, even when its columns differ from spec.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows whose values are aligned with spec.Columns.
	// Backends split large inputs into statements that fit their parameter
	// limit. The returned count is the number of rows actually written.
	InsertRows(ctx context.Context, spec TableSpec, rows [][]any) (int64, error)
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. The kind
// string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
