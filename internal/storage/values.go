package storage

import (
	"fmt"
	"strings"

	"csvjson/pkg/records"
)

// SQLValue converts a record value to the value bound for a text column.
// nil and records.Undefined become SQL NULL; everything else is stored in
// its string form (numbers as JSON would print them, times as RFC 3339).
func SQLValue(v any) any {
	if v == nil || records.IsUndefined(v) {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return records.String(v)
}

// RowsFromRecords lays records out as rows aligned with columns. A column a
// record does not have becomes NULL.
func RowsFromRecords(columns []string, recs []*records.Record) [][]any {
	rows := make([][]any, len(recs))
	for i, r := range recs {
		row := make([]any, len(columns))
		for j, c := range columns {
			row[j] = SQLValue(r.Value(c))
		}
		rows[i] = row
	}
	return rows
}

// SplitRows cuts rows into parts whose parameter count (rows × columns)
// stays at or below maxParams. Every part has at least one row.
func SplitRows(rows [][]any, columns, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := 1
	if columns > 0 && maxParams > columns {
		per = maxParams / columns
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// NormalizeKey converts a key value to a canonical string form for
// in-memory dedupe maps.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// DedupeRows keeps the first row for every distinct combination of the
// keyColumns values and drops the rest, preserving order. Rows whose key
// contains a NULL are always kept, matching UNIQUE constraint semantics.
//
// Errors:
//   - a key column that is not in columns
func DedupeRows(rows [][]any, columns, keyColumns []string) ([][]any, error) {
	if len(keyColumns) == 0 {
		return rows, nil
	}
	idx := make([]int, len(keyColumns))
	for i, k := range keyColumns {
		idx[i] = -1
		for j, c := range columns {
			if strings.EqualFold(c, k) {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			return nil, fmt.Errorf("storage: dedupe column %q not present in columns", k)
		}
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		hasNull := false
		for n, j := range idx {
			if row[j] == nil {
				hasNull = true
				break
			}
			if n > 0 {
				b.WriteByte(0x1f)
			}
			b.WriteString(NormalizeKey(row[j]))
		}
		if !hasNull {
			k := b.String()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, row)
	}
	return out, nil
}
