// Package probe summarizes a converted dataset column by column: which value
// kind dominates, how many values are present and how distinct they are.
//
// The probe is best-effort and never fails: values it cannot classify count
// as text, and distinct counting stops at distinctCapPerColumn per column.
package probe

import (
	"sort"
	"strings"
	"time"

	"csvjson/internal/transformer"
	"csvjson/pkg/records"
)

// Value kinds, from most to least specific.
const (
	KindInteger = "integer"
	KindFloat   = "float"
	KindBoolean = "boolean"
	KindDate    = "date"
	KindText    = "text"
	KindNull    = "null"
)

const distinctCapPerColumn = 10000

// ColumnSummary describes one header.
type ColumnSummary struct {
	Name string
	// Kind is the single kind every present value fits, or "text" when the
	// column mixes kinds. A column with no present values is "null".
	Kind string
	// Kinds counts values per kind.
	Kinds map[string]int
	// Present counts values that are neither null nor undefined.
	Present int
	// Distinct counts distinct present values, bounded by the cap.
	Distinct int
	Capped   bool
}

// Unique reports whether every present value of the column was different
// and at least one value was present.
func (c ColumnSummary) Unique() bool {
	return c.Present > 0 && !c.Capped && c.Distinct == c.Present
}

// Ratio is Distinct/Present, or 0 for an empty column.
func (c ColumnSummary) Ratio() float64 {
	if c.Present == 0 {
		return 0
	}
	return float64(c.Distinct) / float64(c.Present)
}

// Report is the result of Summarize.
type Report struct {
	Rows    int
	Columns []ColumnSummary
}

// KindOf classifies one record value. Strings are classified by what the
// default coercion rules would turn them into, so a dataset converted
// without type preservation still reports numeric columns as numeric.
// Undefined yields "".
func KindOf(v any) string {
	if records.IsUndefined(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		v = transformer.Coerce(transformer.DefaultRules(), s)
	}
	switch v.(type) {
	case nil:
		return KindNull
	case int, int32, int64, uint, uint32, uint64:
		return KindInteger
	case float32, float64:
		return KindFloat
	case bool:
		return KindBoolean
	case time.Time:
		return KindDate
	}
	return KindText
}

// Summarize builds a Report for recs. headers fixes the column order; keys
// found in records but not in headers are appended in first-seen order.
func Summarize(headers []string, recs []*records.Record) Report {
	cols := append([]string(nil), headers...)
	known := make(map[string]bool, len(cols))
	for _, h := range cols {
		known[h] = true
	}
	for _, r := range recs {
		r.Range(func(k string, _ any) bool {
			if !known[k] {
				known[k] = true
				cols = append(cols, k)
			}
			return true
		})
	}

	out := Report{Rows: len(recs), Columns: make([]ColumnSummary, len(cols))}
	for i, col := range cols {
		out.Columns[i] = summarizeColumn(col, recs)
	}
	return out
}

func summarizeColumn(col string, recs []*records.Record) ColumnSummary {
	s := ColumnSummary{Name: col, Kinds: map[string]int{}}
	set := make(map[string]struct{})

	for _, r := range recs {
		v := r.Value(col)
		k := KindOf(v)
		if k == "" {
			continue
		}
		s.Kinds[k]++
		if k == KindNull {
			continue
		}
		s.Present++

		if s.Capped {
			continue
		}
		set[strings.TrimSpace(records.String(v))] = struct{}{}
		if len(set) >= distinctCapPerColumn {
			s.Capped = true
			s.Distinct = len(set)
			set = nil
		}
	}
	if !s.Capped {
		s.Distinct = len(set)
	}
	s.Kind = dominantKind(s.Kinds)
	return s
}

// dominantKind prefers the most specific kind that covers every present
// value. Integers mixed with floats are floats.
func dominantKind(kinds map[string]int) string {
	present := 0
	for k, n := range kinds {
		if k != KindNull {
			present += n
		}
	}
	switch {
	case present == 0:
		return KindNull
	case kinds[KindInteger] == present:
		return KindInteger
	case kinds[KindInteger]+kinds[KindFloat] == present:
		return KindFloat
	case kinds[KindBoolean] == present:
		return KindBoolean
	case kinds[KindDate] == present:
		return KindDate
	}
	return KindText
}

// KeyCandidates lists columns whose values are all present and unique,
// most specific kind first, then in column order. These are the natural
// choices for a storage unique key or a dedupe hash.
func (r Report) KeyCandidates() []string {
	type cand struct {
		idx  int
		name string
		rank int
	}
	rank := map[string]int{KindInteger: 0, KindText: 1, KindDate: 2, KindFloat: 3, KindBoolean: 4}

	var cands []cand
	for i, c := range r.Columns {
		if c.Unique() && c.Present == r.Rows {
			cands = append(cands, cand{idx: i, name: c.Name, rank: rank[c.Kind]})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].rank < cands[j].rank })

	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.name
	}
	return out
}
