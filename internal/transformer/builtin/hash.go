// Package builtin contains record transforms that can be named in a pipeline
// config.
package builtin

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"csvjson/pkg/records"
)

// Hash computes a deterministic SHA-256 hash from selected fields and writes it
// into a target field on each record.
//
// It gives converted rows a stable, always-non-null key for change detection
// and for loading into tables whose natural key columns may be empty.
//
// Config options for this transform:
//
//	transforms:
//	  - kind: hash
//	    options:
//	      fields: [id, email, signup_date]
//	      target_field: row_hash
//	      include_field_names: true
//	      trim_space: true
//	      overwrite: true
//	      separator: "\u001f"
//
// Canonicalization rules:
//   - Fields are concatenated in the given order using Separator.
//   - Missing, undefined and null values are encoded as a single NUL byte
//     (0x00) so missing differs from empty-string.
//   - Other values use their plain text form (records.String), so the int64 7
//     and the string "7" hash the same.
//   - Output is a lowercase hex string (length 64).
type Hash struct {
	// Fields is the ordered list of input fields used to compute the hash.
	Fields []string

	// TargetField is where the computed hash is stored. A new field is
	// appended at the end of the record.
	TargetField string

	// IncludeFieldNames includes "field=value" in the canonical form.
	IncludeFieldNames bool

	// Separator used between field components in the canonical string.
	// If empty, defaults to ASCII Unit Separator (0x1f).
	Separator string

	// Overwrite controls whether an existing TargetField is replaced.
	// If false and TargetField holds a value, the record is left unchanged.
	Overwrite bool

	// TrimSpace trims leading/trailing whitespace of string values before
	// hashing.
	TrimSpace bool
}

// Apply computes hashes and mutates records in-place.
func (h Hash) Apply(in []*records.Record) []*records.Record {
	if len(in) == 0 {
		return in
	}
	if h.TargetField == "" || len(h.Fields) == 0 {
		return in
	}

	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	var b strings.Builder
	for _, r := range in {
		if r == nil {
			continue
		}
		if !h.Overwrite {
			if v, exists := r.Get(h.TargetField); exists && !records.IsUndefined(v) {
				continue
			}
		}

		sum := hashRecord(&b, r, h.Fields, sep, h.IncludeFieldNames, h.TrimSpace)
		r.Set(h.TargetField, hex.EncodeToString(sum[:]))
	}

	return in
}

func hashRecord(b *strings.Builder, r *records.Record, fields []string, sep string, includeNames bool, trimSpace bool) [sha256.Size]byte {
	b.Reset()
	b.Grow(len(fields) * 20)

	for i, f := range fields {
		if i > 0 {
			b.WriteString(sep)
		}
		if includeNames {
			b.WriteString(f)
			b.WriteByte('=')
		}

		v, ok := r.Get(f)
		if !ok || v == nil || records.IsUndefined(v) {
			b.WriteByte('\x00')
			continue
		}

		if s, isStr := v.(string); isStr && trimSpace && records.HasEdgeSpace(s) {
			b.WriteString(strings.TrimSpace(s))
			continue
		}
		records.AppendString(b, v)
	}

	return sha256.Sum256([]byte(b.String()))
}
