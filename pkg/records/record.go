// Package records holds the in-memory record type produced by the CSV converter
// and the dataset operations (duplicates, filter, sort, group-by) that run on
// already-converted data.
package records

import (
	"bytes"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type undefined struct{}

// Undefined marks a field that has a header but no value in the source row.
// Undefined fields keep their position in the record but are omitted from
// every serialization.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined marker.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Record is an ordered mapping from field name to value.
//
// Values are one of: string, int64, float64, bool, time.Time, nil (null) or
// Undefined. Custom type mappings may store anything else; such values are
// serialized with their default JSON encoding.
//
// Setting an existing key replaces its value in place (position is kept), so
// duplicate header names collapse onto the first position.
type Record struct {
	keys []string
	vals []any
	idx  map[string]int
}

// New returns an empty record with room for n fields.
func New(n int) *Record {
	return &Record{
		keys: make([]string, 0, n),
		vals: make([]any, 0, n),
		idx:  make(map[string]int, n),
	}
}

// Of builds a record from alternating key/value arguments.
// It panics if a key is not a string; it is meant for literals and tests.
func Of(kv ...any) *Record {
	r := New(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

// Set assigns v under key.
func (r *Record) Set(key string, v any) {
	if i, ok := r.idx[key]; ok {
		r.vals[i] = v
		return
	}
	r.idx[key] = len(r.keys)
	r.keys = append(r.keys, key)
	r.vals = append(r.vals, v)
}

// Get returns the value under key. ok is false when the key is not present.
// A present key may hold Undefined.
func (r *Record) Get(key string) (v any, ok bool) {
	if r == nil {
		return Undefined, false
	}
	i, ok := r.idx[key]
	if !ok {
		return Undefined, false
	}
	return r.vals[i], true
}

// Value returns the value under key, or Undefined when the key is missing.
func (r *Record) Value(key string) any {
	v, _ := r.Get(key)
	return v
}

// Keys returns the field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields, including Undefined ones.
func (r *Record) Len() int { return len(r.keys) }

// Range calls fn for every field in order until fn returns false.
func (r *Record) Range(fn func(key string, v any) bool) {
	for i, k := range r.keys {
		if !fn(k, r.vals[i]) {
			return
		}
	}
}

// MarshalJSON encodes r as a JSON object with fields in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	for i, k := range r.keys {
		v := r.vals[i]
		if IsUndefined(v) {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')

		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalYAML encodes r as a mapping node that keeps field order.
func (r *Record) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for i, k := range r.keys {
		v := r.vals[i]
		if IsUndefined(v) {
			continue
		}
		kn := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		vn := &yaml.Node{}
		if err := vn.Encode(v); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, kn, vn)
	}
	return n, nil
}

// Canonical returns the canonical text form of r used for equality checks:
// its JSON encoding. Field order and values both matter.
func Canonical(r *Record) (string, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
