package records

import (
	"bytes"
	"sort"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FindDuplicates returns every record whose canonical form matches an
// earlier record, in encounter order. The first occurrence is never
// returned. Records that cannot be encoded are treated as unique.
func FindDuplicates(recs []*Record) []*Record {
	seen := make(map[string]struct{}, len(recs))
	var dups []*Record
	for _, r := range recs {
		key, err := Canonical(r)
		if err != nil {
			continue
		}
		if _, ok := seen[key]; ok {
			dups = append(dups, r)
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// Unique returns recs without the records FindDuplicates would report.
func Unique(recs []*Record) []*Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		key, err := Canonical(r)
		if err == nil {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// Filter returns the records for which pred is true, in their original order.
func Filter(recs []*Record, pred func(*Record) bool) []*Record {
	out := make([]*Record, 0, len(recs))
	for _, r := range recs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortByKey stably reorders recs in place by the value under key and returns
// the same slice. Records missing the key, or whose values do not compare,
// keep their relative order.
func SortByKey(recs []*Record, key string, ascending bool) []*Record {
	sort.SliceStable(recs, func(i, j int) bool {
		c := Compare(recs[i].Value(key), recs[j].Value(key))
		if ascending {
			return c < 0
		}
		return c > 0
	})
	return recs
}

// Groups is the result of GroupBy: record lists keyed by the text form of the
// grouping value, in the order the keys were first seen.
type Groups struct {
	keys []string
	m    map[string][]*Record
}

// GroupBy partitions recs by the text form of the value under key. Records
// keep their input order within a group. A missing key groups under
// "undefined" and a null value under "null".
func GroupBy(recs []*Record, key string) *Groups {
	g := &Groups{m: make(map[string][]*Record)}
	for _, r := range recs {
		k := String(r.Value(key))
		if _, ok := g.m[k]; !ok {
			g.keys = append(g.keys, k)
		}
		g.m[k] = append(g.m[k], r)
	}
	return g
}

// Keys returns the group keys in first-seen order.
func (g *Groups) Keys() []string {
	out := make([]string, len(g.keys))
	copy(out, g.keys)
	return out
}

// Get returns the records of one group.
func (g *Groups) Get(key string) []*Record { return g.m[key] }

// Len returns the number of groups.
func (g *Groups) Len() int { return len(g.keys) }

// MarshalJSON encodes the groups as one object, keys in first-seen order.
func (g *Groups) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(g.m[k])
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// MarshalYAML encodes the groups as a mapping that keeps key order.
func (g *Groups) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range g.keys {
		kn := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		vn := &yaml.Node{}
		if err := vn.Encode(g.m[k]); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, kn, vn)
	}
	return n, nil
}
