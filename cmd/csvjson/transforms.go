package main

import (
	"fmt"
	"strings"

	"csvjson/internal/config"
	"csvjson/internal/transformer/builtin"
	"csvjson/pkg/records"
)

// applyTransforms runs ts over recs in order. A group_by transform ends the
// chain and its groups are returned instead of records.
func applyTransforms(recs []*records.Record, ts []config.Transform) ([]*records.Record, *records.Groups, error) {
	for i, t := range ts {
		o := t.Options
		switch t.Kind {
		case config.TransformDedupe:
			recs = records.Unique(recs)

		case config.TransformDuplicates:
			recs = records.FindDuplicates(recs)

		case config.TransformFilter:
			recs = records.Filter(recs, filterPredicate(o))

		case config.TransformSort:
			recs = records.SortByKey(recs, o.String("key", ""), !o.Bool("descending", false))

		case config.TransformHash:
			recs = builtin.Hash{
				Fields:            o.StringSlice("fields"),
				TargetField:       o.String("target_field", "row_hash"),
				IncludeFieldNames: o.Bool("include_field_names", false),
				Separator:         o.String("separator", ""),
				Overwrite:         o.Bool("overwrite", true),
				TrimSpace:         o.Bool("trim_space", false),
			}.Apply(recs)

		case config.TransformGroupBy:
			if i != len(ts)-1 {
				return nil, nil, fmt.Errorf("transforms[%d]: group_by must be the last transform", i)
			}
			return nil, records.GroupBy(recs, o.String("key", "")), nil

		default:
			return nil, nil, fmt.Errorf("transforms[%d]: unknown transform %q", i, t.Kind)
		}
	}
	return recs, nil, nil
}

// filterPredicate keeps records whose field equals the "equals" option
// (compared in string form) and, with not_empty, whose field is present and
// not blank.
func filterPredicate(o config.Options) func(*records.Record) bool {
	field := o.String("field", "")
	want, hasWant := o.Any("equals"), o.Has("equals")
	wantStr := records.String(want)
	notEmpty := o.Bool("not_empty", false)

	return func(r *records.Record) bool {
		v := r.Value(field)
		if notEmpty {
			if v == nil || records.IsUndefined(v) {
				return false
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
				return false
			}
		}
		if hasWant {
			if records.IsUndefined(v) {
				return false
			}
			return records.String(v) == wantStr
		}
		return true
	}
}
