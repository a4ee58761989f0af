package transformer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"csvjson/pkg/records"
)

// namedMappers are the mappers that can be referenced from configuration.
// Undefined passes through every mapper except null_if_empty.
var namedMappers = map[string]Mapper{
	"string":        mapString,
	"int":           mapInt,
	"float":         mapFloat,
	"bool":          mapBool,
	"upper":         textMapper(strings.ToUpper),
	"lower":         textMapper(strings.ToLower),
	"trim":          textMapper(strings.TrimSpace),
	"null_if_empty": mapNullIfEmpty,
}

// MapperByName returns a registered mapper. Several names can be chained
// with '|' and run left to right, e.g. "trim|upper".
func MapperByName(name string) (Mapper, error) {
	parts := strings.Split(name, "|")
	chain := make([]Mapper, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		m, ok := namedMappers[p]
		if !ok {
			return nil, fmt.Errorf("unknown mapper %q (known: %s)", p, strings.Join(MapperNames(), ", "))
		}
		chain = append(chain, m)
	}
	if len(chain) == 1 {
		return chain[0], nil
	}
	return func(v any) any {
		for _, m := range chain {
			v = m(v)
		}
		return v
	}, nil
}

// MapperNames lists the registered mapper names in sorted order.
func MapperNames() []string {
	out := make([]string, 0, len(namedMappers))
	for k := range namedMappers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MappersFromNames resolves a header → mapper-name table.
func MappersFromNames(byHeader map[string]string) (map[string]Mapper, error) {
	if len(byHeader) == 0 {
		return nil, nil
	}
	out := make(map[string]Mapper, len(byHeader))
	for h, name := range byHeader {
		m, err := MapperByName(name)
		if err != nil {
			return nil, fmt.Errorf("custom type mapping for %q: %w", h, err)
		}
		out[h] = m
	}
	return out, nil
}

func mapString(v any) any {
	if records.IsUndefined(v) {
		return v
	}
	return records.String(v)
}

func mapInt(v any) any {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return int64(math.Trunc(t))
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int64(math.Trunc(f))
		}
	}
	if records.IsUndefined(v) {
		return v
	}
	return nil
}

func mapFloat(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bool:
		if t {
			return 1.0
		}
		return 0.0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	if records.IsUndefined(v) {
		return v
	}
	return nil
}

func mapBool(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		if b, ok := parseBoolLoose(t); ok {
			return b
		}
	}
	if records.IsUndefined(v) {
		return v
	}
	return nil
}

func textMapper(fn func(string) string) Mapper {
	return func(v any) any {
		if v == nil || records.IsUndefined(v) {
			return v
		}
		return fn(records.String(v))
	}
}

func mapNullIfEmpty(v any) any {
	if records.IsUndefined(v) {
		return nil
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}
