package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a free-form option bag for a parser or transform. Values come
// from YAML/JSON files, environment variables or flags, so every getter
// accepts both the native type and its string spelling.
type Options map[string]any

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Any returns the raw value under key, or nil.
func (o Options) Any(key string) any {
	return o[key]
}

// String returns key as a string, or def when missing or nil.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns key as a bool. Unparseable values yield def.
func (o Options) Bool(key string, def bool) bool {
	switch t := o[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return b
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	}
	return def
}

// Int returns key as an int. Unparseable values yield def.
func (o Options) Int(key string, def int) int {
	switch t := o[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	}
	return def
}

// Rune returns the first rune of the string under key. The spellings "\t",
// "tab" and a literal tab all mean a tab character.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o[key].(string)
	if !ok || s == "" {
		return def
	}
	switch strings.ToLower(s) {
	case `\t`, "tab":
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringSlice returns key as a list of strings. A single string is split on
// commas.
func (o Options) StringSlice(key string) []string {
	switch t := o[key].(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			out = append(out, fmt.Sprint(v))
		}
		return out
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		parts := strings.Split(t, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

// StringMap returns key as a map of strings. Non-string values are
// formatted with fmt.Sprint.
func (o Options) StringMap(key string) map[string]string {
	switch t := o[key].(type) {
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, v := range t {
			out[k] = v
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(t))
		for k, v := range t {
			out[k] = fmt.Sprint(v)
		}
		return out
	case Options:
		return Options{key: map[string]any(t)}.StringMap(key)
	}
	return nil
}
