// Package transformer turns raw CSV field text into typed record values.
//
// Coercion is an ordered list of rules. The first rule whose Match accepts the
// field text converts it; text no rule accepts stays a string. A Plan binds a
// rule list, default substitution, trimming and per-header mappers to one
// header row so the per-field work in the hot loop is a slice lookup.
package transformer

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Rule is one coercion step.
//
// Match receives the raw field text and reports whether the rule applies.
// Convert is only called after Match returned true.
type Rule struct {
	Name    string
	Match   func(s string) bool
	Convert func(s string) any
}

var numericRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// NumericRule converts decimal numbers. Text containing a '.' becomes a
// float64; anything else becomes an int64. An exponent form without a '.'
// is an int64 when its value is whole and fits, otherwise a float64, as is
// an integer too large for int64.
var NumericRule = Rule{
	Name: "numeric",
	Match: func(s string) bool {
		return numericRe.MatchString(strings.TrimSpace(s))
	},
	Convert: func(s string) any {
		t := strings.TrimSpace(s)
		if strings.Contains(t, ".") {
			f, _ := strconv.ParseFloat(t, 64)
			return f
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
		f, _ := strconv.ParseFloat(t, 64)
		if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
		return f
	},
}

// BooleanRule converts "true" and "false" in any letter case.
var BooleanRule = Rule{
	Name: "boolean",
	Match: func(s string) bool {
		t := strings.TrimSpace(s)
		return strings.EqualFold(t, "true") || strings.EqualFold(t, "false")
	},
	Convert: func(s string) any {
		return strings.EqualFold(strings.TrimSpace(s), "true")
	},
}

// DateRule converts text that parses with one of DateLayouts.
var DateRule = Rule{
	Name: "date",
	Match: func(s string) bool {
		_, ok := ParseDate(s)
		return ok
	},
	Convert: func(s string) any {
		t, _ := ParseDate(s)
		return t
	},
}

// NullRule converts "null" in any letter case, and blank text, to nil.
var NullRule = Rule{
	Name: "null",
	Match: func(s string) bool {
		t := strings.TrimSpace(s)
		return t == "" || strings.EqualFold(t, "null")
	},
	Convert: func(string) any { return nil },
}

// DefaultRules is the coercion order applied when types are preserved:
// numeric, boolean, date, null.
func DefaultRules() []Rule {
	return []Rule{NumericRule, BooleanRule, DateRule, NullRule}
}

// RulesByName builds a rule list from rule names, keeping the given order.
// An empty list yields nil, which means DefaultRules to a Plan.
func RulesByName(names []string) ([]Rule, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Rule, 0, len(names))
	for _, n := range names {
		var r Rule
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "numeric":
			r = NumericRule
		case "boolean", "bool":
			r = BooleanRule
		case "date":
			r = DateRule
		case "null":
			r = NullRule
		default:
			return nil, fmt.Errorf("unknown coercion rule %q (known: numeric, boolean, date, null)", n)
		}
		out = append(out, r)
	}
	return out, nil
}

// DateLayouts are tried in order by ParseDate. Layouts without a zone yield
// UTC times.
var DateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.RFC822,
	time.RFC822Z,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 2 2006",
	"Mon Jan 2 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006-01",
}

// ParseDate parses s with the first matching layout from DateLayouts.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, lay := range DateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Coerce runs s through rules and returns the first conversion, or s itself
// when no rule matches.
func Coerce(rules []Rule, s string) any {
	for _, r := range rules {
		if r.Match != nil && r.Match(s) {
			if r.Convert == nil {
				return s
			}
			return r.Convert(s)
		}
	}
	return s
}

// parseBoolLoose accepts the usual spellings of a boolean flag.
func parseBoolLoose(s string) (bool, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}
