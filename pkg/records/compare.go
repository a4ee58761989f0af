package records

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Compare orders a and b with loose relational semantics: two strings
// compare lexically, anything else is compared as numbers. It returns -1, 0
// or 1. Pairs that have no numeric meaning (NaN, Undefined, nested values)
// compare equal, so a stable sort leaves them where they were.
func Compare(a, b any) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs)
	}

	x, y := toNumber(a), toNumber(b)
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return 0
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// toNumber converts v the way a numeric comparison would: null is 0, booleans
// are 0 or 1, times are milliseconds since the epoch, strings are parsed
// after trimming (empty is 0). Everything else is NaN.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 1
		}
		return 0
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case time.Time:
		return float64(t.UnixMilli())
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		switch s {
		case "Infinity", "+Infinity":
			return math.Inf(1)
		case "-Infinity":
			return math.Inf(-1)
		}
		if n, ok := parseHexLiteral(s); ok {
			return n
		}
		// ParseFloat accepts "inf" and "nan" spellings that are not numbers here.
		if !strings.ContainsAny(s, "0123456789") {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return f
			}
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func parseHexLiteral(s string) (float64, bool) {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return math.NaN(), true
	}
	return float64(n), true
}
