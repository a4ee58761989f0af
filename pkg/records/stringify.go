package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// String converts v to its plain text form, the way a script would print it:
// nil is "null", Undefined is "undefined", whole floats have no fraction,
// very large or very small floats use exponent notation and times are
// RFC3339 in UTC.
func String(v any) string {
	var b strings.Builder
	AppendString(&b, v)
	return b.String()
}

// AppendString appends the text form of v to b. It avoids fmt.Sprint for
// the common types.
func AppendString(b *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")

	case undefined:
		b.WriteString("undefined")

	case string:
		b.WriteString(t)

	case []byte:
		b.Write(t)

	case bool:
		if t {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}

	case int:
		b.WriteString(strconv.Itoa(t))
	case int8:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int16:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))

	case uint:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint8:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint16:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint32:
		b.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))

	case float32:
		b.WriteString(formatNumber(float64(t)))
	case float64:
		b.WriteString(formatNumber(t))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))

	case fmt.Stringer:
		b.WriteString(t.String())

	default:
		b.WriteString(fmt.Sprint(t))
	}
}

// formatNumber renders f with the shortest round-trip digits. Magnitudes in
// [1e-6, 1e21) are written in plain decimal, everything else as d.ddde±x.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	s := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, ok := strings.Cut(s, "e")
	if !ok {
		return s
	}
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + string(sign) + digits
}

// HasEdgeSpace reports whether s starts or ends with a space or tab.
// It is a cheap pre-check before strings.TrimSpace in hot loops.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
