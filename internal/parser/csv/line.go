package csv

import "strings"

type scanState uint8

const (
	unquoted scanState = iota
	quoted
	quotedSeenQuote
)

// ParseLine splits one logical line into fields.
//
// A field runs from the line start or a delimiter to the next delimiter that
// is not inside a quoted run. Only a quote opening a field starts a quoted
// run; a quote anywhere else is data. A field whose raw text starts and ends
// with a double quote has those quotes removed and every "" turned into ".
// Any other field is returned as is. The result always has one more element
// than the number of splitting delimiters, so empty fields come back as "".
//
//	ParseLine(`a,"b,c","d""e"`, ',') == []string{"a", "b,c", `d"e`}
func ParseLine(line string, delimiter rune) []string {
	fields := make([]string, 0, strings.Count(line, string(delimiter))+1)

	state := unquoted
	start := 0
	for i, c := range line {
		switch state {
		case quoted:
			if c == '"' {
				state = quotedSeenQuote
			}
			continue
		case quotedSeenQuote:
			if c == '"' {
				state = quoted
				continue
			}
			state = unquoted
		}

		switch {
		case c == '"' && i == start:
			state = quoted
		case c == delimiter:
			fields = append(fields, unquote(line[start:i]))
			start = i + len(string(delimiter))
		}
	}
	return append(fields, unquote(line[start:]))
}

func unquote(raw string) string {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return raw
	}
	return strings.ReplaceAll(raw[1:len(raw)-1], `""`, `"`)
}

// delimiterQuotes counts the two-character sequence `"<delimiter>` in line.
func delimiterQuotes(line string, delimiter rune) int {
	return strings.Count(line, `"`+string(delimiter))
}
