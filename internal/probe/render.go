package probe

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Render layouts accepted by Render.
const (
	LayoutTable    = "table"
	LayoutMarkdown = "markdown"
	LayoutCSV      = "csv"
)

// Render writes rep to w as a table with one row per column, followed by
// the key candidates line. layout is one of the Layout constants; "" means
// LayoutTable.
func Render(w io.Writer, rep Report, layout string) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Kind", "Present", "Null", "Distinct", "Unique", "Kinds"})

	for i, c := range rep.Columns {
		distinct := strconv.Itoa(c.Distinct)
		if c.Capped {
			distinct = ">=" + distinct
		}
		t.AppendRow(table.Row{
			i + 1,
			c.Name,
			c.Kind,
			c.Present,
			c.Kinds[KindNull],
			distinct,
			yesNo(c.Unique()),
			kindBreakdown(c.Kinds),
		})
	}
	t.AppendFooter(table.Row{"", "rows", rep.Rows})

	switch strings.ToLower(layout) {
	case "", LayoutTable:
		t.Render()
	case LayoutMarkdown:
		t.RenderMarkdown()
	case LayoutCSV:
		t.RenderCSV()
		return nil
	default:
		return fmt.Errorf("probe: unknown layout %q (want table, markdown or csv)", layout)
	}

	keys := rep.KeyCandidates()
	if len(keys) == 0 {
		_, err := fmt.Fprintln(w, "key candidates: none")
		return err
	}
	_, err := fmt.Fprintf(w, "key candidates: %s\n", strings.Join(keys, ", "))
	return err
}

var kindOrder = []string{KindInteger, KindFloat, KindBoolean, KindDate, KindText, KindNull}

func kindBreakdown(kinds map[string]int) string {
	var parts []string
	for _, k := range kindOrder {
		if n := kinds[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
