// Package output serializes converted records and groups as JSON, NDJSON or
// YAML. Field order is kept in every format and undefined fields are left out.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"csvjson/pkg/records"
)

// Format is an output encoding.
type Format string

const (
	JSON   Format = "json"
	NDJSON Format = "ndjson"
	YAML   Format = "yaml"
)

// ParseFormat accepts "json", "ndjson" (or "jsonl") and "yaml" (or "yml").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "ndjson", "jsonl":
		return NDJSON, nil
	case "yaml", "yml":
		return YAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, ndjson or yaml)", s)
}

// Options control a writer. Indent is the number of spaces per level; zero
// means compact JSON and two-space YAML. NDJSON ignores it.
type Options struct {
	Format Format
	Indent int
}

// WriteRecords writes recs to w. JSON is a single array, NDJSON one object
// per line and YAML a sequence of mappings.
func WriteRecords(w io.Writer, recs []*records.Record, opt Options) error {
	if recs == nil {
		recs = []*records.Record{}
	}
	switch opt.Format {
	case NDJSON:
		for i, r := range recs {
			if err := writeLine(w, r); err != nil {
				return fmt.Errorf("write record %d: %w", i+1, err)
			}
		}
		return nil
	case YAML:
		return writeYAML(w, recs, opt.Indent)
	case JSON, "":
		return writeJSON(w, recs, opt.Indent)
	}
	return fmt.Errorf("unknown output format %q", opt.Format)
}

// groupLine is the NDJSON shape of one group.
type groupLine struct {
	Key     string            `json:"key"`
	Records []*records.Record `json:"records"`
}

// WriteGroups writes g to w. JSON and YAML produce one object keyed by group
// key in first-seen order; NDJSON writes one {"key", "records"} object per
// group.
func WriteGroups(w io.Writer, g *records.Groups, opt Options) error {
	switch opt.Format {
	case NDJSON:
		for _, k := range g.Keys() {
			if err := writeLine(w, groupLine{Key: k, Records: g.Get(k)}); err != nil {
				return fmt.Errorf("write group %q: %w", k, err)
			}
		}
		return nil
	case YAML:
		return writeYAML(w, g, opt.Indent)
	case JSON, "":
		return writeJSON(w, g, opt.Indent)
	}
	return fmt.Errorf("unknown output format %q", opt.Format)
}

func writeLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

func writeJSON(w io.Writer, v any, indent int) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent > 0 {
		enc.SetIndent("", strings.Repeat(" ", indent))
	}
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any, indent int) error {
	if indent <= 0 {
		indent = 2
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(indent)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// Create opens path for writing. "-" or "" writes to stdout. Output is
// buffered; Close flushes it and closes the file.
func Create(path string, stdout io.Writer) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		if stdout == nil {
			stdout = os.Stdout
		}
		return &bufferedWriter{Writer: bufio.NewWriter(stdout)}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &bufferedWriter{Writer: bufio.NewWriter(f), c: f}, nil
}

type bufferedWriter struct {
	*bufio.Writer
	c io.Closer
}

func (b *bufferedWriter) Close() error {
	err := b.Flush()
	if b.c != nil {
		if cerr := b.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
