// Package config defines the csvjson pipeline configuration, its loader and
// its validation rules.
package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"csvjson/internal/transformer"
)

// Pipeline is one conversion run: where the CSV comes from, how it is parsed,
// which dataset transforms run on the result and where the result goes.
type Pipeline struct {
	Job        string      `koanf:"job" json:"job" yaml:"job"`
	Source     Source      `koanf:"source" json:"source" yaml:"source"`
	Parser     Parser      `koanf:"parser" json:"parser" yaml:"parser"`
	Transforms []Transform `koanf:"transforms" json:"transforms" yaml:"transforms"`
	Output     Output      `koanf:"output" json:"output" yaml:"output"`
	Storage    Storage     `koanf:"storage" json:"storage" yaml:"storage"`
	Metrics    Metrics     `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Logging    Logging     `koanf:"logging" json:"logging" yaml:"logging"`
}

// Source selects the input. Only "file" is supported; a Path of "-" reads
// standard input.
type Source struct {
	Kind string     `koanf:"kind" json:"kind" yaml:"kind"`
	File SourceFile `koanf:"file" json:"file" yaml:"file"`
}

// SourceFile configures the local file source.
type SourceFile struct {
	Path     string `koanf:"path" json:"path" yaml:"path"`
	Encoding string `koanf:"encoding" json:"encoding" yaml:"encoding"`
}

// Parser selects the parser and its options. Only "csv" is supported.
type Parser struct {
	Kind    string  `koanf:"kind" json:"kind" yaml:"kind"`
	Options Options `koanf:"options" json:"options" yaml:"options"`
}

// Transform is one dataset operation applied after conversion.
type Transform struct {
	Kind    string  `koanf:"kind" json:"kind" yaml:"kind"`
	Options Options `koanf:"options" json:"options" yaml:"options"`
}

// Output configures the writer. Format is json, ndjson, yaml or none.
// An empty Path or "-" writes to standard output.
type Output struct {
	Format string `koanf:"format" json:"format" yaml:"format"`
	Path   string `koanf:"path" json:"path" yaml:"path"`
	Indent bool   `koanf:"indent" json:"indent" yaml:"indent"`
}

// Storage configures an optional SQL sink. An empty Kind disables it.
type Storage struct {
	Kind string   `koanf:"kind" json:"kind" yaml:"kind"`
	DB   DBConfig `koanf:"db" json:"db" yaml:"db"`
}

// DBConfig holds the connection and target table of a SQL sink. Unique
// names the columns of a UNIQUE constraint; rows repeating an existing key
// are skipped, so re-running the same input is idempotent.
type DBConfig struct {
	DSN       string   `koanf:"dsn" json:"dsn" yaml:"dsn"`
	Table     string   `koanf:"table" json:"table" yaml:"table"`
	BatchSize int      `koanf:"batch_size" json:"batch_size" yaml:"batch_size"`
	Unique    []string `koanf:"unique" json:"unique" yaml:"unique"`
}

// Metrics selects the metrics backend: none or datadog.
type Metrics struct {
	Backend    string        `koanf:"backend" json:"backend" yaml:"backend"`
	Tags       []string      `koanf:"tags" json:"tags" yaml:"tags"`
	FlushEvery time.Duration `koanf:"flush_every" json:"flush_every" yaml:"flush_every"`
}

// Logging configures the process logger.
type Logging struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path points at the offending key in
// dotted form, e.g. "transforms[2].options.key".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Transform kinds understood by the CLI.
const (
	TransformDedupe     = "dedupe"
	TransformDuplicates = "duplicates"
	TransformFilter     = "filter"
	TransformSort       = "sort"
	TransformHash       = "hash"
	TransformGroupBy    = "group_by"
)

// ValidatePipeline checks p for mistakes that would make a run fail or
// silently do the wrong thing. It never stops at the first issue.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	errf := func(path, format string, a ...any) {
		out = append(out, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, a...)})
	}
	warnf := func(path, format string, a ...any) {
		out = append(out, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		warnf("job", "job name is empty; metrics will use the default")
	}

	switch p.Source.Kind {
	case "", "file":
	default:
		errf("source.kind", "unsupported source %q (want file)", p.Source.Kind)
	}

	switch p.Parser.Kind {
	case "", "csv":
	default:
		errf("parser.kind", "unsupported parser %q (want csv)", p.Parser.Kind)
	}
	validateParserOptions(p.Parser.Options, errf, warnf)

	terminal := -1
	for i, t := range p.Transforms {
		path := fmt.Sprintf("transforms[%d]", i)
		if terminal >= 0 {
			errf(path, "transform after group_by at transforms[%d]; group_by must be last", terminal)
		}
		switch t.Kind {
		case TransformDedupe, TransformDuplicates:
		case TransformFilter:
			if t.Options.String("field", "") == "" {
				errf(path+".options.field", "filter needs a field")
			}
			if !t.Options.Has("equals") && !t.Options.Bool("not_empty", false) {
				errf(path+".options", "filter needs equals or not_empty")
			}
		case TransformSort:
			if t.Options.String("key", "") == "" {
				errf(path+".options.key", "sort needs a key")
			}
		case TransformHash:
			if len(t.Options.StringSlice("fields")) == 0 {
				errf(path+".options.fields", "hash needs at least one field")
			}
			if t.Options.String("target_field", "") == "" {
				errf(path+".options.target_field", "hash needs a target_field")
			}
		case TransformGroupBy:
			if t.Options.String("key", "") == "" {
				errf(path+".options.key", "group_by needs a key")
			}
			terminal = i
		case "":
			errf(path+".kind", "transform kind is empty")
		default:
			errf(path+".kind", "unknown transform %q", t.Kind)
		}
	}

	switch p.Output.Format {
	case "", "json", "ndjson", "yaml", "none":
	default:
		errf("output.format", "unsupported format %q (want json, ndjson, yaml or none)", p.Output.Format)
	}
	if terminal >= 0 && p.Output.Format == "ndjson" {
		errf("output.format", "ndjson cannot represent group_by output")
	}

	switch p.Storage.Kind {
	case "":
	case "sqlite", "postgres", "mssql":
		if p.Storage.DB.DSN == "" {
			errf("storage.db.dsn", "%s storage needs a dsn", p.Storage.Kind)
		}
		if p.Storage.DB.Table == "" {
			errf("storage.db.table", "%s storage needs a table", p.Storage.Kind)
		}
		if terminal >= 0 {
			errf("storage", "grouped output cannot be stored; drop group_by or storage")
		}
		if p.Storage.DB.BatchSize < 0 {
			errf("storage.db.batch_size", "batch_size must be >= 0")
		}
	default:
		errf("storage.kind", "unsupported storage %q (want sqlite, postgres or mssql)", p.Storage.Kind)
	}
	if p.Storage.Kind == "" && p.Output.Format == "none" {
		warnf("output.format", "output is none and no storage is configured; results are discarded")
	}

	switch p.Metrics.Backend {
	case "", "none", "datadog":
	default:
		errf("metrics.backend", "unsupported metrics backend %q (want none or datadog)", p.Metrics.Backend)
	}
	if p.Metrics.FlushEvery < 0 {
		errf("metrics.flush_every", "flush_every must be >= 0")
	}

	switch strings.ToLower(p.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errf("logging.level", "unknown level %q", p.Logging.Level)
	}
	switch strings.ToLower(p.Logging.Format) {
	case "", "text", "json":
	default:
		errf("logging.format", "unknown format %q (want text or json)", p.Logging.Format)
	}

	return out
}

func validateParserOptions(o Options, errf, warnf func(path, format string, a ...any)) {
	const base = "parser.options"

	if s, ok := o["delimiter"].(string); ok {
		switch strings.ToLower(s) {
		case `\t`, "tab":
		default:
			if utf8.RuneCountInString(s) != 1 {
				errf(base+".delimiter", "delimiter must be a single character, got %q", s)
			}
		}
	} else if o.Has("delimiter") {
		errf(base+".delimiter", "delimiter must be a string")
	}
	switch o.Rune("delimiter", ',') {
	case '"', '\n', '\r':
		errf(base+".delimiter", "delimiter cannot be a quote or line break")
	}

	if o.Int("chunk_size", 0) < 0 {
		errf(base+".chunk_size", "chunk_size must be >= 0")
	}
	if o.Int("max_line_bytes", 0) < 0 {
		errf(base+".max_line_bytes", "max_line_bytes must be >= 0")
	}

	switch o.String("continuation", "") {
	case "", "delimiter_quote", "quote_parity":
	default:
		errf(base+".continuation", "unknown continuation mode %q (want delimiter_quote or quote_parity)", o.String("continuation", ""))
	}

	for header, name := range o.StringMap("custom_type_mapping") {
		if _, err := transformer.MapperByName(name); err != nil {
			errf(base+".custom_type_mapping."+header, "%v", err)
		}
	}

	if o.Has("rules") {
		if !o.Bool("preserve_types", false) {
			warnf(base+".rules", "rules are ignored unless preserve_types is true")
		}
		if _, err := transformer.RulesByName(o.StringSlice("rules")); err != nil {
			errf(base+".rules", "%v", err)
		}
	}
}
