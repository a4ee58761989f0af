// Package csv converts delimited text into ordered records.
//
// Input is read one physical line at a time. Lines that leave a quoted field
// open are joined with the following lines, the first logical line becomes
// the header row, and every later line becomes one record built through a
// transformer.Plan. Records are collected in chunks of Config.ChunkSize.
package csv

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"csvjson/internal/config"
	"csvjson/internal/datasource/file"
	"csvjson/internal/metrics"
	"csvjson/internal/transformer"
	"csvjson/pkg/records"
)

// DefaultMaxLineBytes bounds a single physical input line.
const DefaultMaxLineBytes = 16 << 20

// Continuation selects how a line that ends inside a quoted field is detected.
type Continuation uint8

const (
	// DelimiterQuote treats a line with an odd number of `"<delimiter>`
	// sequences as unfinished.
	DelimiterQuote Continuation = iota
	// QuoteParity tracks the parity of all double quotes seen since the last
	// complete logical line.
	QuoteParity
)

// ParseContinuation maps "delimiter_quote" (or "") and "quote_parity".
func ParseContinuation(s string) (Continuation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "delimiter_quote":
		return DelimiterQuote, nil
	case "quote_parity":
		return QuoteParity, nil
	}
	return DelimiterQuote, fmt.Errorf("unknown continuation mode %q", s)
}

func (c Continuation) String() string {
	if c == QuoteParity {
		return "quote_parity"
	}
	return "delimiter_quote"
}

// Config controls a conversion. The zero value splits on commas and keeps
// every value as a string.
type Config struct {
	Delimiter rune

	// PreserveTypes coerces field text with Rules (DefaultRules when nil).
	PreserveTypes bool
	Rules         []transformer.Rule

	// DefaultValue replaces absent and empty values when UseDefault is set.
	UseDefault   bool
	DefaultValue any

	TrimWhitespace bool

	// CustomTypeMapping runs last for the named header and wins over every
	// other step.
	CustomTypeMapping map[string]transformer.Mapper

	// ChunkSize is the number of records per flushed chunk. Zero or less
	// means a single chunk holding everything.
	ChunkSize int

	Continuation Continuation

	// AllowUnterminated drops a quoted field still open at end of input
	// instead of failing with ErrUnterminatedQuote.
	AllowUnterminated bool

	// MaxLineBytes bounds one physical line. Zero means DefaultMaxLineBytes.
	MaxLineBytes int
}

func (c Config) withDefaults() Config {
	if c.Delimiter == 0 {
		c.Delimiter = ','
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
	return c
}

func (c Config) coerceSpec() transformer.CoerceSpec {
	return transformer.CoerceSpec{
		PreserveTypes:  c.PreserveTypes,
		Rules:          c.Rules,
		UseDefault:     c.UseDefault,
		DefaultValue:   c.DefaultValue,
		TrimWhitespace: c.TrimWhitespace,
		Mappers:        c.CustomTypeMapping,
	}
}

// ConfigFromOptions reads parser options:
//
//	delimiter, preserve_types, default_value, trim_whitespace,
//	custom_type_mapping (header -> mapper name), chunk_size, rules,
//	continuation, allow_unterminated, max_line_bytes
func ConfigFromOptions(opt config.Options) (Config, error) {
	cfg := Config{
		Delimiter:         opt.Rune("delimiter", ','),
		PreserveTypes:     opt.Bool("preserve_types", false),
		TrimWhitespace:    opt.Bool("trim_whitespace", false),
		ChunkSize:         opt.Int("chunk_size", 0),
		AllowUnterminated: opt.Bool("allow_unterminated", false),
		MaxLineBytes:      opt.Int("max_line_bytes", 0),
	}

	if opt.Has("default_value") {
		cfg.UseDefault = true
		cfg.DefaultValue = opt.Any("default_value")
	}

	mappers, err := transformer.MappersFromNames(opt.StringMap("custom_type_mapping"))
	if err != nil {
		return Config{}, err
	}
	cfg.CustomTypeMapping = mappers

	if opt.Has("rules") {
		rules, err := transformer.RulesByName(opt.StringSlice("rules"))
		if err != nil {
			return Config{}, err
		}
		cfg.Rules = rules
	}

	cfg.Continuation, err = ParseContinuation(opt.String("continuation", ""))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Consume feeds every line of r to the session and closes it. ctx is checked
// between lines. Read errors are wrapped with the number of the line that
// failed.
func (s *Session) Consume(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, s.cfg.MaxLineBytes)), s.cfg.MaxLineBytes)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Feed(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("csv: read line %d: %w", s.Lines()+1, err)
	}
	return s.Close()
}

// Convert reads all of r and returns its records in input order. It either
// returns every record or an error, never a partial result.
func Convert(ctx context.Context, r io.Reader, cfg Config) ([]*records.Record, error) {
	_, recs, err := ConvertWithHeaders(ctx, r, cfg)
	return recs, err
}

// ConvertWithHeaders is Convert that also returns the header row.
func ConvertWithHeaders(ctx context.Context, r io.Reader, cfg Config) ([]string, []*records.Record, error) {
	start := time.Now()

	all := make([]*records.Record, 0)
	s := NewSession(cfg, func(chunk []*records.Record) error {
		all = append(all, chunk...)
		return nil
	})

	err := s.Consume(ctx, r)
	observe("convert", s, err, start)
	if err != nil {
		return nil, nil, err
	}
	return s.Headers(), all, nil
}

// ConvertFile converts the file at path. A leading byte order mark is
// skipped. The file is closed before ConvertFile returns.
func ConvertFile(ctx context.Context, path string, cfg Config) ([]*records.Record, error) {
	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Convert(ctx, rc, cfg)
}

// StreamChunks reads r and sends every flushed chunk to out as soon as it is
// complete. It does not close out. Chunks already sent before an error stay
// delivered; the caller decides whether to discard them.
func StreamChunks(ctx context.Context, r io.Reader, cfg Config, out chan<- []*records.Record) error {
	start := time.Now()

	s := NewSession(cfg, func(chunk []*records.Record) error {
		select {
		case out <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	err := s.Consume(ctx, r)
	observe("stream", s, err, start)
	return err
}

func observe(step string, s *Session, err error, start time.Time) {
	metrics.IncCounter(metrics.LinesTotal, float64(s.Lines()), nil)
	if err == nil {
		metrics.RecordRecords("converted", s.Emitted())
	}
	metrics.RecordStep(step, err, time.Since(start))
}
