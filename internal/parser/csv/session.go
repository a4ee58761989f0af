package csv

import (
	"errors"
	"fmt"
	"strings"

	"csvjson/internal/metrics"
	"csvjson/internal/transformer"
	"csvjson/pkg/records"
)

// ErrUnterminatedQuote is returned when input ends while a quoted field that
// spans lines is still open.
var ErrUnterminatedQuote = errors.New("csv: unterminated quoted field at end of input")

// ParseError reports the input line a conversion error belongs to.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Session is the line-by-line state of one conversion: the continuation
// buffer, the field plan built from the header row, and the chunk being
// filled. Records leave a Session only through emit, one chunk at a time.
//
// A Session is not safe for concurrent use.
type Session struct {
	cfg  Config
	emit func([]*records.Record) error

	line int

	buf       strings.Builder
	bufStart  int
	openQuote bool

	plan *transformer.Plan

	chunk   []*records.Record
	emitted int
}

// NewSession returns a Session that hands every flushed chunk to emit. An
// error from emit stops the conversion and is returned from Feed or Close.
func NewSession(cfg Config, emit func([]*records.Record) error) *Session {
	cfg = cfg.withDefaults()
	return &Session{cfg: cfg, emit: emit}
}

// Feed processes one physical input line without its line terminator.
func (s *Session) Feed(line string) error {
	s.line++

	if s.continues(line) {
		if s.buf.Len() == 0 {
			s.bufStart = s.line
		}
		s.buf.WriteString(line)
		s.buf.WriteByte('\n')
		return nil
	}
	if s.buf.Len() > 0 {
		s.buf.WriteString(line)
		line = s.buf.String()
		s.buf.Reset()
	}

	values := ParseLine(line, s.cfg.Delimiter)

	if s.plan == nil {
		s.plan = transformer.NewPlan(values, s.cfg.coerceSpec())
		return nil
	}

	s.chunk = append(s.chunk, s.plan.Build(values))
	if s.cfg.ChunkSize > 0 && len(s.chunk) >= s.cfg.ChunkSize {
		return s.flush()
	}
	return nil
}

// continues reports whether line leaves a quoted field open, so it must be
// joined with the lines that follow before parsing.
func (s *Session) continues(line string) bool {
	if s.cfg.Continuation == QuoteParity {
		if strings.Count(line, `"`)%2 == 1 {
			s.openQuote = !s.openQuote
		}
		return s.openQuote
	}
	return delimiterQuotes(line, s.cfg.Delimiter)%2 == 1
}

// Close ends the input. It flushes the last partial chunk and fails with
// ErrUnterminatedQuote if a quoted field is still open, unless the Config
// allows dropping it.
func (s *Session) Close() error {
	if s.buf.Len() > 0 {
		if !s.cfg.AllowUnterminated {
			return &ParseError{Line: s.bufStart, Err: ErrUnterminatedQuote}
		}
		s.buf.Reset()
		s.openQuote = false
	}
	return s.flush()
}

func (s *Session) flush() error {
	if len(s.chunk) == 0 {
		return nil
	}
	out := s.chunk
	s.chunk = nil
	s.emitted += len(out)
	metrics.IncCounter(metrics.ChunksTotal, 1, nil)
	if s.emit == nil {
		return nil
	}
	return s.emit(out)
}

// Headers returns the captured header row, or nil before the first line.
func (s *Session) Headers() []string {
	if s.plan == nil {
		return nil
	}
	return s.plan.Headers()
}

// Lines returns how many physical lines were fed.
func (s *Session) Lines() int { return s.line }

// Emitted returns how many records were handed to emit so far.
func (s *Session) Emitted() int { return s.emitted }
