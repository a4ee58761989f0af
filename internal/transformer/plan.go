package transformer

import (
	"strings"

	"csvjson/pkg/records"
)

// Mapper replaces a field value after every other step ran.
type Mapper func(v any) any

// CoerceSpec configures how raw field text becomes a record value.
type CoerceSpec struct {
	// PreserveTypes runs Rules on every field. When false values stay strings.
	PreserveTypes bool

	// Rules overrides DefaultRules. Only used with PreserveTypes.
	Rules []Rule

	// UseDefault enables DefaultValue for absent and empty values.
	UseDefault   bool
	DefaultValue any

	// TrimWhitespace converts the value to text and trims it.
	TrimWhitespace bool

	// Mappers are applied last, by header name.
	Mappers map[string]Mapper
}

// Plan is a CoerceSpec bound to one header row.
type Plan struct {
	headers []string
	rules   []Rule
	spec    CoerceSpec
	cols    []colPlan
}

type colPlan struct {
	name   string
	mapper Mapper
}

// NewPlan compiles spec for headers.
func NewPlan(headers []string, spec CoerceSpec) *Plan {
	return compilePlan(headers, spec)
}

func compilePlan(headers []string, spec CoerceSpec) *Plan {
	p := &Plan{
		headers: append([]string(nil), headers...),
		spec:    spec,
		cols:    make([]colPlan, len(headers)),
	}
	if spec.PreserveTypes {
		p.rules = spec.Rules
		if p.rules == nil {
			p.rules = DefaultRules()
		}
	}
	for i, h := range headers {
		p.cols[i] = colPlan{name: h, mapper: spec.Mappers[h]}
	}
	return p
}

// Headers returns the header row the plan was compiled for.
func (p *Plan) Headers() []string {
	return append([]string(nil), p.headers...)
}

// Build makes one record from the parsed fields of a data line. Every header
// gets exactly one value; positions past the end of values start out as
// records.Undefined. Extra values beyond the header count are ignored.
func (p *Plan) Build(values []string) *records.Record {
	r := records.New(len(p.cols))
	for i := range p.cols {
		var raw any = records.Undefined
		if i < len(values) {
			raw = values[i]
		}
		r.Set(p.cols[i].name, p.value(i, raw))
	}
	return r
}

// value runs one field through coercion, default substitution, trimming and
// the header's mapper, in that order.
func (p *Plan) value(i int, raw any) any {
	v := raw

	if s, ok := v.(string); ok && p.rules != nil {
		v = Coerce(p.rules, s)
	}

	if p.spec.UseDefault && isAbsentOrEmpty(v) {
		v = p.spec.DefaultValue
	}

	if p.spec.TrimWhitespace && !records.IsUndefined(v) {
		v = strings.TrimSpace(records.String(v))
	}

	if m := p.cols[i].mapper; m != nil {
		v = m(v)
	}
	return v
}

func isAbsentOrEmpty(v any) bool {
	if records.IsUndefined(v) {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
