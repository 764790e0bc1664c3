package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bscott/mailgate/internal/filter"
	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
	"github.com/bscott/mailgate/internal/validation"
)

// IncludeRule checks the include parameter against the relationship paths of
// the target.
type IncludeRule struct {
	Paths []string
}

func (r *IncludeRule) Supports(p query.Parameter) bool {
	return p.Name == ParamInclude
}

func (r *IncludeRule) Validate(p query.Parameter, errs *validation.Errors) bool {
	allowed := make(map[string]bool, len(r.Paths))
	for _, path := range r.Paths {
		allowed[path] = true
	}

	var unmatched []string
	for _, path := range MergeIncludes(p.Values()) {
		if !allowed[path] {
			unmatched = append(unmatched, path)
		}
	}
	if len(unmatched) == 0 {
		return true
	}
	errs.Add(validation.NewError(p, fmt.Sprintf(
		"parameter %q must only contain one of %s, but contained %s",
		p.Name, validation.QuoteList(r.Paths), validation.QuoteList(unmatched),
	)))
	return false
}

// FieldsetRule validates fields[TYPE] parameters. The type must be the root
// type or one of the included types. Unless Relfield is set a bare "*" is
// rejected; with Relfield, "*" may stand alone and names may carry a "+" or
// "-" prefix.
type FieldsetRule struct {
	Includes     []string
	FieldsByType map[string][]string
	RootType     string
	Relfield     bool
}

func (r *FieldsetRule) Supports(p query.Parameter) bool {
	group, _, ok := p.Group()
	return ok && group == ParamFields
}

func (r *FieldsetRule) Validate(p query.Parameter, errs *validation.Errors) bool {
	_, typ, _ := p.Group()

	if typ != r.RootType && !contains(r.Includes, typ) {
		errs.Add(validation.NewError(p, fmt.Sprintf(
			"parameter %q is invalid: %q cannot be found in the list of includes", p.Name, typ,
		)))
		return false
	}

	fields, ok := r.FieldsByType[typ]
	if !ok {
		errs.Add(validation.NewError(p, fmt.Sprintf("cannot find fields for parameter %q", p.Name)))
		return false
	}

	values := p.Values()
	if len(values) == 0 {
		return true
	}

	var names []string
	wildcard := false
	for _, v := range values {
		if v == "*" {
			wildcard = true
			continue
		}
		if r.Relfield {
			v = strings.TrimLeft(v, "+-")
		}
		names = append(names, v)
	}

	if wildcard && len(names) == 0 {
		if r.Relfield {
			return true
		}
		errs.Add(validation.NewError(p, fmt.Sprintf(
			"parameter %q must not use \"*\" without additional field names", p.Name,
		)))
		return false
	}

	var unknown []string
	for _, name := range names {
		if !contains(fields, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return true
	}
	errs.Add(validation.NewError(p, fmt.Sprintf(
		"parameter %q must only contain one of %s, but contained %s",
		p.Name, validation.QuoteList(fields), validation.QuoteList(unknown),
	)))
	return false
}

// SortFields computes the allowed sort values of d: each own field as f, -f,
// T.f and -T.f, and each field of a direct relationship R as R.f and -R.f.
func SortFields(d resource.Description) []string {
	var out []string
	for _, f := range d.Fields() {
		out = append(out, f, "-"+f)
	}
	for _, f := range d.Fields() {
		q := d.Type() + "." + f
		out = append(out, q, "-"+q)
	}
	for _, rel := range d.Relationships() {
		for _, f := range rel.Fields() {
			q := rel.Type() + "." + f
			out = append(out, q, "-"+q)
		}
	}
	return out
}

// FilterAttributes returns fields together with their forms qualified by
// the type of d.
func FilterAttributes(d resource.Description, fields []string) []string {
	out := make([]string, 0, 2*len(fields))
	out = append(out, fields...)
	for _, f := range fields {
		out = append(out, d.Type()+"."+f)
	}
	return out
}

// PnFilterRule validates the filter parameter, a JSON document in prefix
// notation such as {"OR":[{"=":{"size":1000}},{">":{"date":"2024-01-01"}}]}.
type PnFilterRule struct {
	Attributes []string
}

func (r *PnFilterRule) Supports(p query.Parameter) bool {
	return p.Name == ParamFilter
}

func (r *PnFilterRule) Validate(p query.Parameter, errs *validation.Errors) bool {
	if !json.Valid([]byte(p.Value)) {
		errs.Add(validation.NewError(p, fmt.Sprintf("parameter %q must be valid JSON", p.Name)))
		return false
	}
	if _, err := filter.Parse([]byte(p.Value), r.Attributes); err != nil {
		var syntaxErr *filter.SyntaxError
		if errors.As(err, &syntaxErr) {
			errs.Add(validation.NewError(p, fmt.Sprintf("parameter %q is invalid: %s", p.Name, syntaxErr.Message)))
		} else {
			errs.Add(validation.NewError(p, fmt.Sprintf("parameter %q is invalid: %v", p.Name, err)))
		}
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
