package validation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bscott/mailgate/internal/query"
)

// OnlyParameterNamesRule fails if the query holds a parameter whose name is
// not whitelisted.
type OnlyParameterNamesRule struct {
	Whitelist []string
}

func (r *OnlyParameterNamesRule) Validate(q query.Query, errs *Errors) bool {
	allowed := toSet(r.Whitelist)
	var unexpected []string
	for _, name := range q.Names() {
		if !allowed[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) == 0 {
		return true
	}

	errs.Add(NewError(q, fmt.Sprintf(
		"found additional parameters %s, only %s are allowed",
		quoteList(unexpected), quoteList(r.Whitelist),
	)))
	return false
}

// RequiredParameterNamesRule fails if one of the required names is missing.
type RequiredParameterNamesRule struct {
	Required []string
}

func (r *RequiredParameterNamesRule) Validate(q query.Query, errs *Errors) bool {
	present := toSet(q.Names())
	var missing []string
	for _, name := range r.Required {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return true
	}

	errs.Add(NewError(q, fmt.Sprintf("missing required parameters %s", quoteList(missing))))
	return false
}

// ValuesInWhitelistRule checks that every comma-separated value of the named
// parameter is whitelisted.
type ValuesInWhitelistRule struct {
	Name      string
	Whitelist []string
}

func (r *ValuesInWhitelistRule) Supports(p query.Parameter) bool {
	return p.Name == r.Name
}

func (r *ValuesInWhitelistRule) Validate(p query.Parameter, errs *Errors) bool {
	allowed := toSet(r.Whitelist)
	var invalid []string
	for _, v := range p.Values() {
		if !allowed[v] {
			invalid = append(invalid, v)
		}
	}
	if len(invalid) == 0 {
		return true
	}

	errs.Add(NewError(p, fmt.Sprintf(
		"parameter %q must only contain one of %s, but contained %s",
		p.Name, quoteList(r.Whitelist), quoteList(invalid),
	)))
	return false
}

// IntegerValueRule requires the named parameter to be an integer of at least
// Min.
type IntegerValueRule struct {
	Name string
	Min  int
}

func (r *IntegerValueRule) Supports(p query.Parameter) bool {
	return p.Name == r.Name
}

func (r *IntegerValueRule) Validate(p query.Parameter, errs *Errors) bool {
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err == nil && n >= r.Min {
		return true
	}

	errs.Add(NewError(p, fmt.Sprintf(
		"parameter %q must be an integer greater than or equal to %d, got %q",
		p.Name, r.Min, p.Value,
	)))
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// QuoteList renders values as a comma separated list of quoted strings.
func QuoteList(values []string) string {
	return quoteList(values)
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return strings.Join(quoted, ", ")
}
