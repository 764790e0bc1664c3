package validation

import (
	"fmt"

	"github.com/bscott/mailgate/internal/query"
)

// QueryRule validates a query as a whole.
type QueryRule interface {
	Validate(q query.Query, errs *Errors) bool
}

// ParameterRule validates single parameters it supports.
type ParameterRule interface {
	Supports(p query.Parameter) bool
	Validate(p query.Parameter, errs *Errors) bool
}

// Validator provides the rule set for the queries it supports.
type Validator interface {
	Supports(q query.Query) bool
	QueryRules(q query.Query) []QueryRule
	ParameterRules(q query.Query) []ParameterRule
}

// Validate runs every query rule of v, then every supporting parameter rule
// for each parameter of q. All rules run regardless of earlier failures. The
// returned bool is false if any rule failed; the error is only set when v does
// not support q.
func Validate(v Validator, q query.Query, errs *Errors) (bool, error) {
	if !v.Supports(q) {
		return false, fmt.Errorf("%w: %T", ErrUnsupportedQuery, q)
	}

	valid := true
	for _, rule := range v.QueryRules(q) {
		if !rule.Validate(q, errs) {
			valid = false
		}
	}

	rules := v.ParameterRules(q)
	for _, p := range q.Parameters() {
		for _, rule := range rules {
			if !rule.Supports(p) {
				continue
			}
			if !rule.Validate(p, errs) {
				valid = false
			}
		}
	}

	return valid, nil
}
