package jsonapi

import (
	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
	"github.com/bscott/mailgate/internal/validation"
)

// CollectionValidator validates queries for resource collections.
type CollectionValidator struct {
	// Required lists parameter names that must be present.
	Required []string
	// FilterAttributes are the attributes a filter may reference. A nil
	// list disallows the filter parameter.
	FilterAttributes []string
	// Relfield enables the relfield fieldset extension.
	Relfield bool
}

func (v *CollectionValidator) Supports(q query.Query) bool {
	jq, ok := q.(*Query)
	return ok && jq.Kind() == KindCollection
}

func (v *CollectionValidator) QueryRules(q query.Query) []validation.QueryRule {
	target := q.(*Query).Target()
	names := []string{ParamInclude, ParamSort, ParamStart, ParamLimit}
	if v.FilterAttributes != nil {
		names = append(names, ParamFilter)
	}
	names = append(names, fieldsetNames(target)...)

	rules := []validation.QueryRule{&validation.OnlyParameterNamesRule{Whitelist: names}}
	if len(v.Required) > 0 {
		rules = append(rules, &validation.RequiredParameterNamesRule{Required: v.Required})
	}
	return rules
}

func (v *CollectionValidator) ParameterRules(q query.Query) []validation.ParameterRule {
	jq := q.(*Query)
	target := jq.Target()
	rules := []validation.ParameterRule{
		&IncludeRule{Paths: resource.AllRelationshipPaths(target, false)},
		fieldsetRule(jq, v.Relfield),
		&validation.ValuesInWhitelistRule{Name: ParamSort, Whitelist: SortFields(target)},
		&validation.IntegerValueRule{Name: ParamStart, Min: 0},
		&validation.IntegerValueRule{Name: ParamLimit, Min: 1},
	}
	if v.FilterAttributes != nil {
		rules = append(rules, &PnFilterRule{Attributes: v.FilterAttributes})
	}
	return rules
}

// ResourceValidator validates queries for single resources, which only
// accept include and fields[TYPE].
type ResourceValidator struct {
	Relfield bool
}

func (v *ResourceValidator) Supports(q query.Query) bool {
	jq, ok := q.(*Query)
	return ok && jq.Kind() == KindResource
}

func (v *ResourceValidator) QueryRules(q query.Query) []validation.QueryRule {
	target := q.(*Query).Target()
	names := append([]string{ParamInclude}, fieldsetNames(target)...)
	return []validation.QueryRule{&validation.OnlyParameterNamesRule{Whitelist: names}}
}

func (v *ResourceValidator) ParameterRules(q query.Query) []validation.ParameterRule {
	jq := q.(*Query)
	return []validation.ParameterRule{
		&IncludeRule{Paths: resource.AllRelationshipPaths(jq.Target(), false)},
		fieldsetRule(jq, v.Relfield),
	}
}

func fieldsetNames(target resource.Description) []string {
	types := resource.AllRelationshipTypes(target, true)
	names := make([]string, 0, len(types))
	for _, typ := range types {
		names = append(names, query.GroupName(ParamFields, typ))
	}
	return names
}

func fieldsetRule(q *Query, relfield bool) *FieldsetRule {
	return &FieldsetRule{
		Includes:     q.Includes(),
		FieldsByType: resource.FieldsByType(q.Target()),
		RootType:     q.Target().Type(),
		Relfield:     relfield,
	}
}
