// Package jsonapi validates JSON:API query strings against a resource
// description graph and renders documents and problems.
package jsonapi

import (
	"strconv"
	"strings"

	"github.com/bscott/mailgate/internal/filter"
	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
)

// Kind tells a collection request apart from a single-resource request.
type Kind int

const (
	KindCollection Kind = iota + 1
	KindResource
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindResource:
		return "resource"
	}
	return "unknown"
}

// Well-known parameter names.
const (
	ParamInclude = "include"
	ParamFields  = "fields"
	ParamSort    = "sort"
	ParamFilter  = "filter"
	ParamStart   = "start"
	ParamLimit   = "limit"
)

// Query is a set of query parameters addressed at a resource type.
type Query struct {
	params query.Parameters
	target resource.Description
	kind   Kind
}

func NewCollectionQuery(target resource.Description, params query.Parameters) *Query {
	return &Query{params: params, target: target, kind: KindCollection}
}

func NewResourceQuery(target resource.Description, params query.Parameters) *Query {
	return &Query{params: params, target: target, kind: KindResource}
}

func (q *Query) Parameters() query.Parameters                  { return q.params }
func (q *Query) Parameter(name string) (query.Parameter, bool) { return q.params.Get(name) }
func (q *Query) Names() []string                               { return q.params.Names() }
func (q *Query) String() string                                { return q.params.Encode() }

func (q *Query) Target() resource.Description { return q.target }
func (q *Query) Kind() Kind                   { return q.kind }

// IncludePaths returns the merged include paths of the query.
func (q *Query) IncludePaths() []string {
	p, ok := q.params.Get(ParamInclude)
	if !ok {
		return nil
	}
	return MergeIncludes(p.Values())
}

// Includes returns every resource type named by the include parameter.
func (q *Query) Includes() []string {
	return Includes(q.IncludePaths())
}

// Fieldset resolves the fields requested for typ. Without a fields[typ]
// parameter, or with an empty one, the default fields are returned. A "*"
// selects all fields, and "+f"/"-f" add to or remove from the defaults.
func (q *Query) Fieldset(typ string) []string {
	d, ok := resource.FindDescription(q.target, typ)
	if !ok {
		return nil
	}
	p, ok := q.params.Get(query.GroupName(ParamFields, typ))
	if !ok || strings.TrimSpace(p.Value) == "" {
		return d.DefaultFields()
	}

	values := p.Values()
	var base []string
	relative := false
	for _, v := range values {
		if v == "*" {
			base = d.Fields()
			relative = true
			break
		}
		if strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-") {
			relative = true
		}
	}
	if relative && base == nil {
		base = d.DefaultFields()
	}

	set := make(map[string]bool)
	var out []string
	add := func(f string) {
		if !set[f] && resource.HasField(d, f) {
			set[f] = true
			out = append(out, f)
		}
	}
	for _, f := range base {
		add(f)
	}
	removed := make(map[string]bool)
	for _, v := range values {
		switch {
		case v == "*":
		case strings.HasPrefix(v, "-"):
			removed[v[1:]] = true
		case strings.HasPrefix(v, "+"):
			add(v[1:])
		default:
			add(v)
		}
	}
	if len(removed) == 0 {
		return out
	}
	kept := out[:0]
	for _, f := range out {
		if !removed[f] {
			kept = append(kept, f)
		}
	}
	return kept
}

// SortField is a single entry of the sort parameter.
type SortField struct {
	// Type is empty for fields of the target itself.
	Type       string
	Field      string
	Descending bool
}

// Sort parses the sort parameter. Target-qualified fields are reduced to
// their plain name.
func (q *Query) Sort() []SortField {
	p, ok := q.params.Get(ParamSort)
	if !ok {
		return nil
	}
	var out []SortField
	for _, v := range p.Values() {
		var sf SortField
		if strings.HasPrefix(v, "-") {
			sf.Descending = true
			v = v[1:]
		}
		if typ, field, ok := strings.Cut(v, "."); ok {
			if typ != q.target.Type() {
				sf.Type = typ
			}
			v = field
		}
		sf.Field = v
		out = append(out, sf)
	}
	return out
}

// Start returns the start parameter, 0 if absent or malformed.
func (q *Query) Start() int {
	return q.intParam(ParamStart, 0)
}

// Limit returns the limit parameter, -1 (no limit) if absent or malformed.
func (q *Query) Limit() int {
	return q.intParam(ParamLimit, -1)
}

func (q *Query) intParam(name string, def int) int {
	p, ok := q.params.Get(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return def
	}
	return n
}

// Filter parses the filter parameter. It returns nil without error when no
// filter was given.
func (q *Query) Filter(attributes []string) (filter.Expression, error) {
	p, ok := q.params.Get(ParamFilter)
	if !ok || strings.TrimSpace(p.Value) == "" {
		return nil, nil
	}
	return filter.Parse([]byte(p.Value), attributes)
}

// MergeIncludes drops every path that is a strict dotted prefix of another
// path in the list, and duplicates. Order is preserved.
func MergeIncludes(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] || isPrefixOfAny(p, paths) {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func isPrefixOfAny(p string, paths []string) bool {
	for _, other := range paths {
		if strings.HasPrefix(other, p+".") {
			return true
		}
	}
	return false
}

// Includes returns the distinct types named by the segments of paths.
func Includes(paths []string) []string {
	var types []string
	seen := make(map[string]bool)
	for _, p := range paths {
		for _, seg := range strings.Split(p, ".") {
			if seg == "" || seen[seg] {
				continue
			}
			seen[seg] = true
			types = append(types, seg)
		}
	}
	return types
}
