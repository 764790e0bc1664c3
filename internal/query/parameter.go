// Package query models the parameters of an HTTP query string.
package query

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

var groupPattern = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]+)\]$`)

// Parameter is a single name/value pair of a query string.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Group splits a grouped parameter name of the form name[key].
func (p Parameter) Group() (group, key string, ok bool) {
	return SplitGroup(p.Name)
}

// SplitGroup splits name[key] into name and key.
func SplitGroup(name string) (group, key string, ok bool) {
	m := groupPattern.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// GroupName builds the grouped parameter name group[key].
func GroupName(group, key string) string {
	return group + "[" + key + "]"
}

// Values splits the parameter value at commas, dropping surrounding
// whitespace and empty entries.
func (p Parameter) Values() []string {
	return SplitList(p.Value)
}

// SplitList splits a comma-separated list.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Parameters is an ordered parameter list. A name that occurs more than once
// resolves to its last value.
type Parameters []Parameter

// Get returns the parameter with the given name.
func (ps Parameters) Get(name string) (Parameter, bool) {
	for i := len(ps) - 1; i >= 0; i-- {
		if ps[i].Name == name {
			return ps[i], true
		}
	}
	return Parameter{}, false
}

// Has reports whether a parameter with the given name exists.
func (ps Parameters) Has(name string) bool {
	_, ok := ps.Get(name)
	return ok
}

// Names returns the distinct parameter names in order of first appearance.
func (ps Parameters) Names() []string {
	seen := make(map[string]bool, len(ps))
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		names = append(names, p.Name)
	}
	return names
}

// Grouped returns all parameters named group[...].
func (ps Parameters) Grouped(group string) []Parameter {
	var out []Parameter
	for _, p := range ps {
		if g, _, ok := p.Group(); ok && g == group {
			out = append(out, p)
		}
	}
	return out
}

// Encode renders the parameters as a query string in their original order.
func (ps Parameters) Encode() string {
	parts := make([]string, 0, len(ps))
	for _, p := range ps {
		parts = append(parts, url.QueryEscape(p.Name)+"="+url.QueryEscape(p.Value))
	}
	return strings.Join(parts, "&")
}

// Parse reads a raw query string, keeping the order of its parameters.
func Parse(raw string) (Parameters, error) {
	raw = strings.TrimPrefix(raw, "?")
	var ps Parameters
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		n, err := url.QueryUnescape(name)
		if err != nil {
			return nil, err
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		ps = append(ps, Parameter{Name: n, Value: v})
	}
	return ps, nil
}

// FromValues converts url.Values. Names are sorted since map order is
// undefined; repeated values keep their order.
func FromValues(values url.Values) Parameters {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var ps Parameters
	for _, name := range names {
		for _, v := range values[name] {
			ps = append(ps, Parameter{Name: name, Value: v})
		}
	}
	return ps
}

// Query is a set of parameters addressed at one request target.
type Query interface {
	Parameters() Parameters
	Parameter(name string) (Parameter, bool)
	Names() []string
	String() string
}

// Simple is a Query without any further target information.
type Simple struct {
	Params Parameters
}

func (q *Simple) Parameters() Parameters { return q.Params }

func (q *Simple) Parameter(name string) (Parameter, bool) { return q.Params.Get(name) }

func (q *Simple) Names() []string { return q.Params.Names() }

func (q *Simple) String() string { return q.Params.Encode() }
