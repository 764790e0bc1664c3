package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// SyntaxError is a user-facing problem with a filter document.
type SyntaxError struct {
	Message string
}

func (e *SyntaxError) Error() string { return e.Message }

func syntaxErrorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Message: fmt.Sprintf(format, args...)}
}

// Parse reads a filter in its JSON prefix form, for example
//
//	{"OR": [{"=": {"subject": "hello"}}, {">": {"size": 1000}}]}
//	{"IN": {"id": ["1", "2"]}}
//
// Every attribute must be listed in attributes. A root object with several
// operator keys is read as their conjunction.
func Parse(raw []byte, attributes []string) (Expression, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, syntaxErrorf("filter must be valid JSON: %v", err)
	}

	allowed := make(map[string]bool, len(attributes))
	for _, a := range attributes {
		allowed[a] = true
	}

	p := &parser{attributes: allowed}
	return p.clause(doc)
}

type parser struct {
	attributes map[string]bool
}

func (p *parser) clause(node any) (Expression, error) {
	obj, ok := node.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, syntaxErrorf("filter clause must be a non-empty JSON object, got %s", describe(node))
	}

	keys := sortedKeys(obj)
	if len(keys) == 1 {
		return p.operation(keys[0], obj[keys[0]])
	}

	operands := make([]Operand, 0, len(keys))
	for _, key := range keys {
		expr, err := p.operation(key, obj[key])
		if err != nil {
			return nil, err
		}
		operands = append(operands, expr)
	}
	return NewLogical(And, operands...)
}

func (p *parser) operation(key string, value any) (Expression, error) {
	if op, ok := logicalKeys[key]; ok {
		return p.logical(key, op, value)
	}
	if op, ok := relationalKeys[key]; ok {
		return p.relational(key, op, value)
	}
	if op, ok := functionalKeys[key]; ok {
		return p.functional(key, op, value)
	}
	return nil, syntaxErrorf("%q is not a valid operator", key)
}

func (p *parser) logical(key string, op LogicalOperator, value any) (Expression, error) {
	var clauses []any
	switch v := value.(type) {
	case []any:
		clauses = v
	case map[string]any:
		if op != Not {
			return nil, syntaxErrorf("%q expects a list of operands", key)
		}
		clauses = []any{v}
	default:
		return nil, syntaxErrorf("%q expects a list of operands, got %s", key, describe(value))
	}

	if op == Not && len(clauses) != 1 {
		return nil, syntaxErrorf("%q expects exactly 1 operand", key)
	}
	if op != Not && len(clauses) < 2 {
		return nil, syntaxErrorf("%q expects at least 2 operands", key)
	}

	operands := make([]Operand, 0, len(clauses))
	for _, c := range clauses {
		expr, err := p.clause(c)
		if err != nil {
			return nil, err
		}
		operands = append(operands, expr)
	}
	return NewLogical(op, operands...)
}

func (p *parser) relational(key string, op RelationalOperator, value any) (Expression, error) {
	attr, v, err := p.attribute(key, value)
	if err != nil {
		return nil, err
	}
	lit, ok := scalar(v)
	if !ok {
		return nil, syntaxErrorf("%q expects a single value for %q, got %s", key, attr, describe(v))
	}
	return NewRelational(op, Variable{Name: attr}, Value{V: lit}), nil
}

func (p *parser) functional(key string, op FunctionalOperator, value any) (Expression, error) {
	attr, v, err := p.attribute(key, value)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, syntaxErrorf("%q expects a non-empty list of values for %q", key, attr)
	}

	operands := []Operand{Variable{Name: attr}}
	for _, item := range list {
		lit, ok := scalar(item)
		if !ok {
			return nil, syntaxErrorf("%q expects a list of single values for %q, got %s", key, attr, describe(item))
		}
		operands = append(operands, Value{V: lit})
	}
	return NewFunctional(op, operands...)
}

// attribute unpacks {attribute: value} and checks the attribute.
func (p *parser) attribute(key string, value any) (string, any, error) {
	obj, ok := value.(map[string]any)
	if !ok || len(obj) != 1 {
		return "", nil, syntaxErrorf("%q needs a valid attribute, expected an object with exactly one attribute", key)
	}
	attr := sortedKeys(obj)[0]
	if !p.attributes[attr] {
		return "", nil, syntaxErrorf("%q needs a valid attribute, got %q", key, attr)
	}
	return attr, obj[attr], nil
}

func scalar(v any) (any, bool) {
	switch x := v.(type) {
	case string, bool:
		return x, true
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		if f, err := x.Float64(); err == nil {
			return f, true
		}
	}
	return nil, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "a list"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	}
	return fmt.Sprintf("%T", v)
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
