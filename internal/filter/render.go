package filter

import (
	"fmt"
	"strings"
)

// Renderer turns an expression tree into a string.
type Renderer interface {
	Render(e Expression) string
}

var (
	// Infix renders "(a&&b)", "(size>1000)", "!(a)" and "IN(subject, x)".
	Infix Renderer = InfixRenderer{}
	// Polish renders prefix notation: "&& a b", "> size 1000", "IN subject x".
	Polish Renderer = PolishRenderer{}
)

type InfixRenderer struct{}

func (r InfixRenderer) Render(e Expression) string {
	parts := make([]string, 0, len(e.Operands()))
	for _, op := range e.Operands() {
		parts = append(parts, r.operand(op))
	}

	switch x := e.(type) {
	case *LogicalExpression:
		if x.Logical() == Not {
			return x.Logical().Symbol() + "(" + parts[0] + ")"
		}
		return "(" + strings.Join(parts, x.Logical().Symbol()) + ")"
	case *FunctionalExpression:
		return x.Functional().Symbol() + "(" + strings.Join(parts, ", ") + ")"
	default:
		return "(" + strings.Join(parts, e.Operator().Symbol()) + ")"
	}
}

func (r InfixRenderer) operand(op Operand) string {
	if e, ok := op.(Expression); ok {
		return r.Render(e)
	}
	return fmt.Sprint(op)
}

type PolishRenderer struct{}

func (r PolishRenderer) Render(e Expression) string {
	parts := []string{e.Operator().Symbol()}
	for _, op := range e.Operands() {
		if child, ok := op.(Expression); ok {
			parts = append(parts, r.Render(child))
			continue
		}
		parts = append(parts, fmt.Sprint(op))
	}
	return strings.Join(parts, " ")
}
