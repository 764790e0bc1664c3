package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidOperandCount is wrapped by every arity violation.
var ErrInvalidOperandCount = errors.New("invalid operand count")

// InvalidOperandError reports an expression built with the wrong number of
// operands.
type InvalidOperandError struct {
	Operator Operator
	Got      int
	Want     string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("%s: %s expects %s operands, got %d", ErrInvalidOperandCount, e.Operator, e.Want, e.Got)
}

func (e *InvalidOperandError) Unwrap() error { return ErrInvalidOperandCount }

// Operand is anything an expression can operate on.
type Operand interface {
	operand()
}

// Variable names an attribute of the filtered resource.
type Variable struct {
	Name string
}

func (Variable) operand() {}

func (v Variable) String() string { return v.Name }

// Value is a literal.
type Value struct {
	V any
}

func (Value) operand() {}

func (v Value) String() string { return fmt.Sprint(v.V) }

// Expression is a node of the filter tree.
type Expression interface {
	Operand
	Operator() Operator
	Operands() []Operand
	String() string
}

type RelationalExpression struct {
	op       RelationalOperator
	operands []Operand
}

// NewRelational builds a relational expression of exactly two operands.
func NewRelational(op RelationalOperator, left, right Operand) *RelationalExpression {
	return &RelationalExpression{op: op, operands: []Operand{left, right}}
}

// NewRelationalFrom builds a relational expression from an operand slice,
// rejecting any count other than two.
func NewRelationalFrom(op RelationalOperator, operands []Operand) (*RelationalExpression, error) {
	if len(operands) != 2 {
		return nil, &InvalidOperandError{Operator: op, Got: len(operands), Want: "exactly 2"}
	}
	return NewRelational(op, operands[0], operands[1]), nil
}

func (*RelationalExpression) operand() {}

func (e *RelationalExpression) Operator() Operator  { return e.op }
func (e *RelationalExpression) Operands() []Operand { return e.operands }
func (e *RelationalExpression) String() string      { return Infix.Render(e) }

// Relational returns the typed operator.
func (e *RelationalExpression) Relational() RelationalOperator { return e.op }

type LogicalExpression struct {
	op       LogicalOperator
	operands []Operand
}

// NewLogical builds a logical expression. AND and OR take at least two
// operands, NOT exactly one.
func NewLogical(op LogicalOperator, operands ...Operand) (*LogicalExpression, error) {
	switch op {
	case And, Or:
		if len(operands) < 2 {
			return nil, &InvalidOperandError{Operator: op, Got: len(operands), Want: "at least 2"}
		}
	case Not:
		if len(operands) != 1 {
			return nil, &InvalidOperandError{Operator: op, Got: len(operands), Want: "exactly 1"}
		}
	default:
		return nil, fmt.Errorf("unknown logical operator %d", op)
	}
	return &LogicalExpression{op: op, operands: operands}, nil
}

func (*LogicalExpression) operand() {}

func (e *LogicalExpression) Operator() Operator  { return e.op }
func (e *LogicalExpression) Operands() []Operand { return e.operands }
func (e *LogicalExpression) String() string      { return Infix.Render(e) }

func (e *LogicalExpression) Logical() LogicalOperator { return e.op }

type FunctionalExpression struct {
	op       FunctionalOperator
	operands []Operand
}

// NewFunctional builds a function call. IN takes its subject followed by at
// least one candidate value.
func NewFunctional(op FunctionalOperator, operands ...Operand) (*FunctionalExpression, error) {
	if op != In {
		return nil, fmt.Errorf("unknown functional operator %d", op)
	}
	if len(operands) < 2 {
		return nil, &InvalidOperandError{Operator: op, Got: len(operands), Want: "at least 2"}
	}
	return &FunctionalExpression{op: op, operands: operands}, nil
}

func (*FunctionalExpression) operand() {}

func (e *FunctionalExpression) Operator() Operator  { return e.op }
func (e *FunctionalExpression) Operands() []Operand { return e.operands }
func (e *FunctionalExpression) String() string      { return Infix.Render(e) }

func (e *FunctionalExpression) Functional() FunctionalOperator { return e.op }

// Variables returns the names of all variables used in e, in order.
func Variables(e Expression) []string {
	var names []string
	var walk func(op Operand)
	walk = func(op Operand) {
		switch o := op.(type) {
		case Variable:
			names = append(names, o.Name)
		case Expression:
			for _, child := range o.Operands() {
				walk(child)
			}
		}
	}
	walk(e)
	return names
}
