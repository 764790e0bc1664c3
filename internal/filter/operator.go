// Package filter holds the expression tree used to represent filter query
// parameters and to translate them into backend searches.
package filter

// Operator is one of the closed operator sets below.
type Operator interface {
	Symbol() string
	String() string
}

type RelationalOperator int

const (
	Is RelationalOperator = iota + 1
	IsNot
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (o RelationalOperator) Symbol() string {
	switch o {
	case Is:
		return "=="
	case IsNot:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "?"
}

func (o RelationalOperator) String() string {
	switch o {
	case Is:
		return "IS"
	case IsNot:
		return "IS_NOT"
	case GreaterThan:
		return "GREATER_THAN"
	case LessThan:
		return "LESS_THAN"
	case GreaterThanOrEqual:
		return "GREATER_THAN_OR_EQUAL"
	case LessThanOrEqual:
		return "LESS_THAN_OR_EQUAL"
	}
	return "UNKNOWN"
}

type LogicalOperator int

const (
	And LogicalOperator = iota + 1
	Or
	Not
)

func (o LogicalOperator) Symbol() string {
	switch o {
	case And:
		return "&&"
	case Or:
		return "||"
	case Not:
		return "!"
	}
	return "?"
}

func (o LogicalOperator) String() string {
	switch o {
	case And:
		return "AND"
	case Or:
		return "OR"
	case Not:
		return "NOT"
	}
	return "UNKNOWN"
}

type FunctionalOperator int

const (
	In FunctionalOperator = iota + 1
)

func (o FunctionalOperator) Symbol() string {
	if o == In {
		return "IN"
	}
	return "?"
}

func (o FunctionalOperator) String() string {
	if o == In {
		return "IN"
	}
	return "UNKNOWN"
}

// Keys accepted in filter JSON, mapped to their operators.
var (
	relationalKeys = map[string]RelationalOperator{
		"=":  Is,
		"==": Is,
		"!=": IsNot,
		">":  GreaterThan,
		"<":  LessThan,
		">=": GreaterThanOrEqual,
		"<=": LessThanOrEqual,
	}
	logicalKeys = map[string]LogicalOperator{
		"AND": And,
		"&&":  And,
		"OR":  Or,
		"||":  Or,
		"NOT": Not,
		"!":   Not,
	}
	functionalKeys = map[string]FunctionalOperator{
		"IN": In,
	}
)

// IsOperatorKey reports whether key names any filter operator.
func IsOperatorKey(key string) bool {
	if _, ok := relationalKeys[key]; ok {
		return true
	}
	if _, ok := logicalKeys[key]; ok {
		return true
	}
	_, ok := functionalKeys[key]
	return ok
}
