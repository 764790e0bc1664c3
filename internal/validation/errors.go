// Package validation runs rule sets against queries and collects every
// violation instead of stopping at the first one.
package validation

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bscott/mailgate/internal/query"
)

// ErrUnsupportedQuery is returned when a validator is handed a query it does
// not declare support for.
var ErrUnsupportedQuery = errors.New("validator does not support query")

// Error is a single validation failure. Source is the offending
// query.Parameter, or the query.Query for whole-query rules.
type Error struct {
	Source any
	Detail string
	Code   int
}

// NewError creates an Error with the default 400 code.
func NewError(source any, detail string) *Error {
	return &Error{Source: source, Detail: detail, Code: http.StatusBadRequest}
}

func (e *Error) Error() string { return e.Detail }

// Parameter returns the offending parameter if the source is one.
func (e *Error) Parameter() (query.Parameter, bool) {
	p, ok := e.Source.(query.Parameter)
	return p, ok
}

// Errors is an ordered, appendable collection of validation errors. It is
// meant for a single validation pass and is not safe for concurrent use.
type Errors struct {
	list []*Error
}

func (e *Errors) Add(err *Error) {
	e.list = append(e.list, err)
}

func (e *Errors) All() []*Error {
	return e.list
}

func (e *Errors) Len() int {
	return len(e.list)
}

func (e *Errors) HasError() bool {
	return len(e.list) > 0
}

func (e *Errors) Error() string {
	details := make([]string, 0, len(e.list))
	for _, err := range e.list {
		details = append(details, err.Detail)
	}
	return strings.Join(details, "; ")
}
