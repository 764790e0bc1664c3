package jsonapi

import (
	"net/http"

	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/validation"
)

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json"

// Problem is a problem details object.
type Problem struct {
	Title             string             `json:"title"`
	Detail            string             `json:"detail"`
	Status            int                `json:"status"`
	Instance          string             `json:"instance,omitempty"`
	AdditionalDetails *AdditionalDetails `json:"additionalDetails,omitempty"`
}

// AdditionalDetails identifies the query parameter a problem stems from.
type AdditionalDetails struct {
	Parameter *query.Parameter `json:"parameter,omitempty"`
}

// NewProblem builds a problem for status without parameter details.
func NewProblem(status int, detail, instance string) Problem {
	return Problem{
		Title:    http.StatusText(status),
		Detail:   detail,
		Status:   status,
		Instance: instance,
	}
}

// ProblemsFromErrors maps every validation error to a problem. instance is
// usually the request URL.
func ProblemsFromErrors(errs *validation.Errors, instance string) []Problem {
	problems := make([]Problem, 0, errs.Len())
	for _, e := range errs.All() {
		p := NewProblem(e.Code, e.Detail, instance)
		if param, ok := e.Parameter(); ok {
			p.AdditionalDetails = &AdditionalDetails{Parameter: &param}
		}
		problems = append(problems, p)
	}
	return problems
}
