package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/mailclient"
	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
	"github.com/bscott/mailgate/internal/validation"
)

const queryKey = "jsonapi.query"

const typeAttachment = "MessageItemAttachment"

var (
	accountDescription resource.Description = resource.MailAccount{}
	folderDescription  resource.Description = resource.MailFolder{}
	itemDescription    resource.Description = resource.MessageItem{}
	bodyDescription    resource.Description = resource.MessageBody{}

	attachmentDescription resource.Description = &resource.Static{
		Name:      typeAttachment,
		FieldList: []string{"text", "type", "size", "content", "encoding"},
		Defaults:  []string{"text", "type", "size", "content", "encoding"},
		Related:   []resource.Description{itemDescription},
	}
)

// queryCheck pairs the target of a request with the validator for it.
type queryCheck struct {
	target    resource.Description
	kind      jsonapi.Kind
	validator validation.Validator
}

func collection(target resource.Description) queryCheck {
	return queryCheck{target: target, kind: jsonapi.KindCollection, validator: &jsonapi.CollectionValidator{}}
}

func single(target resource.Description) queryCheck {
	return queryCheck{target: target, kind: jsonapi.KindResource, validator: &jsonapi.ResourceValidator{}}
}

func messageItemCollection() queryCheck {
	return queryCheck{
		target: itemDescription,
		kind:   jsonapi.KindCollection,
		validator: &jsonapi.CollectionValidator{
			FilterAttributes: jsonapi.FilterAttributes(itemDescription, mailclient.FilterableFields()),
		},
	}
}

func (qc queryCheck) query(params query.Parameters) *jsonapi.Query {
	if qc.kind == jsonapi.KindResource {
		return jsonapi.NewResourceQuery(qc.target, params)
	}
	return jsonapi.NewCollectionQuery(qc.target, params)
}

// check parses raw and validates it. A malformed query string is reported
// as a single validation error. The error is only set when the validator
// does not support its own query.
func (qc queryCheck) check(raw string) (*jsonapi.Query, *validation.Errors, error) {
	errs := &validation.Errors{}
	params, err := query.Parse(raw)
	if err != nil {
		errs.Add(validation.NewError(nil, err.Error()))
		return nil, errs, nil
	}
	q := qc.query(params)
	if _, err := validation.Validate(qc.validator, q, errs); err != nil {
		return nil, nil, err
	}
	return q, errs, nil
}

// validate rejects the request with one problem per validation error.
// Valid queries are stored in the context.
func (s *Server) validate(qc queryCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, errs, err := qc.check(c.Request.URL.RawQuery)
		if err != nil {
			s.logger.Error("validator rejected its own query", zap.Error(err))
			s.problem(c, http.StatusInternalServerError, "internal server error")
			c.Abort()
			return
		}
		if errs.HasError() {
			for _, e := range errs.All() {
				name := "query"
				if p, ok := e.Parameter(); ok {
					name = p.Name
				}
				s.metrics.ValidationFailure(name)
			}
			s.logger.Debug("rejected query",
				zap.String("path", c.Request.URL.Path),
				zap.String("query", c.Request.URL.RawQuery),
				zap.Int("errors", errs.Len()))
			c.Header("Content-Type", jsonapi.ProblemContentType)
			c.AbortWithStatusJSON(http.StatusBadRequest, jsonapi.ProblemsFromErrors(errs, c.Request.URL.String()))
			return
		}

		c.Set(queryKey, q)
		c.Next()
	}
}

// checks maps the resource types served by GET routes to their validators.
var checks = map[jsonapi.Kind]map[string]func() queryCheck{
	jsonapi.KindCollection: {
		resource.TypeMailAccount: func() queryCheck { return collection(accountDescription) },
		resource.TypeMailFolder:  func() queryCheck { return collection(folderDescription) },
		resource.TypeMessageItem: messageItemCollection,
		typeAttachment:           func() queryCheck { return collection(attachmentDescription) },
	},
	jsonapi.KindResource: {
		resource.TypeMessageItem: func() queryCheck { return single(itemDescription) },
		resource.TypeMessageBody: func() queryCheck { return single(bodyDescription) },
	},
}

// ParseQuery validates raw the way the route serving typ does. A rejected
// query yields its problems and a nil query.
func ParseQuery(typ string, kind jsonapi.Kind, raw string) (*jsonapi.Query, []jsonapi.Problem, error) {
	newCheck, ok := checks[kind][typ]
	if !ok {
		return nil, nil, fmt.Errorf("no %s route serves %s", kind, typ)
	}
	q, errs, err := newCheck().check(raw)
	if err != nil {
		return nil, nil, err
	}
	if errs.HasError() {
		return nil, jsonapi.ProblemsFromErrors(errs, ""), nil
	}
	return q, nil, nil
}

// ListOptions converts a validated MessageItem collection query. Sort keys
// on related types are dropped since the mail server cannot order by them.
func ListOptions(q *jsonapi.Query) (mailclient.ListOptions, error) {
	expr, err := q.Filter(jsonapi.FilterAttributes(itemDescription, mailclient.FilterableFields()))
	if err != nil {
		return mailclient.ListOptions{}, badRequest(err.Error())
	}
	opts := mailclient.ListOptions{Start: q.Start(), Limit: q.Limit(), Filter: expr}
	for _, sf := range q.Sort() {
		if sf.Type != "" {
			continue
		}
		opts.Sort = append(opts.Sort, mailclient.SortField{Field: sf.Field, Descending: sf.Descending})
	}
	return opts, nil
}

func queryOf(c *gin.Context) *jsonapi.Query {
	if v, ok := c.Get(queryKey); ok {
		if q, ok := v.(*jsonapi.Query); ok {
			return q
		}
	}
	return jsonapi.NewResourceQuery(itemDescription, nil)
}
