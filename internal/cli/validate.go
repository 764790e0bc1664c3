package cli

import (
	"strings"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/server"
)

type ValidateCmd struct {
	Type   string `arg:"" help:"Resource type (MailAccount, MailFolder, MessageItem, MessageBody, MessageItemAttachment)"`
	Query  string `arg:"" optional:"" help:"Query string, e.g. 'include=MessageBody&limit=10'"`
	Single bool   `help:"Validate as a single resource request instead of a collection"`
}

func (c *ValidateCmd) Run(ctx *Context) error {
	kind := jsonapi.KindCollection
	if c.Single {
		kind = jsonapi.KindResource
	}

	_, problems, err := server.ParseQuery(c.Type, kind, strings.TrimPrefix(c.Query, "?"))
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		if err := ctx.Formatter.PrintProblems(problems); err != nil {
			return err
		}
		return ErrInvalidQuery
	}

	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON([]jsonapi.Problem{})
	}
	ctx.Formatter.PrintSuccess("query is valid for " + kind.String() + " of " + c.Type)
	return nil
}
