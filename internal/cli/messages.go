package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/resource"
	"github.com/bscott/mailgate/internal/server"
)

var ErrInvalidQuery = errors.New("invalid query")

type MessagesCmd struct {
	Account string `arg:"" help:"Account id"`
	Folder  string `arg:"" optional:"" help:"Folder id" default:"INBOX"`
	Start   int    `help:"Index of the first message" default:"0"`
	Limit   int    `help:"Number of messages" short:"n" default:"20"`
	Sort    string `help:"Sort fields, prefix with - for descending" default:"-date"`
	Filter  string `help:"Filter expression as JSON" short:"f"`
	Preview bool   `help:"Include preview texts"`
}

// rawQuery encodes the flags as the query string of the MessageItems
// route.
func (c *MessagesCmd) rawQuery() string {
	v := url.Values{}
	v.Set(jsonapi.ParamStart, strconv.Itoa(c.Start))
	v.Set(jsonapi.ParamLimit, strconv.Itoa(c.Limit))
	if c.Sort != "" {
		v.Set(jsonapi.ParamSort, c.Sort)
	}
	if c.Filter != "" {
		v.Set(jsonapi.ParamFilter, c.Filter)
	}
	if c.Preview {
		v.Set("fields["+resource.TypeMessageItem+"]", "*,previewText")
	}
	return v.Encode()
}

func (c *MessagesCmd) Run(ctx *Context) error {
	q, problems, err := server.ParseQuery(resource.TypeMessageItem, jsonapi.KindCollection, c.rawQuery())
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		if err := ctx.Formatter.PrintProblems(problems); err != nil {
			return err
		}
		return ErrInvalidQuery
	}
	opts, err := server.ListOptions(q)
	if err != nil {
		return err
	}

	svc, err := ctx.openServices(ctx.commandLogger(), nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx.Formatter.Verbosef("Listing %s of %s...", c.Folder, c.Account)

	folder := mail.NewFolderKey(c.Account, c.Folder)
	items, total, err := svc.messages.ListMessageItems(context.Background(), folder, opts, q.Fieldset(resource.TypeMessageItem))
	if err != nil {
		return err
	}

	if ctx.Formatter.JSON {
		data := make([]jsonapi.ResourceObject, 0, len(items))
		for _, item := range items {
			data = append(data, jsonapi.Render(q, item))
		}
		return ctx.Formatter.PrintJSON(jsonapi.Document{Data: data, Meta: map[string]any{"total": total}})
	}

	if len(items) == 0 {
		fmt.Fprintln(ctx.Formatter.Writer, "No messages found.")
		return nil
	}

	headers := []string{"ID", "DATE", "FROM", "SUBJECT", "FLAGS"}
	if c.Preview {
		headers = append(headers, "PREVIEW")
	}
	table := ctx.Formatter.NewTable(headers...)
	for _, item := range items {
		row := []string{
			item.Key().ID,
			item.Date().Format("2006-01-02 15:04"),
			truncate(item.From().String(), 30),
			truncate(item.Subject(), 50),
			itemFlags(item),
		}
		if c.Preview {
			row = append(row, truncate(item.PreviewText(), 60))
		}
		table.AddRow(row...)
	}
	table.Flush()

	if !ctx.Formatter.Quiet {
		fmt.Fprintln(ctx.Formatter.Writer, ctx.Formatter.MutedText(
			fmt.Sprintf("%d-%d of %d", c.Start+1, c.Start+len(items), total)))
	}
	return nil
}

// itemFlags renders set flags as letters: N new, F flagged, A answered,
// D draft.
func itemFlags(item *mail.MessageItem) string {
	var b strings.Builder
	if !item.Seen() {
		b.WriteByte('N')
	}
	if item.Flagged() {
		b.WriteByte('F')
	}
	if item.Answered() {
		b.WriteByte('A')
	}
	if item.Draft() {
		b.WriteByte('D')
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
