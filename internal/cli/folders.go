package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/output"
)

type FoldersCmd struct {
	Account string `arg:"" help:"Account id"`
	Counts  bool   `help:"Fetch unread and total message counts" default:"true" negatable:""`
}

type folderJSON struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	FolderType string        `json:"folderType"`
	Unread     int           `json:"unreadMessages"`
	Total      int           `json:"totalMessages"`
	Attributes []string      `json:"attributes,omitempty"`
	Children   []*folderJSON `json:"children,omitempty"`
}

func (c *FoldersCmd) Run(ctx *Context) error {
	svc, err := ctx.openServices(ctx.commandLogger(), nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx.Formatter.Verbosef("Listing folders of %s...", c.Account)

	var fields []string
	if c.Counts {
		fields = []string{"unreadMessages", "totalMessages"}
	}
	tree, err := svc.folders.FolderTree(context.Background(), c.Account, fields)
	if err != nil {
		return err
	}

	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON(map[string]any{
			"account": c.Account,
			"folders": folderTreeJSON(tree),
		})
	}

	if len(tree) == 0 {
		fmt.Fprintln(ctx.Formatter.Writer, "No folders found.")
		return nil
	}
	ctx.Formatter.PrintTree(folderNodes(tree, c.Counts))
	return nil
}

func folderTreeJSON(folders []*mail.MailFolder) []*folderJSON {
	out := make([]*folderJSON, 0, len(folders))
	for _, f := range folders {
		out = append(out, &folderJSON{
			ID:         f.Key.ID,
			Name:       f.Name,
			FolderType: string(f.FolderType),
			Unread:     f.UnreadMessages,
			Total:      f.TotalMessages,
			Attributes: f.Attributes,
			Children:   folderTreeJSON(f.Children),
		})
	}
	return out
}

func folderNodes(folders []*mail.MailFolder, counts bool) []*output.TreeNode {
	nodes := make([]*output.TreeNode, 0, len(folders))
	for _, f := range folders {
		var details []string
		if f.FolderType != mail.FolderTypeFolder {
			details = append(details, string(f.FolderType))
		}
		if counts && f.Selectable() {
			details = append(details, fmt.Sprintf("%d unread, %d total", f.UnreadMessages, f.TotalMessages))
		}
		if attrs := formatAttributes(f.Attributes); attrs != "" {
			details = append(details, attrs)
		}
		node := &output.TreeNode{Label: f.Name, Children: folderNodes(f.Children, counts)}
		if len(details) > 0 {
			node.Detail = "[" + strings.Join(details, "; ") + "]"
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// formatAttributes strips the backslash of mailbox attributes.
func formatAttributes(attrs []string) string {
	cleaned := make([]string, len(attrs))
	for i, attr := range attrs {
		cleaned[i] = strings.TrimPrefix(attr, `\`)
	}
	return strings.Join(cleaned, ", ")
}
