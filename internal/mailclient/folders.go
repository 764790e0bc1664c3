package mailclient

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
)

// ListMailFolders lists the account's subscribed folders in server order.
// Message counts are only fetched when fields asks for them, and only for
// selectable folders.
func (c *Client) ListMailFolders(ctx context.Context, fields []string) ([]*mail.MailFolder, error) {
	t, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}

	mailboxes, err := t.ListMailboxes(ctx)
	if err != nil {
		return nil, wrap("list folders", mail.FolderKey{}, err)
	}

	wantUnread := containsField(fields, "unreadMessages")
	wantTotal := containsField(fields, "totalMessages")

	var folders []*mail.MailFolder
	for _, mb := range mailboxes {
		if !c.account.Subscribed(mb.Name, mb.Delimiter) {
			continue
		}
		folder := &mail.MailFolder{
			Key:        c.account.FolderKey(mb.Name),
			Name:       leafName(mb.Name, mb.Delimiter),
			Delimiter:  mb.Delimiter,
			Attributes: mb.Attributes,
		}
		if (wantUnread || wantTotal) && folder.Selectable() {
			status, err := t.Status(ctx, mb.Name)
			if err != nil {
				return nil, wrap("folder status", folder.Key, err)
			}
			folder.UnreadMessages = int(status.Unseen)
			folder.TotalMessages = int(status.Messages)
		}
		folders = append(folders, folder)
	}

	c.logger.Debug("listed folders", zap.Int("count", len(folders)))
	return folders, nil
}

// MessageCount returns the number of messages in the folder.
func (c *Client) MessageCount(ctx context.Context, key mail.FolderKey) (int, error) {
	status, err := c.status(ctx, key)
	if err != nil {
		return 0, err
	}
	return int(status.Messages), nil
}

// UnreadMessageCount returns the number of messages without \Seen.
func (c *Client) UnreadMessageCount(ctx context.Context, key mail.FolderKey) (int, error) {
	status, err := c.status(ctx, key)
	if err != nil {
		return 0, err
	}
	return int(status.Unseen), nil
}

func (c *Client) status(ctx context.Context, key mail.FolderKey) (*imap.MailboxStatus, error) {
	if err := c.checkFolder(key); err != nil {
		return nil, err
	}
	t, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	status, err := t.Status(ctx, key.ID)
	if err != nil {
		return nil, wrap("folder status", key, err)
	}
	return status, nil
}

func leafName(name, delimiter string) string {
	if delimiter == "" {
		return name
	}
	if i := strings.LastIndex(name, delimiter); i >= 0 {
		return name[i+len(delimiter):]
	}
	return name
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
