package mailclient

import (
	"context"
	"encoding/base64"

	goimap "github.com/emersion/go-imap/v2"

	"github.com/bscott/mailgate/internal/filter"
	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
)

// AttachmentOperations manages the files attached to stored messages.
type AttachmentOperations interface {
	FileAttachments(ctx context.Context, key mail.MessageKey) ([]*mail.FileAttachment, error)
	CreateAttachments(ctx context.Context, key mail.MessageKey, attachments []*mail.FileAttachment) ([]*mail.FileAttachment, error)
	DeleteAttachment(ctx context.Context, key mail.AttachmentKey) (mail.MessageKey, error)
}

// FilterOperations translates filter expressions for the server.
type FilterOperations interface {
	SearchCriteria(expr filter.Expression) (*goimap.SearchCriteria, error)
}

var (
	_ AttachmentOperations = (*Client)(nil)
	_ FilterOperations     = (*Client)(nil)
)

// FileAttachments lists the attachments of a message with base64 content.
func (c *Client) FileAttachments(ctx context.Context, key mail.MessageKey) ([]*mail.FileAttachment, error) {
	r, err := c.fetchOne(ctx, key, imap.FetchOptions{Full: true})
	if err != nil {
		return nil, err
	}
	m, err := parseMessage(r.Full)
	if err != nil {
		return nil, wrap("read attachments", key.FolderKey(), err)
	}
	return keyAttachments(key, m.attachments)
}

// CreateAttachments adds attachments to a stored draft. Attachments that
// are already present are not added twice. The returned attachments are
// keyed on the replacement draft.
func (c *Client) CreateAttachments(ctx context.Context, key mail.MessageKey, attachments []*mail.FileAttachment) ([]*mail.FileAttachment, error) {
	ids := make([]string, len(attachments))
	for i, a := range attachments {
		id, err := a.GenerateID()
		if err != nil {
			return nil, &ServiceError{Msg: "invalid attachment " + a.Text, Err: err}
		}
		if _, err := base64.StdEncoding.DecodeString(a.Content); err != nil {
			return nil, &ServiceError{Msg: "invalid attachment " + a.Text, Err: err}
		}
		ids[i] = id
	}

	uid, m, err := c.loadDraft(ctx, key)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool)
	for _, a := range m.attachments {
		if id, err := a.GenerateID(); err == nil {
			present[id] = true
		}
	}
	for i, a := range attachments {
		if present[ids[i]] {
			continue
		}
		present[ids[i]] = true
		m.attachments = append(m.attachments, a)
	}

	newKey, err := c.replaceDraft(ctx, key, uid, m)
	if err != nil {
		return nil, err
	}

	out := make([]*mail.FileAttachment, len(attachments))
	for i, a := range attachments {
		out[i] = a.WithKey(newKey.AttachmentKey(ids[i]))
	}
	return out, nil
}

// DeleteAttachment removes an attachment from a stored draft and returns
// the key of the replacement draft.
func (c *Client) DeleteAttachment(ctx context.Context, key mail.AttachmentKey) (mail.MessageKey, error) {
	if err := key.Validate(); err != nil {
		return mail.MessageKey{}, &ServiceError{Msg: "invalid attachment key", Err: err}
	}
	msgKey := key.MessageKey()
	uid, m, err := c.loadDraft(ctx, msgKey)
	if err != nil {
		return mail.MessageKey{}, err
	}

	kept := m.attachments[:0]
	found := false
	for _, a := range m.attachments {
		if id, err := a.GenerateID(); err == nil && id == key.ID && !found {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return mail.MessageKey{}, &MailClientError{Op: "delete attachment " + key.String(), Err: ErrAttachmentNotFound}
	}
	m.attachments = kept

	return c.replaceDraft(ctx, msgKey, uid, m)
}

func keyAttachments(key mail.MessageKey, attachments []*mail.FileAttachment) ([]*mail.FileAttachment, error) {
	out := make([]*mail.FileAttachment, 0, len(attachments))
	for _, a := range attachments {
		id, err := a.GenerateID()
		if err != nil {
			return nil, &ServiceError{Msg: "invalid attachment " + a.Text, Err: err}
		}
		out = append(out, a.WithKey(key.AttachmentKey(id)))
	}
	return out, nil
}
