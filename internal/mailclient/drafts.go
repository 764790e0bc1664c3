package mailclient

import (
	"context"

	goimap "github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
)

// flags every stored draft is appended with
var draftFlags = []string{string(mail.FlagDraft), string(mail.FlagSeen)}

// CreateMessageDraft stores a new draft built from the item's envelope
// fields and returns it with its new key.
func (c *Client) CreateMessageDraft(ctx context.Context, folder mail.FolderKey, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error) {
	if draft.HasKey() {
		return nil, serviceErrorf("draft %s already has a key", draft.Key())
	}
	if err := c.checkFolder(folder); err != nil {
		return nil, err
	}

	m := &draftMessage{}
	m.applyItem(&draft.MessageItem)
	m.applyDraftInfo(draft.DraftInfo())

	key, err := c.storeDraft(ctx, folder, m)
	if err != nil {
		return nil, err
	}
	return draft.WithKey(key), nil
}

// CreateMessageBodyDraft stores a new draft holding only body. Text parts
// must be UTF-8.
func (c *Client) CreateMessageBodyDraft(ctx context.Context, folder mail.FolderKey, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error) {
	if body.HasKey() {
		return nil, serviceErrorf("body draft %s already has a key", body.Key)
	}
	if err := c.checkFolder(folder); err != nil {
		return nil, err
	}

	key, err := c.storeDraft(ctx, folder, &draftMessage{plain: body.TextPlain, html: body.TextHTML})
	if err != nil {
		return nil, err
	}
	return body.WithKey(key), nil
}

// UpdateMessageDraft replaces the stored draft with one carrying the
// envelope fields of draft. Body and attachments are kept. The returned
// draft has the key of the replacement.
func (c *Client) UpdateMessageDraft(ctx context.Context, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error) {
	if !draft.HasKey() {
		return nil, serviceErrorf("draft has no key")
	}
	uid, m, err := c.loadDraft(ctx, draft.Key())
	if err != nil {
		return nil, err
	}

	m.applyItem(&draft.MessageItem)
	m.applyDraftInfo(draft.DraftInfo())

	key, err := c.replaceDraft(ctx, draft.Key(), uid, m)
	if err != nil {
		return nil, err
	}
	return draft.WithKey(key), nil
}

// UpdateMessageBodyDraft replaces the text parts of a stored draft.
func (c *Client) UpdateMessageBodyDraft(ctx context.Context, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error) {
	if !body.HasKey() {
		return nil, serviceErrorf("body draft has no key")
	}
	uid, m, err := c.loadDraft(ctx, body.Key)
	if err != nil {
		return nil, err
	}

	m.plain = body.TextPlain
	m.html = body.TextHTML

	key, err := c.replaceDraft(ctx, body.Key, uid, m)
	if err != nil {
		return nil, err
	}
	return body.WithKey(key), nil
}

// SendMessageDraft submits a stored draft. The draft info header is
// stripped before sending; afterwards the message it points to is
// flagged \Answered if it belongs to this account.
func (c *Client) SendMessageDraft(ctx context.Context, key mail.MessageKey) error {
	r, err := c.fetchOne(ctx, key, imap.FetchOptions{Flags: true, Full: true})
	if err != nil {
		return err
	}
	if !r.HasFlag(string(mail.FlagDraft)) {
		return &MailClientError{Op: "send " + key.String(), Err: ErrNotADraft}
	}

	h, body, err := splitHeader(r.Full)
	if err != nil {
		return wrap("send", key.FolderKey(), err)
	}
	encoded := h.Get(mail.DraftInfoHeader)
	h.Del(mail.DraftInfoHeader)
	raw, err := joinHeader(h, body)
	if err != nil {
		return wrap("send", key.FolderKey(), err)
	}

	if err := c.sender.Send(ctx, c.account.From.Address, nil, raw); err != nil {
		return wrap("send", key.FolderKey(), err)
	}
	c.logger.Info("draft sent", zap.String("key", key.String()))

	if encoded != "" {
		c.markAnswered(ctx, encoded)
	}
	return nil
}

func (c *Client) markAnswered(ctx context.Context, encoded string) {
	info, err := mail.DecodeDraftInfo(encoded)
	if err != nil {
		c.logger.Debug("ignoring malformed draft info", zap.Error(err))
		return
	}
	if info.MailAccountID != c.account.ID {
		return
	}
	uid, err := parseUID(info.ID)
	if err != nil {
		return
	}
	t, err := c.conn(ctx)
	if err != nil {
		return
	}
	if err := t.Store(ctx, info.MailFolderID, []uint32{uid}, []string{string(mail.FlagAnswered)}, nil); err != nil {
		c.logger.Warn("failed to flag original as answered",
			zap.String("key", info.MessageKey().String()),
			zap.Error(err))
	}
}

// DeleteMessage permanently removes a message.
func (c *Client) DeleteMessage(ctx context.Context, key mail.MessageKey) error {
	if _, err := c.fetchOne(ctx, key, imap.FetchOptions{Flags: true}); err != nil {
		return err
	}
	uid, _ := parseUID(key.ID)
	t, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if err := t.Expunge(ctx, key.MailFolderID, []uint32{uid}); err != nil {
		return wrap("delete message", key.FolderKey(), err)
	}
	return nil
}

// SetFlags applies flags to a message.
func (c *Client) SetFlags(ctx context.Context, key mail.MessageKey, flags *mail.FlagList) error {
	uid, err := c.checkMessage(key)
	if err != nil {
		return err
	}
	add, remove := flags.Resolve()
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}
	t, err := c.conn(ctx)
	if err != nil {
		return err
	}
	if err := t.Store(ctx, key.MailFolderID, []uint32{uid}, add, remove); err != nil {
		return wrap("set flags", key.FolderKey(), err)
	}
	return nil
}

// MoveMessage moves a message to dest and returns its new key.
func (c *Client) MoveMessage(ctx context.Context, key mail.MessageKey, dest mail.FolderKey) (mail.MessageKey, error) {
	if err := c.checkFolder(dest); err != nil {
		return mail.MessageKey{}, err
	}
	r, err := c.fetchOne(ctx, key, imap.FetchOptions{Envelope: true})
	if err != nil {
		return mail.MessageKey{}, err
	}
	t, err := c.conn(ctx)
	if err != nil {
		return mail.MessageKey{}, err
	}

	mapping, err := t.Move(ctx, key.MailFolderID, []uint32{r.UID}, dest.ID)
	if err != nil {
		return mail.MessageKey{}, wrap("move message", dest, err)
	}
	newUID := mapping[r.UID]
	if newUID == 0 && r.Envelope != nil && r.Envelope.MessageID != "" {
		newUID, err = c.findByMessageID(ctx, t, dest, r.Envelope.MessageID)
		if err != nil {
			return mail.MessageKey{}, err
		}
	}
	if newUID == 0 {
		return mail.MessageKey{}, &MailClientError{Op: "move message", Err: ErrMessageNotFound}
	}
	return dest.MessageKey(formatUID(newUID)), nil
}

// loadDraft fetches and parses a stored draft.
func (c *Client) loadDraft(ctx context.Context, key mail.MessageKey) (uint32, *draftMessage, error) {
	r, err := c.fetchOne(ctx, key, imap.FetchOptions{Flags: true, Full: true})
	if err != nil {
		return 0, nil, err
	}
	if !r.HasFlag(string(mail.FlagDraft)) {
		return 0, nil, &MailClientError{Op: "load draft " + key.String(), Err: ErrNotADraft}
	}
	m, err := parseMessage(r.Full)
	if err != nil {
		return 0, nil, wrap("load draft", key.FolderKey(), err)
	}
	return r.UID, m, nil
}

// storeDraft appends m flagged \Draft and returns its key.
func (c *Client) storeDraft(ctx context.Context, folder mail.FolderKey, m *draftMessage) (mail.MessageKey, error) {
	raw, err := m.compose()
	if err != nil {
		return mail.MessageKey{}, &ServiceError{Msg: "failed to compose draft", Err: err}
	}
	t, err := c.conn(ctx)
	if err != nil {
		return mail.MessageKey{}, err
	}

	uid, err := t.Append(ctx, folder.ID, raw, draftFlags)
	if err != nil {
		return mail.MessageKey{}, wrap("append draft", folder, err)
	}
	if uid == 0 {
		h, _, err := splitHeader(raw)
		if err != nil {
			return mail.MessageKey{}, wrap("append draft", folder, err)
		}
		if uid, err = c.findByMessageID(ctx, t, folder, h.Get("Message-Id")); err != nil {
			return mail.MessageKey{}, err
		}
		if uid == 0 {
			return mail.MessageKey{}, &MailClientError{Op: "append draft", Err: ErrMessageNotFound}
		}
	}
	return folder.MessageKey(formatUID(uid)), nil
}

// replaceDraft stores m as the successor of the draft at old and then
// expunges old. The replacement is not rolled back when the expunge
// fails; the new key is returned and a duplicate draft remains.
func (c *Client) replaceDraft(ctx context.Context, old mail.MessageKey, oldUID uint32, m *draftMessage) (mail.MessageKey, error) {
	key, err := c.storeDraft(ctx, old.FolderKey(), m)
	if err != nil {
		return mail.MessageKey{}, err
	}

	t, err := c.conn(ctx)
	if err == nil {
		err = t.Expunge(ctx, old.MailFolderID, []uint32{oldUID})
	}
	if err != nil {
		c.logger.Warn("replaced draft but could not delete the old one",
			zap.String("old", old.String()),
			zap.String("new", key.String()),
			zap.Error(err))
		c.metrics.DraftReplaced(false)
		return key, nil
	}
	c.metrics.DraftReplaced(true)
	return key, nil
}

// findByMessageID returns the highest UID carrying messageID, or 0.
func (c *Client) findByMessageID(ctx context.Context, t Transport, folder mail.FolderKey, messageID string) (uint32, error) {
	if messageID == "" {
		return 0, nil
	}
	criteria := &goimap.SearchCriteria{
		Header: []goimap.SearchCriteriaHeaderField{{Key: "Message-ID", Value: messageID}},
	}
	uids, err := t.Search(ctx, folder.ID, criteria, nil)
	if err != nil {
		return 0, wrap("search message id", folder, err)
	}
	var newest uint32
	for _, uid := range uids {
		if uid > newest {
			newest = uid
		}
	}
	return newest, nil
}
