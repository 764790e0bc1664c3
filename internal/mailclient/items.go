package mailclient

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/filter"
	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
)

// SortField orders message items by one attribute.
type SortField struct {
	Field      string
	Descending bool
}

// ListOptions selects a window of a folder's messages. A negative Limit
// means no limit.
type ListOptions struct {
	Start  int
	Limit  int
	Sort   []SortField
	Filter filter.Expression
}

var itemHeaders = []string{
	"Content-Type",
	"In-Reply-To",
	"References",
	mail.DraftInfoHeader,
}

var itemFetch = imap.FetchOptions{
	Flags:     true,
	Size:      true,
	Envelope:  true,
	Structure: true,
	Headers:   itemHeaders,
}

// ListMessageItems searches the folder, windows the complete ordered UID
// list and fetches exactly the window. The items keep the search order.
// The second result is the number of messages matching the search.
func (c *Client) ListMessageItems(ctx context.Context, key mail.FolderKey, opts ListOptions) ([]*mail.MessageItem, int, error) {
	if err := c.checkFolder(key); err != nil {
		return nil, 0, err
	}
	criteria, err := c.SearchCriteria(opts.Filter)
	if err != nil {
		return nil, 0, err
	}
	t, err := c.conn(ctx)
	if err != nil {
		return nil, 0, err
	}

	uids, err := t.Search(ctx, key.ID, criteria, sortCriteria(opts.Sort))
	if err != nil {
		return nil, 0, wrap("search messages", key, err)
	}
	window := windowOf(uids, opts.Start, opts.Limit)
	if len(window) == 0 {
		return nil, len(uids), nil
	}

	results, err := t.Fetch(ctx, key.ID, window, itemFetch)
	if err != nil {
		return nil, 0, wrap("fetch messages", key, err)
	}
	byUID := make(map[uint32]*imap.FetchResult, len(results))
	for i := range results {
		byUID[results[i].UID] = &results[i]
	}

	items := make([]*mail.MessageItem, 0, len(window))
	for _, uid := range window {
		r, ok := byUID[uid]
		if !ok {
			// expunged between search and fetch
			continue
		}
		item := mail.NewMessageItem(key.MessageKey(formatUID(uid)))
		fillItem(item, r)
		items = append(items, item)
	}

	c.logger.Debug("listed messages",
		zap.String("folder", key.ID),
		zap.Int("total", len(uids)),
		zap.Int("returned", len(items)))
	return items, len(uids), nil
}

// GetMessageItem fetches a single message item.
func (c *Client) GetMessageItem(ctx context.Context, key mail.MessageKey) (*mail.MessageItem, error) {
	r, err := c.fetchOne(ctx, key, itemFetch)
	if err != nil {
		return nil, err
	}
	item := mail.NewMessageItem(key)
	fillItem(item, r)
	return item, nil
}

// GetMessageItemDraft fetches a message flagged \Draft.
func (c *Client) GetMessageItemDraft(ctx context.Context, key mail.MessageKey) (*mail.MessageItemDraft, error) {
	r, err := c.fetchOne(ctx, key, itemFetch)
	if err != nil {
		return nil, err
	}
	if !r.HasFlag(string(mail.FlagDraft)) {
		return nil, &MailClientError{Op: "get draft", Err: ErrNotADraft}
	}
	return draftFromFetch(key, r), nil
}

// GetMessageBody fetches the first plain and the first html part of a
// message. Contents keep their original charset.
func (c *Client) GetMessageBody(ctx context.Context, key mail.MessageKey) (*mail.MessageBody, error) {
	plain, html, err := c.fetchText(ctx, key)
	if err != nil {
		return nil, err
	}
	return &mail.MessageBody{Key: key, TextPlain: plain, TextHTML: html}, nil
}

func (c *Client) fetchText(ctx context.Context, key mail.MessageKey) (plain, html *mail.MessagePart, err error) {
	r, err := c.fetchOne(ctx, key, imap.FetchOptions{Structure: true})
	if err != nil {
		return nil, nil, err
	}

	var plainPart, htmlPart *imap.BodyPart
	for i := range r.Parts {
		p := &r.Parts[i]
		if p.IsAttachment() {
			continue
		}
		switch p.MimeType() {
		case mail.MimeTypeTextPlain:
			if plainPart == nil {
				plainPart = p
			}
		case mail.MimeTypeTextHTML:
			if htmlPart == nil {
				htmlPart = p
			}
		}
	}

	var sections []string
	for _, p := range []*imap.BodyPart{plainPart, htmlPart} {
		if p != nil {
			sections = append(sections, p.Path)
		}
	}
	if len(sections) == 0 {
		return nil, nil, nil
	}

	r, err = c.fetchOne(ctx, key, imap.FetchOptions{Sections: sections})
	if err != nil {
		return nil, nil, err
	}

	part := func(p *imap.BodyPart) (*mail.MessagePart, error) {
		if p == nil {
			return nil, nil
		}
		data, err := decodeSection(r.Sections[p.Path], p.Encoding)
		if err != nil {
			return nil, wrap("decode body", key.FolderKey(), err)
		}
		return mail.NewMessagePart(string(data), p.Charset(), p.MimeType()), nil
	}
	if plain, err = part(plainPart); err != nil {
		return nil, nil, err
	}
	if html, err = part(htmlPart); err != nil {
		return nil, nil, err
	}
	return plain, html, nil
}

func (c *Client) fetchOne(ctx context.Context, key mail.MessageKey, opts imap.FetchOptions) (*imap.FetchResult, error) {
	uid, err := c.checkMessage(key)
	if err != nil {
		return nil, err
	}
	t, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	results, err := t.Fetch(ctx, key.MailFolderID, []uint32{uid}, opts)
	if err != nil {
		return nil, wrap("fetch message", key.FolderKey(), err)
	}
	for i := range results {
		if results[i].UID == uid {
			return &results[i], nil
		}
	}
	return nil, &MailClientError{Op: "fetch message " + key.ID, Err: ErrMessageNotFound}
}

func draftFromFetch(key mail.MessageKey, r *imap.FetchResult) *mail.MessageItemDraft {
	d := mail.NewMessageItemDraft(key)
	fillItem(&d.MessageItem, r)
	if encoded := r.HeaderText(mail.DraftInfoHeader); encoded != "" {
		if info, err := mail.DecodeDraftInfo(encoded); err == nil {
			d.SetDraftInfo(info)
		}
	}
	d.ResetModified()
	return d
}

func fillItem(item *mail.MessageItem, r *imap.FetchResult) {
	if env := r.Envelope; env != nil {
		if len(env.From) > 0 {
			item.SetFrom(toAddress(env.From[0]))
		}
		if len(env.ReplyTo) > 0 {
			item.SetReplyTo(toAddress(env.ReplyTo[0]))
		}
		item.SetTo(toAddressList(env.To))
		item.SetCc(toAddressList(env.Cc))
		item.SetBcc(toAddressList(env.Bcc))
		item.SetSubject(env.Subject)
		item.SetDate(env.Date)
		if env.MessageID != "" {
			item.SetMessageID(bracketID(env.MessageID))
		}
	}

	item.SetSize(int(r.Size))
	item.SetSeen(r.HasFlag(string(mail.FlagSeen)))
	item.SetAnswered(r.HasFlag(string(mail.FlagAnswered)))
	item.SetDraft(r.HasFlag(string(mail.FlagDraft)))
	item.SetFlagged(r.HasFlag(string(mail.FlagFlagged)))
	item.SetRecent(r.HasFlag(string(mail.FlagRecent)))

	hasAttachments := false
	charset := ""
	for _, p := range r.Parts {
		if p.IsAttachment() {
			hasAttachments = true
		} else if charset == "" {
			charset = p.Charset()
		}
	}
	if _, params, err := r.Header.ContentType(); err == nil && params["charset"] != "" {
		charset = params["charset"]
	}
	item.SetHasAttachments(hasAttachments)
	item.SetCharset(charset)
	item.SetInReplyTo(r.HeaderText("In-Reply-To"))
	item.SetReferences(r.HeaderText("References"))
	item.ResetModified()
}

func toAddress(a imap.Address) mail.Address {
	return mail.Address{Name: a.Name, Address: a.Address}
}

func toAddressList(list []imap.Address) mail.AddressList {
	if len(list) == 0 {
		return nil
	}
	out := make(mail.AddressList, len(list))
	for i, a := range list {
		out[i] = toAddress(a)
	}
	return out
}

func bracketID(id string) string {
	if strings.HasPrefix(id, "<") {
		return id
	}
	return "<" + id + ">"
}

// windowOf returns uids[start:start+limit], clamped.
func windowOf(uids []uint32, start, limit int) []uint32 {
	if start < 0 {
		start = 0
	}
	if start >= len(uids) {
		return nil
	}
	end := len(uids)
	if limit >= 0 && limit < end-start {
		end = start + limit
	}
	return uids[start:end]
}
