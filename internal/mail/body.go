package mail

const (
	MimeTypeTextPlain = "text/plain"
	MimeTypeTextHTML  = "text/html"

	DefaultCharset = "UTF-8"
)

// MessagePart is one text representation of a message body. Contents are
// always paired with their charset.
type MessagePart struct {
	Contents string `json:"contents"`
	Charset  string `json:"charset"`
	MimeType string `json:"mimeType"`
}

func NewMessagePart(contents, charset, mimeType string) *MessagePart {
	return &MessagePart{Contents: contents, Charset: charset, MimeType: mimeType}
}

// WithContents returns a copy of p with new contents and charset.
func (p *MessagePart) WithContents(contents, charset string) *MessagePart {
	return &MessagePart{Contents: contents, Charset: charset, MimeType: p.MimeType}
}

func (p *MessagePart) clone() *MessagePart {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// MessageBody holds at most one part per text mime type.
type MessageBody struct {
	Key       MessageKey
	TextPlain *MessagePart
	TextHTML  *MessagePart
}

func (b *MessageBody) ResourceType() string { return "MessageBody" }
func (b *MessageBody) ResourceID() string   { return b.Key.ID }

func (b *MessageBody) ResourceAttributes() map[string]any {
	return bodyAttributes(b.Key, b.TextPlain, b.TextHTML)
}

// MessageBodyDraft is an editable body. A draft that has not been stored
// yet has a zero key.
type MessageBodyDraft struct {
	Key       MessageKey
	TextPlain *MessagePart
	TextHTML  *MessagePart
}

func (b *MessageBodyDraft) HasKey() bool { return !b.Key.IsZero() }

// WithKey returns a copy of b addressed by key. b is left unchanged.
func (b *MessageBodyDraft) WithKey(key MessageKey) *MessageBodyDraft {
	return &MessageBodyDraft{Key: key, TextPlain: b.TextPlain.clone(), TextHTML: b.TextHTML.clone()}
}

func (b *MessageBodyDraft) ResourceType() string { return "MessageBody" }
func (b *MessageBodyDraft) ResourceID() string   { return b.Key.ID }

func (b *MessageBodyDraft) ResourceAttributes() map[string]any {
	return bodyAttributes(b.Key, b.TextPlain, b.TextHTML)
}

func bodyAttributes(key MessageKey, plain, html *MessagePart) map[string]any {
	attrs := map[string]any{
		"textPlain":     nil,
		"textHtml":      nil,
		"mailAccountId": key.MailAccountID,
		"mailFolderId":  key.MailFolderID,
	}
	if plain != nil {
		attrs["textPlain"] = plain.Contents
	}
	if html != nil {
		attrs["textHtml"] = html.Contents
	}
	return attrs
}
