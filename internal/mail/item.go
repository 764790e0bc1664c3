package mail

import (
	"fmt"
	"time"
)

// Field names a message item attribute.
type Field string

const (
	FieldFrom           Field = "from"
	FieldTo             Field = "to"
	FieldCc             Field = "cc"
	FieldBcc            Field = "bcc"
	FieldReplyTo        Field = "replyTo"
	FieldSubject        Field = "subject"
	FieldDate           Field = "date"
	FieldSize           Field = "size"
	FieldSeen           Field = "seen"
	FieldAnswered       Field = "answered"
	FieldDraft          Field = "draft"
	FieldFlagged        Field = "flagged"
	FieldRecent         Field = "recent"
	FieldHasAttachments Field = "hasAttachments"
	FieldCharset        Field = "charset"
	FieldMessageID      Field = "messageId"
	FieldInReplyTo      Field = "inReplyTo"
	FieldReferences     Field = "references"
	FieldPreviewText    Field = "previewText"
	FieldDraftInfo      Field = "draftInfo"
)

// UnknownFieldError is returned when a field is not declared for the item.
type UnknownFieldError struct {
	Field Field
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// FieldTypeError is returned when a value has the wrong type for its field.
type FieldTypeError struct {
	Field Field
	Want  string
	Got   any
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q expects %s, got %T", e.Field, e.Want, e.Got)
}

// MessageItem is the envelope of a message: addresses, subject, dates,
// flags and selected headers. Every setter records the field as modified.
type MessageItem struct {
	key MessageKey

	from           Address
	to             AddressList
	cc             AddressList
	bcc            AddressList
	replyTo        Address
	subject        string
	date           time.Time
	size           int
	seen           bool
	answered       bool
	draft          bool
	flagged        bool
	recent         bool
	hasAttachments bool
	charset        string
	messageID      string
	inReplyTo      string
	references     string
	previewText    string

	modified []Field
}

func NewMessageItem(key MessageKey) *MessageItem {
	return &MessageItem{key: key}
}

func (m *MessageItem) Key() MessageKey { return m.key }

func (m *MessageItem) From() Address        { return m.from }
func (m *MessageItem) To() AddressList      { return m.to.Clone() }
func (m *MessageItem) Cc() AddressList      { return m.cc.Clone() }
func (m *MessageItem) Bcc() AddressList     { return m.bcc.Clone() }
func (m *MessageItem) ReplyTo() Address     { return m.replyTo }
func (m *MessageItem) Subject() string      { return m.subject }
func (m *MessageItem) Date() time.Time      { return m.date }
func (m *MessageItem) Size() int            { return m.size }
func (m *MessageItem) Seen() bool           { return m.seen }
func (m *MessageItem) Answered() bool       { return m.answered }
func (m *MessageItem) Draft() bool          { return m.draft }
func (m *MessageItem) Flagged() bool        { return m.flagged }
func (m *MessageItem) Recent() bool         { return m.recent }
func (m *MessageItem) HasAttachments() bool { return m.hasAttachments }
func (m *MessageItem) Charset() string      { return m.charset }
func (m *MessageItem) MessageID() string    { return m.messageID }
func (m *MessageItem) InReplyTo() string    { return m.inReplyTo }
func (m *MessageItem) References() string   { return m.references }
func (m *MessageItem) PreviewText() string  { return m.previewText }

func (m *MessageItem) SetFrom(a Address)        { m.from = a; m.touch(FieldFrom) }
func (m *MessageItem) SetTo(l AddressList)      { m.to = l.Clone(); m.touch(FieldTo) }
func (m *MessageItem) SetCc(l AddressList)      { m.cc = l.Clone(); m.touch(FieldCc) }
func (m *MessageItem) SetBcc(l AddressList)     { m.bcc = l.Clone(); m.touch(FieldBcc) }
func (m *MessageItem) SetReplyTo(a Address)     { m.replyTo = a; m.touch(FieldReplyTo) }
func (m *MessageItem) SetSubject(s string)      { m.subject = s; m.touch(FieldSubject) }
func (m *MessageItem) SetDate(t time.Time)      { m.date = t; m.touch(FieldDate) }
func (m *MessageItem) SetSize(n int)            { m.size = n; m.touch(FieldSize) }
func (m *MessageItem) SetSeen(b bool)           { m.seen = b; m.touch(FieldSeen) }
func (m *MessageItem) SetAnswered(b bool)       { m.answered = b; m.touch(FieldAnswered) }
func (m *MessageItem) SetDraft(b bool)          { m.draft = b; m.touch(FieldDraft) }
func (m *MessageItem) SetFlagged(b bool)        { m.flagged = b; m.touch(FieldFlagged) }
func (m *MessageItem) SetRecent(b bool)         { m.recent = b; m.touch(FieldRecent) }
func (m *MessageItem) SetHasAttachments(b bool) { m.hasAttachments = b; m.touch(FieldHasAttachments) }
func (m *MessageItem) SetCharset(s string)      { m.charset = s; m.touch(FieldCharset) }
func (m *MessageItem) SetMessageID(s string)    { m.messageID = s; m.touch(FieldMessageID) }
func (m *MessageItem) SetInReplyTo(s string)    { m.inReplyTo = s; m.touch(FieldInReplyTo) }
func (m *MessageItem) SetReferences(s string)   { m.references = s; m.touch(FieldReferences) }
func (m *MessageItem) SetPreviewText(s string)  { m.previewText = s; m.touch(FieldPreviewText) }

func (m *MessageItem) touch(f Field) {
	for _, existing := range m.modified {
		if existing == f {
			return
		}
	}
	m.modified = append(m.modified, f)
}

// Modified returns the fields set since construction or the last reset, in
// the order they were first set.
func (m *MessageItem) Modified() []Field {
	out := make([]Field, len(m.modified))
	copy(out, m.modified)
	return out
}

// IsModified reports whether f was set since the last reset.
func (m *MessageItem) IsModified(f Field) bool {
	for _, existing := range m.modified {
		if existing == f {
			return true
		}
	}
	return false
}

func (m *MessageItem) ResetModified() { m.modified = nil }

// Set assigns value to the named field.
func (m *MessageItem) Set(f Field, value any) error {
	switch f {
	case FieldFrom, FieldReplyTo:
		a, ok := value.(Address)
		if !ok {
			return &FieldTypeError{Field: f, Want: "Address", Got: value}
		}
		if f == FieldFrom {
			m.SetFrom(a)
		} else {
			m.SetReplyTo(a)
		}
	case FieldTo, FieldCc, FieldBcc:
		l, ok := value.(AddressList)
		if !ok {
			return &FieldTypeError{Field: f, Want: "AddressList", Got: value}
		}
		switch f {
		case FieldTo:
			m.SetTo(l)
		case FieldCc:
			m.SetCc(l)
		default:
			m.SetBcc(l)
		}
	case FieldSubject, FieldCharset, FieldMessageID, FieldInReplyTo, FieldReferences, FieldPreviewText:
		s, ok := value.(string)
		if !ok {
			return &FieldTypeError{Field: f, Want: "string", Got: value}
		}
		m.setString(f, s)
	case FieldDate:
		t, ok := value.(time.Time)
		if !ok {
			return &FieldTypeError{Field: f, Want: "time.Time", Got: value}
		}
		m.SetDate(t)
	case FieldSize:
		n, ok := value.(int)
		if !ok {
			return &FieldTypeError{Field: f, Want: "int", Got: value}
		}
		m.SetSize(n)
	case FieldSeen, FieldAnswered, FieldDraft, FieldFlagged, FieldRecent, FieldHasAttachments:
		b, ok := value.(bool)
		if !ok {
			return &FieldTypeError{Field: f, Want: "bool", Got: value}
		}
		m.setBool(f, b)
	default:
		return &UnknownFieldError{Field: f}
	}
	return nil
}

func (m *MessageItem) setString(f Field, s string) {
	switch f {
	case FieldSubject:
		m.SetSubject(s)
	case FieldCharset:
		m.SetCharset(s)
	case FieldMessageID:
		m.SetMessageID(s)
	case FieldInReplyTo:
		m.SetInReplyTo(s)
	case FieldReferences:
		m.SetReferences(s)
	case FieldPreviewText:
		m.SetPreviewText(s)
	}
}

func (m *MessageItem) setBool(f Field, b bool) {
	switch f {
	case FieldSeen:
		m.SetSeen(b)
	case FieldAnswered:
		m.SetAnswered(b)
	case FieldDraft:
		m.SetDraft(b)
	case FieldFlagged:
		m.SetFlagged(b)
	case FieldRecent:
		m.SetRecent(b)
	case FieldHasAttachments:
		m.SetHasAttachments(b)
	}
}

// Get returns the value of the named field.
func (m *MessageItem) Get(f Field) (any, error) {
	switch f {
	case FieldFrom:
		return m.from, nil
	case FieldTo:
		return m.To(), nil
	case FieldCc:
		return m.Cc(), nil
	case FieldBcc:
		return m.Bcc(), nil
	case FieldReplyTo:
		return m.replyTo, nil
	case FieldSubject:
		return m.subject, nil
	case FieldDate:
		return m.date, nil
	case FieldSize:
		return m.size, nil
	case FieldSeen:
		return m.seen, nil
	case FieldAnswered:
		return m.answered, nil
	case FieldDraft:
		return m.draft, nil
	case FieldFlagged:
		return m.flagged, nil
	case FieldRecent:
		return m.recent, nil
	case FieldHasAttachments:
		return m.hasAttachments, nil
	case FieldCharset:
		return m.charset, nil
	case FieldMessageID:
		return m.messageID, nil
	case FieldInReplyTo:
		return m.inReplyTo, nil
	case FieldReferences:
		return m.references, nil
	case FieldPreviewText:
		return m.previewText, nil
	}
	return nil, &UnknownFieldError{Field: f}
}

// copyFrom copies every value and the modified set of src into m.
func (m *MessageItem) copyFrom(src *MessageItem) {
	key := m.key
	*m = *src
	m.key = key
	m.to = src.to.Clone()
	m.cc = src.cc.Clone()
	m.bcc = src.bcc.Clone()
	m.modified = src.Modified()
}

func (m *MessageItem) ResourceType() string { return "MessageItem" }
func (m *MessageItem) ResourceID() string   { return m.key.ID }

// ResourceAttributes returns the item's attributes keyed by field name.
// Addresses are rendered as objects, dates in RFC 3339.
func (m *MessageItem) ResourceAttributes() map[string]any {
	attrs := map[string]any{
		string(FieldFrom):           addressOrNil(m.from),
		string(FieldTo):             nonNil(m.to),
		string(FieldCc):             nonNil(m.cc),
		string(FieldBcc):            nonNil(m.bcc),
		string(FieldReplyTo):        addressOrNil(m.replyTo),
		string(FieldSubject):        m.subject,
		string(FieldSize):           m.size,
		string(FieldSeen):           m.seen,
		string(FieldAnswered):       m.answered,
		string(FieldDraft):          m.draft,
		string(FieldFlagged):        m.flagged,
		string(FieldRecent):         m.recent,
		string(FieldHasAttachments): m.hasAttachments,
		string(FieldCharset):        m.charset,
		string(FieldMessageID):      m.messageID,
		string(FieldInReplyTo):      m.inReplyTo,
		string(FieldReferences):     m.references,
		string(FieldPreviewText):    m.previewText,
		"mailAccountId":             m.key.MailAccountID,
		"mailFolderId":              m.key.MailFolderID,
	}
	if !m.date.IsZero() {
		attrs[string(FieldDate)] = m.date.Format(time.RFC3339)
	} else {
		attrs[string(FieldDate)] = nil
	}
	return attrs
}

func addressOrNil(a Address) any {
	if a.IsZero() {
		return nil
	}
	return a
}

func nonNil(l AddressList) AddressList {
	if l == nil {
		return AddressList{}
	}
	return l.Clone()
}

// MessageItemDraft is a message item that can be edited and sent. A draft
// that has not been stored yet has a zero key.
type MessageItemDraft struct {
	MessageItem
	draftInfo *DraftInfo
}

func NewMessageItemDraft(key MessageKey) *MessageItemDraft {
	return &MessageItemDraft{MessageItem: MessageItem{key: key}}
}

func (d *MessageItemDraft) HasKey() bool { return !d.key.IsZero() }

func (d *MessageItemDraft) DraftInfo() (DraftInfo, bool) {
	if d.draftInfo == nil {
		return DraftInfo{}, false
	}
	return *d.draftInfo, true
}

func (d *MessageItemDraft) SetDraftInfo(info DraftInfo) {
	d.draftInfo = &info
	d.touch(FieldDraftInfo)
}

// Set accepts draftInfo as a DraftInfo or its encoded string, and delegates
// every other field to MessageItem.
func (d *MessageItemDraft) Set(f Field, value any) error {
	if f != FieldDraftInfo {
		return d.MessageItem.Set(f, value)
	}
	switch v := value.(type) {
	case DraftInfo:
		d.SetDraftInfo(v)
	case string:
		info, err := DecodeDraftInfo(v)
		if err != nil {
			return err
		}
		d.SetDraftInfo(info)
	default:
		return &FieldTypeError{Field: f, Want: "DraftInfo", Got: value}
	}
	return nil
}

func (d *MessageItemDraft) Get(f Field) (any, error) {
	if f != FieldDraftInfo {
		return d.MessageItem.Get(f)
	}
	if d.draftInfo == nil {
		return nil, nil
	}
	return *d.draftInfo, nil
}

// WithKey returns a copy of d addressed by key. d is left unchanged.
func (d *MessageItemDraft) WithKey(key MessageKey) *MessageItemDraft {
	out := &MessageItemDraft{MessageItem: MessageItem{key: key}}
	out.MessageItem.copyFrom(&d.MessageItem)
	if d.draftInfo != nil {
		info := *d.draftInfo
		out.draftInfo = &info
	}
	return out
}

func (d *MessageItemDraft) ResourceAttributes() map[string]any {
	attrs := d.MessageItem.ResourceAttributes()
	if d.draftInfo != nil {
		attrs[string(FieldDraftInfo)] = d.draftInfo.Encode()
	} else {
		attrs[string(FieldDraftInfo)] = nil
	}
	return attrs
}
