package imap

import (
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

type MailboxInfo struct {
	Name       string   `json:"name"`
	Delimiter  string   `json:"delimiter"`
	Attributes []string `json:"attributes"`
}

type MailboxStatus struct {
	Name     string `json:"name"`
	Messages uint32 `json:"messages"`
	Unseen   uint32 `json:"unseen"`
}

// SortKey is a server side sort key.
type SortKey string

const (
	SortArrival SortKey = "ARRIVAL"
	SortCc      SortKey = "CC"
	SortDate    SortKey = "DATE"
	SortFrom    SortKey = "FROM"
	SortSize    SortKey = "SIZE"
	SortSubject SortKey = "SUBJECT"
	SortTo      SortKey = "TO"
)

type SortCriterion struct {
	Key     SortKey
	Reverse bool
}

// FetchOptions selects the data items returned by Fetch.
type FetchOptions struct {
	Flags     bool
	Size      bool
	Envelope  bool
	Structure bool
	// Headers lists header fields fetched without setting \Seen.
	Headers []string
	// Sections lists body part paths such as "1" or "1.2" whose raw,
	// still transfer-encoded content is fetched.
	Sections []string
	// Full fetches the complete RFC 822 message.
	Full bool
}

type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type Envelope struct {
	Date      time.Time `json:"date"`
	Subject   string    `json:"subject"`
	From      []Address `json:"from"`
	ReplyTo   []Address `json:"reply_to,omitempty"`
	To        []Address `json:"to"`
	Cc        []Address `json:"cc,omitempty"`
	Bcc       []Address `json:"bcc,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
}

// BodyPart is a leaf of a message's body structure.
type BodyPart struct {
	Path        string            `json:"path"`
	Type        string            `json:"type"`
	Subtype     string            `json:"subtype"`
	Params      map[string]string `json:"params,omitempty"`
	Encoding    string            `json:"encoding"`
	Size        uint32            `json:"size"`
	Disposition string            `json:"disposition,omitempty"`
	Filename    string            `json:"filename,omitempty"`
}

func (p BodyPart) MimeType() string {
	return strings.ToLower(p.Type + "/" + p.Subtype)
}

func (p BodyPart) Charset() string {
	for k, v := range p.Params {
		if strings.EqualFold(k, "charset") {
			return v
		}
	}
	return ""
}

// IsAttachment reports whether the part is meant to be downloaded rather
// than displayed.
func (p BodyPart) IsAttachment() bool {
	if strings.EqualFold(p.Disposition, "attachment") {
		return true
	}
	if p.Filename != "" {
		return true
	}
	return !strings.EqualFold(p.Type, "text") && !strings.EqualFold(p.Type, "multipart")
}

type FetchResult struct {
	UID      uint32
	Flags    []string
	Size     int64
	Envelope *Envelope
	Parts    []BodyPart
	Header   mail.Header
	Sections map[string][]byte
	Full     []byte
}

// HasFlag reports whether flag is set, ignoring case.
func (r *FetchResult) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

// HeaderText returns the decoded value of a fetched header field.
func (r *FetchResult) HeaderText(name string) string {
	if r.Header.Len() == 0 {
		return ""
	}
	v, err := r.Header.Text(name)
	if err != nil {
		return r.Header.Get(name)
	}
	return v
}

// Part returns the body part at path.
func (r *FetchResult) Part(path string) (BodyPart, bool) {
	for _, p := range r.Parts {
		if p.Path == path {
			return p, true
		}
	}
	return BodyPart{}, false
}
