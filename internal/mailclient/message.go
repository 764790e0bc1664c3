package mailclient

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"

	"github.com/bscott/mailgate/internal/mail"
)

const defaultAttachmentType = "application/octet-stream"

// draftMessage is a stored message taken apart into the pieces a draft
// edit can change. Text parts are UTF-8.
type draftMessage struct {
	header      gomail.Header
	plain       *mail.MessagePart
	html        *mail.MessagePart
	attachments []*mail.FileAttachment
}

func parseMessage(raw []byte) (*draftMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	m := &draftMessage{header: mr.Header}
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read message part: %w", err)
		}

		switch h := p.Header.(type) {
		case *gomail.InlineHeader:
			ct, params, _ := h.ContentType()
			if ct == "" {
				ct = mail.MimeTypeTextPlain
			}
			// the blank charset import has already decoded body to UTF-8
			switch {
			case ct == mail.MimeTypeTextPlain && m.plain == nil:
				m.plain = mail.NewMessagePart(string(body), mail.DefaultCharset, ct)
			case ct == mail.MimeTypeTextHTML && m.html == nil:
				m.html = mail.NewMessagePart(string(body), mail.DefaultCharset, ct)
			default:
				m.attachments = append(m.attachments, newAttachment(params["name"], ct, body))
			}
		case *gomail.AttachmentHeader:
			name, _ := h.Filename()
			ct, _, _ := h.ContentType()
			m.attachments = append(m.attachments, newAttachment(name, ct, body))
		}
	}
	return m, nil
}

func newAttachment(name, mimeType string, data []byte) *mail.FileAttachment {
	if name == "" {
		name = "attachment"
	}
	if mimeType == "" {
		mimeType = defaultAttachmentType
	}
	return &mail.FileAttachment{
		Text:     name,
		Type:     mimeType,
		Size:     len(data),
		Content:  base64.StdEncoding.EncodeToString(data),
		Encoding: mail.EncodingBase64,
	}
}

// applyItem writes the envelope fields of item into the header.
func (m *draftMessage) applyItem(item *mail.MessageItem) {
	h := &m.header
	setAddresses(h, "From", mail.AddressList{item.From()})
	setAddresses(h, "To", item.To())
	setAddresses(h, "Cc", item.Cc())
	setAddresses(h, "Bcc", item.Bcc())
	setAddresses(h, "Reply-To", mail.AddressList{item.ReplyTo()})

	if item.Subject() != "" {
		h.SetSubject(item.Subject())
	} else {
		h.Del("Subject")
	}
	if !item.Date().IsZero() {
		h.SetDate(item.Date())
	}
	setRaw(h, "In-Reply-To", item.InReplyTo())
	setRaw(h, "References", item.References())
}

func (m *draftMessage) applyDraftInfo(info mail.DraftInfo, ok bool) {
	if ok {
		m.header.Set(mail.DraftInfoHeader, info.Encode())
	} else {
		m.header.Del(mail.DraftInfoHeader)
	}
}

func setAddresses(h *gomail.Header, key string, list mail.AddressList) {
	var nonEmpty mail.AddressList
	for _, a := range list {
		if !a.IsZero() {
			nonEmpty = append(nonEmpty, a)
		}
	}
	if len(nonEmpty) == 0 {
		h.Del(key)
		return
	}
	h.SetAddressList(key, nonEmpty.MailAddresses())
}

func setRaw(h *gomail.Header, key, value string) {
	if value == "" {
		h.Del(key)
		return
	}
	h.Set(key, value)
}

// compose renders the message as multipart/mixed with the text parts in a
// multipart/alternative. Every compose gets a new Message-ID.
func (m *draftMessage) compose() ([]byte, error) {
	h := gomail.Header{Header: message.Header{Header: m.header.Header.Header.Copy()}}
	for _, k := range []string{"Content-Type", "Content-Transfer-Encoding", "Content-Disposition", "Mime-Version"} {
		h.Del(k)
	}
	h.Set("MIME-Version", "1.0")
	if !h.Has("Date") {
		h.SetDate(time.Now())
	}
	h.SetMessageID(newMessageID(m.domain()))

	var buf bytes.Buffer
	mw, err := gomail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	parts := []*mail.MessagePart{m.plain, m.html}
	if m.plain == nil && m.html == nil {
		parts[0] = mail.NewMessagePart("", mail.DefaultCharset, mail.MimeTypeTextPlain)
	}
	for _, p := range parts {
		if p == nil {
			continue
		}
		var ph gomail.InlineHeader
		ph.SetContentType(p.MimeType, map[string]string{"charset": "utf-8"})
		ph.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := tw.CreatePart(ph)
		if err != nil {
			return nil, fmt.Errorf("failed to create text part: %w", err)
		}
		if _, err := io.WriteString(w, p.Contents); err != nil {
			return nil, fmt.Errorf("failed to write text part: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to write text part: %w", err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}

	for _, a := range m.attachments {
		data, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode attachment %s: %w", a.Text, err)
		}
		var ah gomail.AttachmentHeader
		typ := a.Type
		if typ == "" {
			typ = defaultAttachmentType
		}
		ah.SetContentType(typ, nil)
		ah.SetFilename(a.Text)
		ah.Set("Content-Transfer-Encoding", "base64")
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment %s: %w", a.Text, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", a.Text, err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to write attachment %s: %w", a.Text, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *draftMessage) domain() string {
	if from, err := m.header.AddressList("From"); err == nil && len(from) > 0 {
		if i := strings.LastIndex(from[0].Address, "@"); i >= 0 {
			return from[0].Address[i+1:]
		}
	}
	return "mailgate.local"
}

func newMessageID(domain string) string {
	return uuid.NewString() + "@" + domain
}

// decodeSection removes the transfer encoding of a fetched body section.
// The charset is left alone.
func decodeSection(data []byte, encoding string) ([]byte, error) {
	var h textproto.Header
	if encoding != "" {
		h.Set("Content-Transfer-Encoding", encoding)
	}
	e, err := message.New(message.Header{Header: h}, bytes.NewReader(data))
	if err != nil {
		if message.IsUnknownEncoding(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to decode body part: %w", err)
	}
	return io.ReadAll(e.Body)
}

// splitHeader separates the header of raw from its body.
func splitHeader(raw []byte) (textproto.Header, []byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return textproto.Header{}, nil, fmt.Errorf("failed to read message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return textproto.Header{}, nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return h, body, nil
}

func joinHeader(h textproto.Header, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, h); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}
