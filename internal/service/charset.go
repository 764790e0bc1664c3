package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/bscott/mailgate/internal/mail"
)

func lookupCharset(label string) (encoding.Encoding, error) {
	enc, err := ianaindex.MIME.Encoding(strings.TrimSpace(label))
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q is not supported", label)
	}
	return enc, nil
}

// CanonicalCharset returns the IANA MIME name of label, or label itself
// when it is unknown.
func CanonicalCharset(label string) string {
	if label == "" {
		return ""
	}
	enc, err := lookupCharset(label)
	if err != nil {
		return label
	}
	name, err := ianaindex.MIME.Name(enc)
	if err != nil {
		return label
	}
	return name
}

// ToUTF8 converts p to UTF-8 and relabels it. A missing charset is taken
// as UTF-8. Unknown charsets are reported along with the unchanged part.
func ToUTF8(p *mail.MessagePart) (*mail.MessagePart, error) {
	if p == nil {
		return nil, nil
	}
	if p.Charset == "" || strings.EqualFold(p.Charset, "utf-8") || strings.EqualFold(p.Charset, "us-ascii") {
		return p.WithContents(p.Contents, mail.DefaultCharset), nil
	}
	enc, err := lookupCharset(p.Charset)
	if err != nil {
		return p, err
	}
	s, err := enc.NewDecoder().String(p.Contents)
	if err != nil {
		return p, fmt.Errorf("failed to decode %s: %w", p.Charset, err)
	}
	return p.WithContents(s, mail.DefaultCharset), nil
}

// validUTF8 reports whether the part's contents may be stored as UTF-8.
func validUTF8(p *mail.MessagePart) bool {
	return p == nil || utf8.ValidString(p.Contents)
}

// NormalizeHeaders converts the text header fields of item to UTF-8 and
// canonicalizes its charset label. Raw 8-bit headers are decoded from the
// item's charset; fields that already are valid UTF-8 are kept as they are.
func NormalizeHeaders(item *mail.MessageItem) {
	item.SetCharset(CanonicalCharset(item.Charset()))
	decode := headerDecoder(item.Charset())

	if s, ok := decode(item.Subject()); ok {
		item.SetSubject(s)
	}
	if a, ok := decodeAddress(decode, item.From()); ok {
		item.SetFrom(a)
	}
	if a, ok := decodeAddress(decode, item.ReplyTo()); ok {
		item.SetReplyTo(a)
	}
	if l, ok := decodeAddresses(decode, item.To()); ok {
		item.SetTo(l)
	}
	if l, ok := decodeAddresses(decode, item.Cc()); ok {
		item.SetCc(l)
	}
	if l, ok := decodeAddresses(decode, item.Bcc()); ok {
		item.SetBcc(l)
	}
	if s, ok := decode(item.MessageID()); ok {
		item.SetMessageID(s)
	}
	if s, ok := decode(item.InReplyTo()); ok {
		item.SetInReplyTo(s)
	}
	if s, ok := decode(item.References()); ok {
		item.SetReferences(s)
	}
}

// headerDecoder returns a function converting invalid UTF-8 from label.
// It reports whether the value changed. Bytes that cannot be decoded become
// U+FFFD.
func headerDecoder(label string) func(string) (string, bool) {
	var enc encoding.Encoding
	if label != "" {
		enc, _ = lookupCharset(label)
	}
	return func(s string) (string, bool) {
		if utf8.ValidString(s) {
			return s, false
		}
		if enc != nil {
			if out, err := enc.NewDecoder().String(s); err == nil && utf8.ValidString(out) {
				return out, true
			}
		}
		return strings.ToValidUTF8(s, "\uFFFD"), true
	}
}

func decodeAddress(decode func(string) (string, bool), a mail.Address) (mail.Address, bool) {
	name, nameChanged := decode(a.Name)
	addr, addrChanged := decode(a.Address)
	return mail.Address{Name: name, Address: addr}, nameChanged || addrChanged
}

func decodeAddresses(decode func(string) (string, bool), l mail.AddressList) (mail.AddressList, bool) {
	var out mail.AddressList
	for i, a := range l {
		if d, ok := decodeAddress(decode, a); ok {
			if out == nil {
				out = l.Clone()
			}
			out[i] = d
		}
	}
	return out, out != nil
}
