package mail

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// EncodingBase64 is the only transfer encoding attachment content is kept in.
const EncodingBase64 = "base64"

// ErrAttachmentNotBase64 is returned when an id is requested for an
// attachment whose content is not base64 encoded.
var ErrAttachmentNotBase64 = errors.New("attachment content is not base64 encoded")

// FileAttachment is a file attached to a message. Content holds the encoded
// data.
type FileAttachment struct {
	Key      AttachmentKey `json:"-"`
	Text     string        `json:"text"`
	Type     string        `json:"type"`
	Size     int           `json:"size"`
	Content  string        `json:"content"`
	Encoding string        `json:"encoding"`
}

// GenerateAttachmentID derives an attachment id from its file name and
// base64 content. Equal inputs always produce the same id.
func GenerateAttachmentID(text, content, encoding string) (string, error) {
	if !strings.EqualFold(encoding, EncodingBase64) {
		return "", fmt.Errorf("%w: %q", ErrAttachmentNotBase64, encoding)
	}
	sum := md5.Sum([]byte(text + content))
	return hex.EncodeToString(sum[:]), nil
}

// GenerateID derives the id of a.
func (a *FileAttachment) GenerateID() (string, error) {
	return GenerateAttachmentID(a.Text, a.Content, a.Encoding)
}

// WithKey returns a copy of a addressed by key.
func (a *FileAttachment) WithKey(key AttachmentKey) *FileAttachment {
	c := *a
	c.Key = key
	return &c
}

func (a *FileAttachment) ResourceType() string { return "MessageItemAttachment" }
func (a *FileAttachment) ResourceID() string   { return a.Key.ID }

func (a *FileAttachment) ResourceAttributes() map[string]any {
	return map[string]any{
		"text":                a.Text,
		"type":                a.Type,
		"size":                a.Size,
		"content":             a.Content,
		"encoding":            a.Encoding,
		"mailAccountId":       a.Key.MailAccountID,
		"mailFolderId":        a.Key.MailFolderID,
		"parentMessageItemId": a.Key.ParentMessageItemID,
	}
}
