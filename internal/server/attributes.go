package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bscott/mailgate/internal/mail"
)

// requestObject is the resource object of a request document.
type requestObject struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

type requestDocument struct {
	Data json.RawMessage `json:"data"`
}

// readObjects decodes the request body. data may hold a single resource
// object or an array of them.
func readObjects(c *gin.Context) ([]requestObject, error) {
	var doc requestDocument
	if err := json.NewDecoder(c.Request.Body).Decode(&doc); err != nil {
		return nil, badRequest("malformed request document: " + err.Error())
	}
	if len(doc.Data) == 0 || string(doc.Data) == "null" {
		return nil, badRequest("request document has no data")
	}
	if doc.Data[0] == '[' {
		var objs []requestObject
		if err := json.Unmarshal(doc.Data, &objs); err != nil {
			return nil, badRequest("malformed resource objects: " + err.Error())
		}
		return objs, nil
	}
	var obj requestObject
	if err := json.Unmarshal(doc.Data, &obj); err != nil {
		return nil, badRequest("malformed resource object: " + err.Error())
	}
	return []requestObject{obj}, nil
}

func readObject(c *gin.Context) (requestObject, error) {
	objs, err := readObjects(c)
	if err != nil {
		return requestObject{}, err
	}
	if len(objs) != 1 {
		return requestObject{}, badRequest("expected a single resource object")
	}
	return objs[0], nil
}

// fieldSetter is implemented by MessageItem and MessageItemDraft.
type fieldSetter interface {
	Set(f mail.Field, value any) error
}

var flagFields = map[string]bool{
	string(mail.FieldSeen):     true,
	string(mail.FieldAnswered): true,
	string(mail.FieldDraft):    true,
	string(mail.FieldFlagged):  true,
	string(mail.FieldRecent):   true,
}

// keyAttributes are part of the rendered item but addressed by the path.
var keyAttributes = map[string]bool{
	"mailAccountId": true,
	"mailFolderId":  true,
}

// applyAttributes converts JSON values to the types of their fields and
// assigns them in name order.
func applyAttributes(dst fieldSetter, attrs map[string]any) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if !keyAttributes[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		f := mail.Field(name)
		v, err := convertAttribute(f, attrs[name])
		if err != nil {
			return err
		}
		if err := dst.Set(f, v); err != nil {
			return err
		}
	}
	return nil
}

func convertAttribute(f mail.Field, v any) (any, error) {
	switch f {
	case mail.FieldFrom, mail.FieldReplyTo:
		return toAddress(f, v)
	case mail.FieldTo, mail.FieldCc, mail.FieldBcc:
		return toAddressList(f, v)
	case mail.FieldDate:
		s, ok := v.(string)
		if !ok {
			return nil, badRequest(fmt.Sprintf("attribute %q must be a date string", f))
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, badRequest(fmt.Sprintf("attribute %q: %v", f, err))
		}
		return t, nil
	case mail.FieldSize:
		n, ok := v.(float64)
		if !ok {
			return nil, badRequest(fmt.Sprintf("attribute %q must be a number", f))
		}
		return int(n), nil
	case mail.FieldDraftInfo:
		s, ok := v.(string)
		if !ok {
			return nil, badRequest(fmt.Sprintf("attribute %q must be a string", f))
		}
		info, err := mail.DecodeDraftInfo(s)
		if err != nil {
			return nil, badRequest(err.Error())
		}
		return info, nil
	}
	return v, nil
}

func toAddress(f mail.Field, v any) (mail.Address, error) {
	switch a := v.(type) {
	case nil:
		return mail.Address{}, nil
	case string:
		if a == "" {
			return mail.Address{}, nil
		}
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return mail.Address{}, badRequest(fmt.Sprintf("attribute %q: %v", f, err))
		}
		return addr, nil
	case map[string]any:
		name, _ := a["name"].(string)
		address, _ := a["address"].(string)
		if address == "" {
			return mail.Address{}, badRequest(fmt.Sprintf("attribute %q has no address", f))
		}
		return mail.Address{Name: name, Address: address}, nil
	}
	return mail.Address{}, badRequest(fmt.Sprintf("attribute %q must be an address", f))
}

func toAddressList(f mail.Field, v any) (mail.AddressList, error) {
	switch l := v.(type) {
	case nil:
		return mail.AddressList{}, nil
	case string:
		list, err := mail.ParseAddressList(l)
		if err != nil {
			return nil, badRequest(fmt.Sprintf("attribute %q: %v", f, err))
		}
		if list == nil {
			list = mail.AddressList{}
		}
		return list, nil
	case []any:
		out := make(mail.AddressList, 0, len(l))
		for _, e := range l {
			a, err := toAddress(f, e)
			if err != nil {
				return nil, err
			}
			if !a.IsZero() {
				out = append(out, a)
			}
		}
		return out, nil
	}
	return nil, badRequest(fmt.Sprintf("attribute %q must be an address list", f))
}

// splitFlags separates flag attributes from the rest.
func splitFlags(attrs map[string]any) (flags, rest map[string]any) {
	flags = make(map[string]any)
	rest = make(map[string]any)
	for k, v := range attrs {
		switch {
		case flagFields[k]:
			flags[k] = v
		case !keyAttributes[k]:
			rest[k] = v
		}
	}
	return flags, rest
}

// bodyPart reads a text attribute of a MessageBody object. Absent and
// null attributes yield nil.
func bodyPart(attrs map[string]any, name, mimeType string) (*mail.MessagePart, error) {
	v, ok := attrs[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, badRequest(fmt.Sprintf("attribute %q must be a string", name))
	}
	return mail.NewMessagePart(s, mail.DefaultCharset, mimeType), nil
}

// toAttachment reads a MessageItemAttachment object. Content must be base64
// encoded; the size is taken from the decoded content when absent.
func toAttachment(obj requestObject) (*mail.FileAttachment, error) {
	if obj.Type != typeAttachment {
		return nil, badRequest(fmt.Sprintf("expected resource type %q, got %q", typeAttachment, obj.Type))
	}
	str := func(name string) string {
		s, _ := obj.Attributes[name].(string)
		return s
	}
	a := &mail.FileAttachment{
		Text:     str("text"),
		Type:     str("type"),
		Content:  str("content"),
		Encoding: str("encoding"),
	}
	if a.Text == "" {
		return nil, badRequest("attachment needs a text attribute")
	}
	if a.Encoding == "" {
		a.Encoding = mail.EncodingBase64
	}
	if a.Type == "" {
		a.Type = "application/octet-stream"
	}
	if n, ok := obj.Attributes["size"].(float64); ok {
		a.Size = int(n)
	} else if data, err := base64.StdEncoding.DecodeString(a.Content); err == nil {
		a.Size = len(data)
	}
	return a, nil
}
