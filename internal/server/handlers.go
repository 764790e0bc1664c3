package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient"
	"github.com/bscott/mailgate/internal/query"
	"github.com/bscott/mailgate/internal/resource"
)

func (s *Server) render(c *gin.Context, status int, doc jsonapi.Document) {
	c.Header("Content-Type", jsonapi.ContentType)
	c.JSON(status, doc)
}

// refused answers an operation the mail server declined.
func (s *Server) refused(c *gin.Context, detail string) {
	s.problem(c, http.StatusBadGateway, detail)
}

func folderKeyOf(c *gin.Context) mail.FolderKey {
	return mail.NewFolderKey(c.Param("account"), c.Param("folder"))
}

func messageKeyOf(c *gin.Context) mail.MessageKey {
	return folderKeyOf(c).MessageKey(c.Param("id"))
}

func includes(q *jsonapi.Query, typ string) bool {
	for _, t := range q.Includes() {
		if t == typ {
			return true
		}
	}
	return false
}

func (s *Server) listAccounts(c *gin.Context) {
	q := queryOf(c)
	data := []jsonapi.ResourceObject{}
	for _, a := range s.accounts.List() {
		data = append(data, jsonapi.Render(q, a))
	}
	s.render(c, http.StatusOK, jsonapi.Document{Data: data})
}

func (s *Server) listFolders(c *gin.Context) {
	q := queryOf(c)
	accountID := c.Param("account")
	tree, err := s.folders.FolderTree(c.Request.Context(), accountID, q.Fieldset(resource.TypeMailFolder))
	if err != nil {
		s.fail(c, err)
		return
	}

	doc := jsonapi.Document{}
	data := make([]jsonapi.ResourceObject, 0, len(tree))
	for _, f := range tree {
		o := jsonapi.Render(q, f)
		o.Relate(resource.TypeMailAccount, jsonapi.Identifier{Type: resource.TypeMailAccount, ID: accountID})
		data = append(data, o)
	}
	doc.Data = data
	if includes(q, resource.TypeMailAccount) {
		if a, ok := s.accounts.Get(accountID); ok {
			doc.Include(jsonapi.Render(q, a))
		}
	}
	s.render(c, http.StatusOK, doc)
}

func (s *Server) listMessageItems(c *gin.Context) {
	q := queryOf(c)
	ctx := c.Request.Context()
	folder := folderKeyOf(c)

	opts, err := ListOptions(q)
	if err != nil {
		s.fail(c, err)
		return
	}

	items, total, err := s.messages.ListMessageItems(ctx, folder, opts, q.Fieldset(resource.TypeMessageItem))
	if err != nil {
		s.fail(c, err)
		return
	}

	doc := jsonapi.Document{Meta: map[string]any{"total": total}}
	data := make([]jsonapi.ResourceObject, 0, len(items))
	for _, item := range items {
		data = append(data, itemObject(q, item))
	}
	doc.Data = data

	if includes(q, resource.TypeMessageBody) {
		for _, item := range items {
			body, err := s.messages.GetMessageBody(ctx, item.Key())
			if err != nil {
				s.fail(c, err)
				return
			}
			doc.Include(bodyObject(q, body))
		}
	}
	if includes(q, resource.TypeMailFolder) {
		if err := s.includeFolder(c, q, &doc, folder); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.render(c, http.StatusOK, doc)
}

func (s *Server) includeFolder(c *gin.Context, q *jsonapi.Query, doc *jsonapi.Document, key mail.FolderKey) error {
	tree, err := s.folders.FolderTree(c.Request.Context(), key.MailAccountID, q.Fieldset(resource.TypeMailFolder))
	if err != nil {
		return err
	}
	if f := findFolder(tree, key.ID); f != nil {
		doc.Include(jsonapi.Render(q, f))
	}
	return nil
}

func findFolder(tree []*mail.MailFolder, id string) *mail.MailFolder {
	for _, f := range tree {
		if f.Key.ID == id {
			return f
		}
		if found := findFolder(f.Children, id); found != nil {
			return found
		}
	}
	return nil
}

func itemObject(q *jsonapi.Query, r jsonapi.Resource) jsonapi.ResourceObject {
	o := jsonapi.NewResourceObject(r, q.Fieldset(resource.TypeMessageItem))
	attrs := r.ResourceAttributes()
	folderID, _ := attrs["mailFolderId"].(string)
	o.Relate(resource.TypeMailFolder, jsonapi.Identifier{Type: resource.TypeMailFolder, ID: folderID})
	o.Relate(resource.TypeMessageBody, jsonapi.Identifier{Type: resource.TypeMessageBody, ID: o.ID})
	return o
}

func bodyObject(q *jsonapi.Query, r jsonapi.Resource) jsonapi.ResourceObject {
	o := jsonapi.NewResourceObject(r, q.Fieldset(resource.TypeMessageBody))
	o.Relate(resource.TypeMessageItem, jsonapi.Identifier{Type: resource.TypeMessageItem, ID: o.ID})
	return o
}

func (s *Server) getMessageItem(c *gin.Context) {
	q := queryOf(c)
	ctx := c.Request.Context()
	key := messageKeyOf(c)
	fields := q.Fieldset(resource.TypeMessageItem)

	var item jsonapi.Resource
	if contains(fields, string(mail.FieldDraftInfo)) {
		draft, err := s.messages.GetMessageItemDraft(ctx, key)
		switch {
		case err == nil:
			item = draft
		case !isNotADraft(err):
			s.fail(c, err)
			return
		}
	}
	if item == nil {
		it, err := s.messages.GetMessageItem(ctx, key, fields)
		if err != nil {
			s.fail(c, err)
			return
		}
		item = it
	}

	doc := jsonapi.Document{Data: itemObject(q, item)}
	if includes(q, resource.TypeMessageBody) {
		body, err := s.messages.GetMessageBody(ctx, key)
		if err != nil {
			s.fail(c, err)
			return
		}
		doc.Include(bodyObject(q, body))
	}
	if includes(q, resource.TypeMailFolder) {
		if err := s.includeFolder(c, q, &doc, key.FolderKey()); err != nil {
			s.fail(c, err)
			return
		}
	}
	s.render(c, http.StatusOK, doc)
}

func (s *Server) getMessageBody(c *gin.Context) {
	q := queryOf(c)
	ctx := c.Request.Context()
	key := messageKeyOf(c)

	body, err := s.messages.GetMessageBody(ctx, key)
	if err != nil {
		s.fail(c, err)
		return
	}
	doc := jsonapi.Document{Data: bodyObject(q, body)}
	if includes(q, resource.TypeMessageItem) {
		item, err := s.messages.GetMessageItem(ctx, key, q.Fieldset(resource.TypeMessageItem))
		if err != nil {
			s.fail(c, err)
			return
		}
		doc.Include(itemObject(q, item))
	}
	s.render(c, http.StatusOK, doc)
}

// createMessageItem stores a new draft. The request names either a
// MessageItem with header attributes or a MessageBody with text parts.
func (s *Server) createMessageItem(c *gin.Context) {
	ctx := c.Request.Context()
	folder := folderKeyOf(c)
	obj, err := readObject(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	switch obj.Type {
	case resource.TypeMessageItem:
		draft := mail.NewMessageItemDraft(mail.MessageKey{})
		if err := applyAttributes(draft, obj.Attributes); err != nil {
			s.fail(c, err)
			return
		}
		created, err := s.messages.CreateMessageDraft(ctx, folder, draft)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.render(c, http.StatusCreated, jsonapi.Document{Data: itemObject(fullQuery(itemDescription), created)})
	case resource.TypeMessageBody:
		body, err := readBody(obj)
		if err != nil {
			s.fail(c, err)
			return
		}
		created, err := s.messages.CreateMessageBodyDraft(ctx, folder, body)
		if err != nil {
			s.fail(c, err)
			return
		}
		s.render(c, http.StatusCreated, jsonapi.Document{Data: bodyObject(fullQuery(bodyDescription), created)})
	default:
		s.fail(c, badRequest("cannot create resources of type "+quote(obj.Type)))
	}
}

// updateMessageItem applies header attributes to a draft, flag attributes
// to any message and finally moves the message when mailFolderId names
// another folder. Each step works on the key the previous one returned.
func (s *Server) updateMessageItem(c *gin.Context) {
	ctx := c.Request.Context()
	key := messageKeyOf(c)
	obj, err := readObject(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if obj.Type != resource.TypeMessageItem {
		s.fail(c, badRequest("expected resource type "+quote(resource.TypeMessageItem)))
		return
	}

	flagAttrs, rest := splitFlags(obj.Attributes)

	if len(rest) > 0 {
		draft, err := s.messages.GetMessageItemDraft(ctx, key)
		if err != nil {
			s.fail(c, err)
			return
		}
		if err := applyAttributes(draft, rest); err != nil {
			s.fail(c, err)
			return
		}
		updated, err := s.messages.UpdateMessageDraft(ctx, draft)
		if err != nil {
			s.fail(c, err)
			return
		}
		key = updated.Key()
	}

	if len(flagAttrs) > 0 {
		item := mail.NewMessageItem(key)
		if err := applyAttributes(item, flagAttrs); err != nil {
			s.fail(c, err)
			return
		}
		ok, err := s.messages.SetFlags(ctx, key, mail.FlagListFromItem(item))
		if err != nil {
			s.fail(c, err)
			return
		}
		if !ok {
			s.refused(c, "the mail server did not update the flags")
			return
		}
	}

	if dest, ok := obj.Attributes["mailFolderId"].(string); ok && dest != "" && dest != key.MailFolderID {
		moved, ok, err := s.messages.MoveMessage(ctx, key, mail.NewFolderKey(key.MailAccountID, dest))
		if err != nil {
			s.fail(c, err)
			return
		}
		if !ok {
			s.refused(c, "the mail server did not move the message")
			return
		}
		key = moved
	}

	item, err := s.messages.GetMessageItem(ctx, key, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, jsonapi.Document{Data: itemObject(fullQuery(itemDescription), item)})
}

func (s *Server) updateMessageBody(c *gin.Context) {
	key := messageKeyOf(c)
	obj, err := readObject(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if obj.Type != resource.TypeMessageBody {
		s.fail(c, badRequest("expected resource type "+quote(resource.TypeMessageBody)))
		return
	}
	body, err := readBody(obj)
	if err != nil {
		s.fail(c, err)
		return
	}
	body.Key = key

	updated, err := s.messages.UpdateMessageBodyDraft(c.Request.Context(), body)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, jsonapi.Document{Data: bodyObject(fullQuery(bodyDescription), updated)})
}

func readBody(obj requestObject) (*mail.MessageBodyDraft, error) {
	plain, err := bodyPart(obj.Attributes, "textPlain", mail.MimeTypeTextPlain)
	if err != nil {
		return nil, err
	}
	html, err := bodyPart(obj.Attributes, "textHtml", mail.MimeTypeTextHTML)
	if err != nil {
		return nil, err
	}
	return &mail.MessageBodyDraft{TextPlain: plain, TextHTML: html}, nil
}

func (s *Server) deleteMessageItem(c *gin.Context) {
	ok, err := s.messages.DeleteMessage(c.Request.Context(), messageKeyOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		s.refused(c, "the mail server did not delete the message")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) sendMessageItem(c *gin.Context) {
	ok, err := s.messages.SendMessageDraft(c.Request.Context(), messageKeyOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		s.refused(c, "the message could not be sent")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAttachments(c *gin.Context) {
	q := queryOf(c)
	attachments, err := s.messages.FileAttachments(c.Request.Context(), messageKeyOf(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	data := make([]jsonapi.ResourceObject, 0, len(attachments))
	for _, a := range attachments {
		data = append(data, jsonapi.Render(q, a))
	}
	s.render(c, http.StatusOK, jsonapi.Document{Data: data})
}

// createAttachments adds attachments to a draft. The draft is replaced, so
// meta names the id of the new message.
func (s *Server) createAttachments(c *gin.Context) {
	key := messageKeyOf(c)
	objs, err := readObjects(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	attachments := make([]*mail.FileAttachment, 0, len(objs))
	for _, obj := range objs {
		a, err := toAttachment(obj)
		if err != nil {
			s.fail(c, err)
			return
		}
		attachments = append(attachments, a)
	}

	created, err := s.messages.CreateAttachments(c.Request.Context(), key, attachments)
	if err != nil {
		s.fail(c, err)
		return
	}
	q := fullQuery(attachmentDescription)
	data := make([]jsonapi.ResourceObject, 0, len(created))
	for _, a := range created {
		data = append(data, jsonapi.Render(q, a))
	}
	doc := jsonapi.Document{Data: data}
	if len(created) > 0 {
		doc.Meta = map[string]any{"messageItemId": created[0].Key.ParentMessageItemID}
	}
	s.render(c, http.StatusCreated, doc)
}

func (s *Server) deleteAttachment(c *gin.Context) {
	key := messageKeyOf(c).AttachmentKey(c.Param("attachment"))
	newKey, err := s.messages.DeleteAttachment(c.Request.Context(), key)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.render(c, http.StatusOK, jsonapi.Document{Meta: map[string]any{"messageItemId": newKey.ID}})
}

// fullQuery selects every field of d, used to answer write requests.
func fullQuery(d resource.Description) *jsonapi.Query {
	return jsonapi.NewResourceQuery(d, query.Parameters{{
		Name:  query.GroupName(jsonapi.ParamFields, d.Type()),
		Value: "*",
	}})
}

func isNotADraft(err error) bool {
	return errors.Is(err, mailclient.ErrNotADraft)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func quote(s string) string { return `"` + s + `"` }
