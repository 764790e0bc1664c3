package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient"
)

const fieldPreviewText = "previewText"

type MessageItemService struct {
	accounts *Accounts
	preview  PreviewTextProcessor
	reading  *ReadingOptions
	logger   *zap.Logger
}

// NewMessageItemService creates the service. previewLength bounds preview
// texts; zero or less keeps them whole.
func NewMessageItemService(accounts *Accounts, previewLength int, logger *zap.Logger) *MessageItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MessageItemService{accounts: accounts, logger: logger.Named("messages")}
	if previewLength > 0 {
		s.reading = &ReadingOptions{Length: previewLength}
	}
	return s
}

func (s *MessageItemService) with(ctx context.Context, accountID string, fn func(MailClient) error) error {
	return s.accounts.With(ctx, accountID, fn)
}

// ListMessageItems lists a window of a folder. Preview texts are only
// computed when fields names previewText.
func (s *MessageItemService) ListMessageItems(ctx context.Context, folder mail.FolderKey, opts mailclient.ListOptions, fields []string) ([]*mail.MessageItem, int, error) {
	var (
		items []*mail.MessageItem
		total int
	)
	err := s.with(ctx, folder.MailAccountID, func(c MailClient) error {
		var err error
		items, total, err = c.ListMessageItems(ctx, folder, opts)
		if err != nil {
			return err
		}
		for _, item := range items {
			NormalizeHeaders(item)
			if contains(fields, fieldPreviewText) {
				item.SetPreviewText(s.previewOf(ctx, c, item.Key()))
			}
			item.ResetModified()
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *MessageItemService) GetMessageItem(ctx context.Context, key mail.MessageKey, fields []string) (*mail.MessageItem, error) {
	var item *mail.MessageItem
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		if item, err = c.GetMessageItem(ctx, key); err != nil {
			return err
		}
		NormalizeHeaders(item)
		if contains(fields, fieldPreviewText) {
			item.SetPreviewText(s.previewOf(ctx, c, key))
		}
		item.ResetModified()
		return nil
	})
	return item, err
}

func (s *MessageItemService) GetMessageItemDraft(ctx context.Context, key mail.MessageKey) (*mail.MessageItemDraft, error) {
	var draft *mail.MessageItemDraft
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		if draft, err = c.GetMessageItemDraft(ctx, key); err != nil {
			return err
		}
		NormalizeHeaders(&draft.MessageItem)
		draft.ResetModified()
		return nil
	})
	return draft, err
}

// GetMessageBody returns the body with both parts converted to UTF-8.
func (s *MessageItemService) GetMessageBody(ctx context.Context, key mail.MessageKey) (*mail.MessageBody, error) {
	var body *mail.MessageBody
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		body, err = c.GetMessageBody(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.normalizeBody(body), nil
}

// PreviewText computes the preview of a single message.
func (s *MessageItemService) PreviewText(ctx context.Context, key mail.MessageKey) (string, error) {
	body, err := s.GetMessageBody(ctx, key)
	if err != nil {
		return "", err
	}
	return s.preview.Process(body, s.reading), nil
}

func (s *MessageItemService) previewOf(ctx context.Context, c MailClient, key mail.MessageKey) string {
	body, err := c.GetMessageBody(ctx, key)
	if err != nil {
		s.logger.Warn("failed to read body for preview", zap.String("key", key.String()), zap.Error(err))
		return ""
	}
	return s.preview.Process(s.normalizeBody(body), s.reading)
}

func (s *MessageItemService) normalizeBody(body *mail.MessageBody) *mail.MessageBody {
	out := &mail.MessageBody{Key: body.Key}
	out.TextPlain = s.normalizePart(body.Key, body.TextPlain)
	out.TextHTML = s.normalizePart(body.Key, body.TextHTML)
	return out
}

func (s *MessageItemService) normalizePart(key mail.MessageKey, p *mail.MessagePart) *mail.MessagePart {
	converted, err := ToUTF8(p)
	if err != nil {
		s.logger.Warn("keeping message part in its original charset",
			zap.String("key", key.String()),
			zap.String("charset", p.Charset),
			zap.Error(err))
	}
	return converted
}

func (s *MessageItemService) CreateMessageDraft(ctx context.Context, folder mail.FolderKey, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error) {
	var created *mail.MessageItemDraft
	err := s.with(ctx, folder.MailAccountID, func(c MailClient) error {
		var err error
		created, err = c.CreateMessageDraft(ctx, folder, draft)
		return err
	})
	return created, err
}

func (s *MessageItemService) UpdateMessageDraft(ctx context.Context, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error) {
	var updated *mail.MessageItemDraft
	err := s.with(ctx, draft.Key().MailAccountID, func(c MailClient) error {
		var err error
		updated, err = c.UpdateMessageDraft(ctx, draft)
		return err
	})
	return updated, err
}

// CreateMessageBodyDraft stores a body draft after back-filling the
// missing text part.
func (s *MessageItemService) CreateMessageBodyDraft(ctx context.Context, folder mail.FolderKey, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error) {
	filled, err := s.backfill(body)
	if err != nil {
		return nil, err
	}
	var created *mail.MessageBodyDraft
	err = s.with(ctx, folder.MailAccountID, func(c MailClient) error {
		var err error
		created, err = c.CreateMessageBodyDraft(ctx, folder, filled)
		return err
	})
	return created, err
}

func (s *MessageItemService) UpdateMessageBodyDraft(ctx context.Context, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error) {
	filled, err := s.backfill(body)
	if err != nil {
		return nil, err
	}
	var updated *mail.MessageBodyDraft
	err = s.with(ctx, body.Key.MailAccountID, func(c MailClient) error {
		var err error
		updated, err = c.UpdateMessageBodyDraft(ctx, filled)
		return err
	})
	return updated, err
}

// backfill derives a missing text part from the present one. Without any
// part both are stored empty. Parts are converted to UTF-8 first.
func (s *MessageItemService) backfill(body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error) {
	plain, err := ToUTF8(body.TextPlain)
	if err != nil {
		return nil, &mailclient.ServiceError{Msg: "cannot convert plain text to UTF-8", Err: err}
	}
	html, err := ToUTF8(body.TextHTML)
	if err != nil {
		return nil, &mailclient.ServiceError{Msg: "cannot convert html to UTF-8", Err: err}
	}
	if !validUTF8(plain) || !validUTF8(html) {
		return nil, &mailclient.ServiceError{Msg: "message body is not valid UTF-8"}
	}

	switch {
	case plain == nil && html == nil:
		plain = mail.NewMessagePart("", mail.DefaultCharset, mail.MimeTypeTextPlain)
		html = mail.NewMessagePart("", mail.DefaultCharset, mail.MimeTypeTextHTML)
	case plain == nil:
		plain = mail.NewMessagePart(HTMLToText(html.Contents), mail.DefaultCharset, mail.MimeTypeTextPlain)
	case html == nil:
		html = mail.NewMessagePart(TextToHTML(plain.Contents), mail.DefaultCharset, mail.MimeTypeTextHTML)
	}
	return &mail.MessageBodyDraft{Key: body.Key, TextPlain: plain, TextHTML: html}, nil
}

// DeleteMessage reports false when the mail server refused.
func (s *MessageItemService) DeleteMessage(ctx context.Context, key mail.MessageKey) (bool, error) {
	var err error
	werr := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		err = c.DeleteMessage(ctx, key)
		return nil
	})
	if werr != nil {
		return false, werr
	}
	if err != nil {
		return false, absorb(s.logger, "failed to delete message", err, zap.String("key", key.String()))
	}
	return true, nil
}

// SetFlags reports false when the mail server refused.
func (s *MessageItemService) SetFlags(ctx context.Context, key mail.MessageKey, flags *mail.FlagList) (bool, error) {
	var err error
	werr := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		err = c.SetFlags(ctx, key, flags)
		return nil
	})
	if werr != nil {
		return false, werr
	}
	if err != nil {
		return false, absorb(s.logger, "failed to set flags", err, zap.String("key", key.String()))
	}
	return true, nil
}

// MoveMessage returns the new key, or false when the mail server refused.
func (s *MessageItemService) MoveMessage(ctx context.Context, key mail.MessageKey, dest mail.FolderKey) (mail.MessageKey, bool, error) {
	var (
		moved mail.MessageKey
		err   error
	)
	werr := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		moved, err = c.MoveMessage(ctx, key, dest)
		return nil
	})
	if werr != nil {
		return mail.MessageKey{}, false, werr
	}
	if err != nil {
		return mail.MessageKey{}, false, absorb(s.logger, "failed to move message", err,
			zap.String("key", key.String()), zap.String("dest", dest.String()))
	}
	return moved, true, nil
}

// SendMessageDraft reports false when sending failed.
func (s *MessageItemService) SendMessageDraft(ctx context.Context, key mail.MessageKey) (bool, error) {
	var err error
	werr := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		err = c.SendMessageDraft(ctx, key)
		return nil
	})
	if werr != nil {
		return false, werr
	}
	if err != nil {
		return false, absorb(s.logger, "failed to send draft", err, zap.String("key", key.String()))
	}
	return true, nil
}

func (s *MessageItemService) FileAttachments(ctx context.Context, key mail.MessageKey) ([]*mail.FileAttachment, error) {
	var out []*mail.FileAttachment
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		out, err = c.FileAttachments(ctx, key)
		return err
	})
	return out, err
}

func (s *MessageItemService) CreateAttachments(ctx context.Context, key mail.MessageKey, attachments []*mail.FileAttachment) ([]*mail.FileAttachment, error) {
	var out []*mail.FileAttachment
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		out, err = c.CreateAttachments(ctx, key, attachments)
		return err
	})
	return out, err
}

func (s *MessageItemService) DeleteAttachment(ctx context.Context, key mail.AttachmentKey) (mail.MessageKey, error) {
	var out mail.MessageKey
	err := s.with(ctx, key.MailAccountID, func(c MailClient) error {
		var err error
		out, err = c.DeleteAttachment(ctx, key)
		return err
	})
	return out, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
