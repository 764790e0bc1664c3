// Package service sits between the HTTP surface and the per-account mail
// clients. It normalizes charsets, back-fills message bodies, computes
// preview texts and assembles folder trees.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient"
)

var ErrAccountNotFound = errors.New("mail account not found")

// MailClient is the per-account surface the services use. *mailclient.Client
// implements it.
type MailClient interface {
	mailclient.AttachmentOperations

	Account() *mail.MailAccount
	Close() error

	ListMailFolders(ctx context.Context, fields []string) ([]*mail.MailFolder, error)
	ListMessageItems(ctx context.Context, folder mail.FolderKey, opts mailclient.ListOptions) ([]*mail.MessageItem, int, error)
	GetMessageItem(ctx context.Context, key mail.MessageKey) (*mail.MessageItem, error)
	GetMessageItemDraft(ctx context.Context, key mail.MessageKey) (*mail.MessageItemDraft, error)
	GetMessageBody(ctx context.Context, key mail.MessageKey) (*mail.MessageBody, error)

	CreateMessageDraft(ctx context.Context, folder mail.FolderKey, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error)
	CreateMessageBodyDraft(ctx context.Context, folder mail.FolderKey, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error)
	UpdateMessageDraft(ctx context.Context, draft *mail.MessageItemDraft) (*mail.MessageItemDraft, error)
	UpdateMessageBodyDraft(ctx context.Context, body *mail.MessageBodyDraft) (*mail.MessageBodyDraft, error)

	DeleteMessage(ctx context.Context, key mail.MessageKey) error
	SetFlags(ctx context.Context, key mail.MessageKey, flags *mail.FlagList) error
	MoveMessage(ctx context.Context, key mail.MessageKey, dest mail.FolderKey) (mail.MessageKey, error)
	SendMessageDraft(ctx context.Context, key mail.MessageKey) error
}

var _ MailClient = (*mailclient.Client)(nil)

// ClientFactory creates the mail client of an account.
type ClientFactory func(account *mail.MailAccount) MailClient

// Accounts hands out the mail client of each configured account. Clients
// are created on first use and used by one caller at a time.
type Accounts struct {
	accounts []*mail.MailAccount
	factory  ClientFactory

	mu      sync.Mutex
	entries map[string]*accountEntry
}

type accountEntry struct {
	mu     sync.Mutex
	client MailClient
}

func NewAccounts(accounts []*mail.MailAccount, factory ClientFactory) *Accounts {
	return &Accounts{
		accounts: accounts,
		factory:  factory,
		entries:  make(map[string]*accountEntry),
	}
}

// List returns the configured accounts in configuration order.
func (a *Accounts) List() []*mail.MailAccount {
	out := make([]*mail.MailAccount, len(a.accounts))
	copy(out, a.accounts)
	return out
}

func (a *Accounts) Get(id string) (*mail.MailAccount, bool) {
	for _, acc := range a.accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return nil, false
}

// With runs fn with the client of account id while holding the account's
// lock.
func (a *Accounts) With(ctx context.Context, id string, fn func(MailClient) error) error {
	account, ok := a.Get(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, id)
	}

	a.mu.Lock()
	e, ok := a.entries[id]
	if !ok {
		e = &accountEntry{}
		a.entries[id] = e
	}
	a.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.client == nil {
		e.client = a.factory(account)
	}
	return fn(e.client)
}

// Close closes every client created so far.
func (a *Accounts) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for _, e := range a.entries {
		e.mu.Lock()
		if e.client != nil {
			if err := e.client.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// soft reports whether err is a mail server failure the services report
// as a false result instead of an error. Missing messages, attachments and
// non-drafts stay errors.
func soft(err error) bool {
	var clientErr *mailclient.MailClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	return !errors.Is(err, mailclient.ErrMessageNotFound) &&
		!errors.Is(err, mailclient.ErrAttachmentNotFound) &&
		!errors.Is(err, mailclient.ErrNotADraft)
}

// absorb logs soft failures and drops them.
func absorb(logger *zap.Logger, msg string, err error, fields ...zap.Field) error {
	if err == nil || !soft(err) {
		return err
	}
	logger.Warn(msg, append(fields, zap.Error(err))...)
	return nil
}
