// Package mailclient maps the mail resources onto one account's IMAP and
// SMTP servers.
package mailclient

import (
	"context"
	"strconv"

	goimap "github.com/emersion/go-imap/v2"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/metrics"
	"github.com/bscott/mailgate/internal/smtp"
)

// Transport is the IMAP surface the client needs. *imap.Client
// implements it.
type Transport interface {
	ListMailboxes(ctx context.Context) ([]imap.MailboxInfo, error)
	Status(ctx context.Context, mailbox string) (*imap.MailboxStatus, error)
	Search(ctx context.Context, mailbox string, criteria *goimap.SearchCriteria, sort []imap.SortCriterion) ([]uint32, error)
	Fetch(ctx context.Context, mailbox string, uids []uint32, opts imap.FetchOptions) ([]imap.FetchResult, error)
	Append(ctx context.Context, mailbox string, raw []byte, flags []string) (uint32, error)
	Store(ctx context.Context, mailbox string, uids []uint32, add, remove []string) error
	Expunge(ctx context.Context, mailbox string, uids []uint32) error
	Move(ctx context.Context, mailbox string, uids []uint32, dest string) (map[uint32]uint32, error)
	Close() error
}

// Sender submits composed messages. *smtp.Client implements it.
type Sender interface {
	Send(ctx context.Context, from string, rcpts []string, raw []byte) error
}

// Dialer opens a connected Transport.
type Dialer func(ctx context.Context) (Transport, error)

// IMAPDialer returns a Dialer connecting to the account's incoming server.
func IMAPDialer(account *mail.MailAccount, logger *zap.Logger, m *metrics.Metrics) Dialer {
	return func(ctx context.Context) (Transport, error) {
		client := imap.NewClient(imap.Config{
			Host:     account.InboxAddress,
			Port:     account.InboxPort,
			User:     account.InboxUser,
			Password: account.InboxPassword,
			TLS:      account.InboxSSL,
		}, logger, m)
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}

// SMTPSender returns a Sender for the account's outgoing server.
func SMTPSender(account *mail.MailAccount, logger *zap.Logger, m *metrics.Metrics) Sender {
	return smtp.NewClient(smtp.Config{
		Host:     account.OutboxAddress,
		Port:     account.OutboxPort,
		User:     account.OutboxUser,
		Password: account.OutboxPassword,
		Security: account.OutboxSecure,
	}, logger, m)
}

// Client serves one account over a single lazily established connection.
// It is not safe for concurrent use.
type Client struct {
	account   *mail.MailAccount
	dial      Dialer
	sender    Sender
	transport Transport
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func New(account *mail.MailAccount, dial Dialer, sender Sender, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		account: account,
		dial:    dial,
		sender:  sender,
		logger:  logger.Named("mailclient").With(zap.String("account", account.ID)),
		metrics: m,
	}
}

func (c *Client) Account() *mail.MailAccount { return c.account }

// Close drops the connection. The next operation reconnects.
func (c *Client) Close() error {
	if c.transport == nil {
		return nil
	}
	err := c.transport.Close()
	c.transport = nil
	return err
}

func (c *Client) conn(ctx context.Context) (Transport, error) {
	if c.transport != nil {
		return c.transport, nil
	}
	t, err := c.dial(ctx)
	if err != nil {
		return nil, &MailClientError{Op: "connect", Err: err}
	}
	c.transport = t
	return t, nil
}

func (c *Client) checkFolder(key mail.FolderKey) error {
	if err := key.Validate(); err != nil {
		return &ServiceError{Msg: "invalid folder key", Err: err}
	}
	if key.MailAccountID != c.account.ID {
		return serviceErrorf("folder %s does not belong to account %s", key, c.account.ID)
	}
	return nil
}

// checkMessage validates key and returns its UID.
func (c *Client) checkMessage(key mail.MessageKey) (uint32, error) {
	if err := key.Validate(); err != nil {
		return 0, &ServiceError{Msg: "invalid message key", Err: err}
	}
	if err := c.checkFolder(key.FolderKey()); err != nil {
		return 0, err
	}
	uid, err := parseUID(key.ID)
	if err != nil {
		return 0, &ServiceError{Msg: "invalid message id", Err: err}
	}
	return uid, nil
}

func parseUID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, mail.ErrInvalidKey
	}
	return uint32(n), nil
}

func formatUID(uid uint32) string { return strconv.FormatUint(uint64(uid), 10) }
