// Package smtp submits composed messages through an account's outgoing
// server.
package smtp

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-sasl"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/metrics"
)

var ErrNoRecipients = errors.New("message has no recipients")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// Security is one of the Security* modes.
	Security           string
	InsecureSkipVerify bool
}

type Client struct {
	config  Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:  cfg,
		logger:  logger.Named("smtp"),
		metrics: m,
	}
}

// Send submits raw to rcpts. If rcpts is empty the recipients are taken
// from the message's To, Cc and Bcc headers. The Bcc header is never
// transmitted.
func (c *Client) Send(ctx context.Context, from string, rcpts []string, raw []byte) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveTransport("smtp", "send", start, err)
	}()

	env, err := ReadEnvelope(raw)
	if err != nil {
		return err
	}
	if from == "" {
		from = env.From
	}
	if len(rcpts) == 0 {
		rcpts = env.Recipients
	}
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	tlsConfig := &tls.Config{
		InsecureSkipVerify: c.config.InsecureSkipVerify,
		ServerName:         c.config.Host,
	}

	client, err := DialClient(ctx, addr, c.config.Host, c.config.Security, tlsConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	if c.config.User != "" {
		auth := sasl.NewPlainClient("", c.config.User, c.config.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("failed to add recipient %s: %w", rcpt, err)
		}
	}

	data, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := data.Write(env.Message); err != nil {
		data.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := data.Close(); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Debug("message sent", zap.String("from", from), zap.Int("recipients", len(rcpts)))
	return client.Quit()
}

// Envelope is the SMTP envelope of a composed message.
type Envelope struct {
	From       string
	Recipients []string
	// Message is the message as transmitted, without its Bcc header.
	Message []byte
}

// ReadEnvelope extracts the sender and the deduplicated recipients of raw.
func ReadEnvelope(raw []byte) (*Envelope, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	th, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	env := &Envelope{}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		env.From = from[0].Address
	}

	seen := make(map[string]bool)
	for _, field := range []string{"To", "Cc", "Bcc"} {
		list, err := h.AddressList(field)
		if err != nil {
			return nil, fmt.Errorf("invalid %s header: %w", field, err)
		}
		for _, a := range list {
			key := strings.ToLower(a.Address)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			env.Recipients = append(env.Recipients, a.Address)
		}
	}

	th.Del("Bcc")
	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, th); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	buf.Write(body)
	env.Message = buf.Bytes()
	return env, nil
}
