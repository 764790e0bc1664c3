// Package imap is the IMAP side of the mail transport, a thin wrapper around
// go-imap's client that speaks in folder names and UIDs.
package imap

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/metrics"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrMailboxNotFound = errors.New("mailbox not found")
)

// Config holds the connection settings of an IMAP account.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS                bool
	InsecureSkipVerify bool
}

type Client struct {
	client   *imapclient.Client
	config   Config
	selected string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewClient(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:  cfg,
		logger:  logger.Named("imap"),
		metrics: m,
	}
}

func (c *Client) Connect(ctx context.Context) (err error) {
	defer c.observe("connect", time.Now(), &err)
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.config.Host, c.config.Port)
	options := dialOptions(c.config)

	var client *imapclient.Client
	if c.config.TLS {
		client, err = imapclient.DialTLS(addr, options)
	} else {
		client, err = imapclient.DialStartTLS(addr, options)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := client.Login(c.config.User, c.config.Password).Wait(); err != nil {
		client.Close()
		return fmt.Errorf("IMAP login failed: %w", err)
	}

	c.client = client
	c.selected = ""
	c.logger.Debug("connected", zap.String("addr", addr), zap.String("user", c.config.User))
	return nil
}

// dialOptions decodes encoded-words of every charset go-message knows.
// go-imap's default decoder only handles UTF-8, US-ASCII and ISO-8859-1.
func dialOptions(cfg Config) *imapclient.Options {
	return &imapclient.Options{
		TLSConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			ServerName:         cfg.Host,
		},
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	}
}

func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	// Logout errors are irrelevant, the connection is closed either way.
	_ = c.client.Logout().Wait()
	err := c.client.Close()
	c.client = nil
	c.selected = ""
	return err
}

func (c *Client) ListMailboxes(ctx context.Context) (result []MailboxInfo, err error) {
	defer c.observe("list", time.Now(), &err)
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	mailboxes, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	for _, mb := range mailboxes {
		info := MailboxInfo{
			Name:       mb.Mailbox,
			Attributes: make([]string, 0, len(mb.Attrs)),
		}
		if mb.Delim != 0 {
			info.Delimiter = string(mb.Delim)
		}
		for _, attr := range mb.Attrs {
			info.Attributes = append(info.Attributes, string(attr))
		}
		result = append(result, info)
	}
	return result, nil
}

func (c *Client) Status(ctx context.Context, mailbox string) (status *MailboxStatus, err error) {
	defer c.observe("status", time.Now(), &err)
	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	data, err := c.client.Status(mailbox, &imap.StatusOptions{
		NumMessages: true,
		NumUnseen:   true,
	}).Wait()
	if err != nil {
		return nil, mailboxError("failed to get status of", mailbox, err)
	}

	status = &MailboxStatus{Name: mailbox}
	if data.NumMessages != nil {
		status.Messages = *data.NumMessages
	}
	if data.NumUnseen != nil {
		status.Unseen = *data.NumUnseen
	}
	return status, nil
}

// Search returns the UIDs matching criteria, ordered by sort. Servers
// without SORT support return ascending UIDs, reversed if the first sort
// criterion is descending.
func (c *Client) Search(ctx context.Context, mailbox string, criteria *imap.SearchCriteria, sort []SortCriterion) (uids []uint32, err error) {
	defer c.observe("search", time.Now(), &err)
	if err := c.selectMailbox(ctx, mailbox); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}

	if len(sort) > 0 && c.client.Caps().Has(imap.CapSort) {
		sortCriteria := make([]imapclient.SortCriterion, 0, len(sort))
		for _, s := range sort {
			sortCriteria = append(sortCriteria, imapclient.SortCriterion{
				Key:     imapclient.SortKey(s.Key),
				Reverse: s.Reverse,
			})
		}
		uids, err := c.client.UIDSort(&imapclient.SortOptions{
			SearchCriteria: criteria,
			SortCriteria:   sortCriteria,
		}).Wait()
		if err != nil {
			return nil, fmt.Errorf("sort failed: %w", err)
		}
		return uids, nil
	}

	data, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	all := data.AllUIDs()
	uids = make([]uint32, len(all))
	for i, uid := range all {
		uids[i] = uint32(uid)
	}
	if len(sort) > 0 && sort[0].Reverse {
		for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
			uids[i], uids[j] = uids[j], uids[i]
		}
	}
	return uids, nil
}

// Fetch retrieves the requested items for uids. The results are in the
// order the server sent them.
func (c *Client) Fetch(ctx context.Context, mailbox string, uids []uint32, opts FetchOptions) (results []FetchResult, err error) {
	defer c.observe("fetch", time.Now(), &err)
	if len(uids) == 0 {
		return nil, nil
	}
	if err := c.selectMailbox(ctx, mailbox); err != nil {
		return nil, err
	}

	fetchOptions := &imap.FetchOptions{
		UID:        true,
		Flags:      opts.Flags,
		Envelope:   opts.Envelope,
		RFC822Size: opts.Size,
	}
	if opts.Structure {
		fetchOptions.BodyStructure = &imap.FetchItemBodyStructure{Extended: true}
	}

	var headerSection *imap.FetchItemBodySection
	if len(opts.Headers) > 0 {
		headerSection = &imap.FetchItemBodySection{
			Specifier:    imap.PartSpecifierHeader,
			HeaderFields: opts.Headers,
			Peek:         true,
		}
		fetchOptions.BodySection = append(fetchOptions.BodySection, headerSection)
	}

	sections := make(map[string]*imap.FetchItemBodySection, len(opts.Sections))
	for _, path := range opts.Sections {
		part, err := ParsePartPath(path)
		if err != nil {
			return nil, err
		}
		section := &imap.FetchItemBodySection{Part: part, Peek: true}
		sections[path] = section
		fetchOptions.BodySection = append(fetchOptions.BodySection, section)
	}

	var fullSection *imap.FetchItemBodySection
	if opts.Full {
		fullSection = &imap.FetchItemBodySection{Peek: true}
		fetchOptions.BodySection = append(fetchOptions.BodySection, fullSection)
	}

	set := make([]imap.UID, len(uids))
	for i, uid := range uids {
		set[i] = imap.UID(uid)
	}

	messages, err := c.client.Fetch(imap.UIDSetNum(set...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	for _, msg := range messages {
		result := FetchResult{
			UID:  uint32(msg.UID),
			Size: msg.RFC822Size,
		}
		for _, f := range msg.Flags {
			result.Flags = append(result.Flags, string(f))
		}
		if msg.Envelope != nil {
			result.Envelope = convertEnvelope(msg.Envelope)
		}
		if msg.BodyStructure != nil {
			result.Parts = FlattenStructure(msg.BodyStructure)
		}
		if headerSection != nil {
			result.Header = parseHeader(msg.FindBodySection(headerSection))
		}
		if len(sections) > 0 {
			result.Sections = make(map[string][]byte, len(sections))
			for path, section := range sections {
				if data := msg.FindBodySection(section); data != nil {
					result.Sections[path] = data
				}
			}
		}
		if fullSection != nil {
			result.Full = msg.FindBodySection(fullSection)
		}
		results = append(results, result)
	}
	return results, nil
}

// Append stores raw in mailbox and returns its UID. The UID is 0 if the
// server does not report it.
func (c *Client) Append(ctx context.Context, mailbox string, raw []byte, flags []string) (uid uint32, err error) {
	defer c.observe("append", time.Now(), &err)
	if err := c.ready(ctx); err != nil {
		return 0, err
	}

	cmd := c.client.Append(mailbox, int64(len(raw)), &imap.AppendOptions{Flags: toFlags(flags)})
	if _, err := cmd.Write(raw); err != nil {
		cmd.Close()
		return 0, fmt.Errorf("failed to write message: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	data, err := cmd.Wait()
	if err != nil {
		return 0, mailboxError("failed to append message to", mailbox, err)
	}
	return uint32(data.UID), nil
}

// Store adds and removes flags on uids.
func (c *Client) Store(ctx context.Context, mailbox string, uids []uint32, add, remove []string) (err error) {
	defer c.observe("store", time.Now(), &err)
	if err := c.selectMailbox(ctx, mailbox); err != nil {
		return err
	}

	set := uidSet(uids)
	if len(add) > 0 {
		storeCmd := c.client.Store(set, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  toFlags(add),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("failed to add flags: %w", err)
		}
	}
	if len(remove) > 0 {
		storeCmd := c.client.Store(set, &imap.StoreFlags{
			Op:     imap.StoreFlagsDel,
			Silent: true,
			Flags:  toFlags(remove),
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("failed to remove flags: %w", err)
		}
	}
	return nil
}

// Expunge permanently deletes uids. UID EXPUNGE is used when available so
// other messages flagged \Deleted are left alone.
func (c *Client) Expunge(ctx context.Context, mailbox string, uids []uint32) (err error) {
	defer c.observe("expunge", time.Now(), &err)
	if err := c.selectMailbox(ctx, mailbox); err != nil {
		return err
	}

	set := uidSet(uids)
	storeCmd := c.client.Store(set, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil)
	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("failed to mark messages for deletion: %w", err)
	}

	if c.client.Caps().Has(imap.CapUIDPlus) {
		if err := c.client.UIDExpunge(set).Close(); err != nil {
			return fmt.Errorf("failed to expunge: %w", err)
		}
		return nil
	}
	if err := c.client.Expunge().Close(); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// Move moves uids to dest and returns the mapping of old to new UIDs as far
// as the server reports it.
func (c *Client) Move(ctx context.Context, mailbox string, uids []uint32, dest string) (mapping map[uint32]uint32, err error) {
	defer c.observe("move", time.Now(), &err)
	if err := c.selectMailbox(ctx, mailbox); err != nil {
		return nil, err
	}

	data, err := c.client.Move(uidSet(uids), dest).Wait()
	if err != nil {
		return nil, mailboxError("failed to move messages to", dest, err)
	}

	mapping = make(map[uint32]uint32)
	if data == nil {
		return mapping, nil
	}
	src, dst := uidNums(data.SourceUIDs), uidNums(data.DestUIDs)
	for i := 0; i < len(src) && i < len(dst); i++ {
		mapping[src[i]] = dst[i]
	}
	return mapping, nil
}

func (c *Client) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.client == nil {
		return ErrNotConnected
	}
	return nil
}

func (c *Client) selectMailbox(ctx context.Context, name string) error {
	if err := c.ready(ctx); err != nil {
		return err
	}
	if c.selected == name {
		return nil
	}
	if _, err := c.client.Select(name, nil).Wait(); err != nil {
		c.selected = ""
		return mailboxError("failed to select mailbox", name, err)
	}
	c.selected = name
	return nil
}

func (c *Client) observe(op string, start time.Time, errp *error) {
	c.metrics.ObserveTransport("imap", op, start, *errp)
	if *errp != nil {
		c.logger.Debug("operation failed", zap.String("op", op), zap.Error(*errp))
	}
}

// mailboxError wraps err, adding ErrMailboxNotFound when the server reports
// a NONEXISTENT mailbox.
func mailboxError(action, mailbox string, err error) error {
	if isNonExistent(err) {
		return fmt.Errorf("%s %s: %w: %w", action, mailbox, ErrMailboxNotFound, err)
	}
	return fmt.Errorf("%s %s: %w", action, mailbox, err)
}

func isNonExistent(err error) bool {
	var imapErr *imap.Error
	return errors.As(err, &imapErr) && imapErr.Code == imap.ResponseCodeNonExistent
}

// ParsePartPath parses a body part path such as "1.2".
func ParsePartPath(path string) ([]int, error) {
	if path == "" {
		return nil, nil
	}
	fields := strings.Split(path, ".")
	part := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid body part path %q", path)
		}
		part[i] = n
	}
	return part, nil
}

// FormatPartPath is the inverse of ParsePartPath. The empty path of a
// single part message is part "1".
func FormatPartPath(path []int) string {
	if len(path) == 0 {
		return "1"
	}
	parts := make([]string, len(path))
	for i, n := range path {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// FlattenStructure lists the leaf parts of bs in depth-first order.
// Embedded messages are not descended into.
func FlattenStructure(bs imap.BodyStructure) []BodyPart {
	var parts []BodyPart
	bs.Walk(func(path []int, part imap.BodyStructure) bool {
		single, ok := part.(*imap.BodyStructureSinglePart)
		if !ok {
			return true
		}
		p := BodyPart{
			Path:     FormatPartPath(path),
			Type:     strings.ToLower(single.Type),
			Subtype:  strings.ToLower(single.Subtype),
			Params:   single.Params,
			Encoding: strings.ToLower(single.Encoding),
			Size:     single.Size,
			Filename: paramValue(single.Params, "name"),
		}
		if single.Extended != nil && single.Extended.Disposition != nil {
			p.Disposition = strings.ToLower(single.Extended.Disposition.Value)
			if name := paramValue(single.Extended.Disposition.Params, "filename"); name != "" {
				p.Filename = name
			}
		}
		parts = append(parts, p)
		return false
	})
	return parts
}

func paramValue(params map[string]string, key string) string {
	for k, v := range params {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func convertEnvelope(env *imap.Envelope) *Envelope {
	return &Envelope{
		Date:      env.Date,
		Subject:   env.Subject,
		From:      convertAddresses(env.From),
		ReplyTo:   convertAddresses(env.ReplyTo),
		To:        convertAddresses(env.To),
		Cc:        convertAddresses(env.Cc),
		Bcc:       convertAddresses(env.Bcc),
		MessageID: env.MessageID,
	}
}

func convertAddresses(list []imap.Address) []Address {
	if len(list) == 0 {
		return nil
	}
	out := make([]Address, 0, len(list))
	for _, a := range list {
		// group markers carry no host
		if a.Host == "" {
			continue
		}
		out = append(out, Address{Name: a.Name, Address: a.Addr()})
	}
	return out
}

func parseHeader(raw []byte) mail.Header {
	if len(raw) == 0 {
		return mail.Header{}
	}
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return mail.Header{}
	}
	return mail.Header{Header: message.Header{Header: h}}
}

func toFlags(names []string) []imap.Flag {
	flags := make([]imap.Flag, len(names))
	for i, n := range names {
		flags[i] = imap.Flag(n)
	}
	return flags
}

func uidSet(uids []uint32) imap.UIDSet {
	set := make([]imap.UID, len(uids))
	for i, uid := range uids {
		set[i] = imap.UID(uid)
	}
	return imap.UIDSetNum(set...)
}

func uidNums(set imap.NumSet) []uint32 {
	uids, ok := set.(imap.UIDSet)
	if !ok {
		return nil
	}
	nums, ok := uids.Nums()
	if !ok {
		return nil
	}
	out := make([]uint32, len(nums))
	for i, n := range nums {
		out[i] = uint32(n)
	}
	return out
}
