// Package memtransport is an in-memory mail server implementing the
// mailclient Transport and Sender interfaces. Messages are parsed with
// go-message so fetches return the same shapes an IMAP server would.
package memtransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"

	"github.com/bscott/mailgate/internal/imap"
)

// ErrInjected is returned by operations configured to fail.
var ErrInjected = errors.New("injected failure")

type storedMessage struct {
	uid   uint32
	flags []string
	raw   []byte
}

type mailbox struct {
	info    imap.MailboxInfo
	nextUID uint32
	msgs    []*storedMessage
}

// Sent is a message handed to Send.
type Sent struct {
	From       string
	Recipients []string
	Raw        []byte
}

type Server struct {
	mu        sync.Mutex
	mailboxes []*mailbox

	// NoAppendUID makes Append report UID 0, like servers without UIDPLUS.
	NoAppendUID bool
	// FailExpunge makes every Expunge fail.
	FailExpunge bool
	// FailSend makes every Send fail.
	FailSend bool

	sent   []Sent
	closed bool
}

func New() *Server {
	return &Server{}
}

// AddMailbox creates a mailbox with the "/" delimiter.
func (s *Server) AddMailbox(name string, attrs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mailboxes = append(s.mailboxes, &mailbox{
		info:    imap.MailboxInfo{Name: name, Delimiter: "/", Attributes: attrs},
		nextUID: 1,
	})
}

// AddMessage stores raw in mailbox and returns its UID.
func (s *Server) AddMessage(name string, raw string, flags ...string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb := s.mailbox(name)
	if mb == nil {
		panic("memtransport: unknown mailbox " + name)
	}
	return mb.add([]byte(raw), flags)
}

// Flags returns the flags of a message, or nil if it does not exist.
func (s *Server) Flags(name string, uid uint32) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mb := s.mailbox(name); mb != nil {
		if m := mb.find(uid); m != nil {
			return append([]string(nil), m.flags...)
		}
	}
	return nil
}

// UIDs lists the messages of a mailbox in UID order.
func (s *Server) UIDs(name string) []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb := s.mailbox(name)
	if mb == nil {
		return nil
	}
	uids := make([]uint32, len(mb.msgs))
	for i, m := range mb.msgs {
		uids[i] = m.uid
	}
	return uids
}

// Raw returns the stored bytes of a message.
func (s *Server) Raw(name string, uid uint32) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mb := s.mailbox(name); mb != nil {
		if m := mb.find(uid); m != nil {
			return m.raw
		}
	}
	return nil
}

// SentMessages returns everything handed to Send.
func (s *Server) SentMessages() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

func (s *Server) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) ListMailboxes(ctx context.Context) ([]imap.MailboxInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]imap.MailboxInfo, len(s.mailboxes))
	for i, mb := range s.mailboxes {
		out[i] = mb.info
	}
	return out, nil
}

func (s *Server) Status(ctx context.Context, name string) (*imap.MailboxStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, err := s.selectable(name)
	if err != nil {
		return nil, err
	}
	status := &imap.MailboxStatus{Name: name, Messages: uint32(len(mb.msgs))}
	for _, m := range mb.msgs {
		if !hasFlag(m.flags, `\Seen`) {
			status.Unseen++
		}
	}
	return status, nil
}

// Search supports header, flag and UID criteria. Results are in UID
// order, reversed if the first sort criterion is descending.
func (s *Server) Search(ctx context.Context, name string, criteria *goimap.SearchCriteria, sortBy []imap.SortCriterion) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, err := s.selectable(name)
	if err != nil {
		return nil, err
	}
	var uids []uint32
	for _, m := range mb.msgs {
		if criteria == nil || matches(m, criteria) {
			uids = append(uids, m.uid)
		}
	}
	if len(sortBy) > 0 && sortBy[0].Reverse {
		sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	}
	return uids, nil
}

// Fetch returns results in descending UID order, so callers cannot rely
// on the order.
func (s *Server) Fetch(ctx context.Context, name string, uids []uint32, opts imap.FetchOptions) ([]imap.FetchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, err := s.selectable(name)
	if err != nil {
		return nil, err
	}

	var results []imap.FetchResult
	for _, uid := range uids {
		m := mb.find(uid)
		if m == nil {
			continue
		}
		r, err := fetch(m, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].UID > results[j].UID })
	return results, nil
}

func (s *Server) Append(ctx context.Context, name string, raw []byte, flags []string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, err := s.selectable(name)
	if err != nil {
		return 0, err
	}
	uid := mb.add(append([]byte(nil), raw...), flags)
	if s.NoAppendUID {
		return 0, nil
	}
	return uid, nil
}

func (s *Server) Store(ctx context.Context, name string, uids []uint32, add, remove []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, err := s.selectable(name)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		m := mb.find(uid)
		if m == nil {
			continue
		}
		for _, f := range add {
			if !hasFlag(m.flags, f) {
				m.flags = append(m.flags, f)
			}
		}
		kept := m.flags[:0]
		for _, f := range m.flags {
			if !hasFlag(remove, f) {
				kept = append(kept, f)
			}
		}
		m.flags = kept
	}
	return nil
}

func (s *Server) Expunge(ctx context.Context, name string, uids []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailExpunge {
		return ErrInjected
	}
	mb, err := s.selectable(name)
	if err != nil {
		return err
	}
	mb.remove(uids)
	return nil
}

func (s *Server) Move(ctx context.Context, name string, uids []uint32, dest string) (map[uint32]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := s.selectable(name)
	if err != nil {
		return nil, err
	}
	dst, err := s.selectable(dest)
	if err != nil {
		return nil, err
	}
	mapping := make(map[uint32]uint32)
	for _, uid := range uids {
		if m := src.find(uid); m != nil {
			mapping[uid] = dst.add(m.raw, m.flags)
		}
	}
	src.remove(uids)
	return mapping, nil
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Send records the message. Recipients default to the message's To, Cc
// and Bcc addresses.
func (s *Server) Send(ctx context.Context, from string, rcpts []string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSend {
		return ErrInjected
	}
	if len(rcpts) == 0 {
		mr, err := gomail.CreateReader(bytes.NewReader(raw))
		if mr == nil {
			return err
		}
		for _, field := range []string{"To", "Cc", "Bcc"} {
			list, _ := mr.Header.AddressList(field)
			for _, a := range list {
				rcpts = append(rcpts, a.Address)
			}
		}
	}
	s.sent = append(s.sent, Sent{From: from, Recipients: rcpts, Raw: append([]byte(nil), raw...)})
	return nil
}

func (s *Server) mailbox(name string) *mailbox {
	for _, mb := range s.mailboxes {
		if mb.info.Name == name {
			return mb
		}
	}
	return nil
}

func (s *Server) selectable(name string) (*mailbox, error) {
	mb := s.mailbox(name)
	if mb == nil || hasFlag(mb.info.Attributes, `\Noselect`) {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", name, imap.ErrMailboxNotFound)
	}
	return mb, nil
}

func (mb *mailbox) add(raw []byte, flags []string) uint32 {
	uid := mb.nextUID
	mb.nextUID++
	mb.msgs = append(mb.msgs, &storedMessage{uid: uid, flags: append([]string(nil), flags...), raw: raw})
	return uid
}

func (mb *mailbox) find(uid uint32) *storedMessage {
	for _, m := range mb.msgs {
		if m.uid == uid {
			return m
		}
	}
	return nil
}

func (mb *mailbox) remove(uids []uint32) {
	kept := mb.msgs[:0]
	for _, m := range mb.msgs {
		drop := false
		for _, uid := range uids {
			if m.uid == uid {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, m)
		}
	}
	mb.msgs = kept
}

func matches(m *storedMessage, c *goimap.SearchCriteria) bool {
	for _, f := range c.Flag {
		if !hasFlag(m.flags, string(f)) {
			return false
		}
	}
	for _, f := range c.NotFlag {
		if hasFlag(m.flags, string(f)) {
			return false
		}
	}
	if len(c.Header) > 0 {
		e, _ := message.Read(bytes.NewReader(m.raw))
		if e == nil {
			return false
		}
		for _, h := range c.Header {
			v := e.Header.Get(h.Key)
			if !strings.Contains(strings.ToLower(v), strings.ToLower(h.Value)) {
				return false
			}
		}
	}
	for _, set := range c.UID {
		if !inSet(set, m.uid) {
			return false
		}
	}
	for i := range c.Not {
		if matches(m, &c.Not[i]) {
			return false
		}
	}
	for _, or := range c.Or {
		if !matches(m, &or[0]) && !matches(m, &or[1]) {
			return false
		}
	}
	return true
}

func inSet(set goimap.UIDSet, uid uint32) bool {
	for _, r := range set {
		stop := uint32(r.Stop)
		if stop == 0 {
			stop = ^uint32(0)
		}
		if uid >= uint32(r.Start) && uid <= stop {
			return true
		}
	}
	return false
}

func fetch(m *storedMessage, opts imap.FetchOptions) (imap.FetchResult, error) {
	r := imap.FetchResult{UID: m.uid}
	if opts.Flags {
		r.Flags = append([]string(nil), m.flags...)
	}
	if opts.Size {
		r.Size = int64(len(m.raw))
	}
	if opts.Full {
		r.Full = append([]byte(nil), m.raw...)
	}
	if !opts.Envelope && !opts.Structure && len(opts.Headers) == 0 && len(opts.Sections) == 0 {
		return r, nil
	}

	e, err := message.Read(bytes.NewReader(m.raw))
	if e == nil {
		return r, fmt.Errorf("failed to parse message %d: %w", m.uid, err)
	}
	h := gomail.Header{Header: e.Header}

	if opts.Envelope {
		r.Envelope = envelope(h)
	}
	if len(opts.Headers) > 0 {
		r.Header = h
	}

	if opts.Structure || len(opts.Sections) > 0 {
		sections := make(map[string][]byte)
		var parts []imap.BodyPart
		if err := walk(e, nil, !message.IsUnknownCharset(err), &parts, sections); err != nil {
			return r, err
		}
		if opts.Structure {
			r.Parts = parts
		}
		if len(opts.Sections) > 0 {
			r.Sections = make(map[string][]byte)
			for _, path := range opts.Sections {
				if data, ok := sections[path]; ok {
					r.Sections[path] = data
				}
			}
		}
	}
	return r, nil
}

// walk collects the leaf parts of e. Section data is stored decoded, and
// the parts report an identity transfer encoding to match. go-message
// converts text to UTF-8 when it knows the charset; such parts are
// relabeled.
func walk(e *message.Entity, path []int, converted bool, parts *[]imap.BodyPart, sections map[string][]byte) error {
	if mr := e.MultipartReader(); mr != nil {
		for i := 1; ; i++ {
			p, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && p == nil {
				return err
			}
			child := append(append([]int(nil), path...), i)
			if err := walk(p, child, !message.IsUnknownCharset(err), parts, sections); err != nil {
				return err
			}
		}
	}

	data, err := io.ReadAll(e.Body)
	if err != nil {
		return err
	}
	ct, params, _ := e.Header.ContentType()
	if ct == "" {
		ct = "text/plain"
	}
	typ, subtype, _ := strings.Cut(ct, "/")
	if cs, ok := params["charset"]; ok && converted && typ == "text" && message.CharsetReader != nil {
		relabeled := make(map[string]string, len(params))
		for k, v := range params {
			relabeled[k] = v
		}
		if !strings.EqualFold(cs, "us-ascii") {
			relabeled["charset"] = "utf-8"
		}
		params = relabeled
	}
	part := imap.BodyPart{
		Path:     imap.FormatPartPath(path),
		Type:     typ,
		Subtype:  subtype,
		Params:   params,
		Encoding: "8bit",
		Size:     uint32(len(data)),
		Filename: params["name"],
	}
	if disp, dparams, err := e.Header.ContentDisposition(); err == nil {
		part.Disposition = disp
		if name := dparams["filename"]; name != "" {
			part.Filename = name
		}
	}
	*parts = append(*parts, part)
	sections[part.Path] = data
	return nil
}

func envelope(h gomail.Header) *imap.Envelope {
	env := &imap.Envelope{}
	env.Date, _ = h.Date()
	env.Subject, _ = h.Subject()
	env.From = addresses(h, "From")
	env.ReplyTo = addresses(h, "Reply-To")
	if len(env.ReplyTo) == 0 {
		env.ReplyTo = env.From
	}
	env.To = addresses(h, "To")
	env.Cc = addresses(h, "Cc")
	env.Bcc = addresses(h, "Bcc")
	env.MessageID, _ = h.MessageID()
	return env
}

func addresses(h gomail.Header, key string) []imap.Address {
	list, err := h.AddressList(key)
	if err != nil {
		return rawAddresses(h.Get(key))
	}
	if len(list) == 0 {
		return nil
	}
	out := make([]imap.Address, len(list))
	for i, a := range list {
		out[i] = imap.Address{Name: a.Name, Address: a.Address}
	}
	return out
}

// rawAddresses splits an address header the parser rejected, such as one
// with unencoded 8-bit names. Names keep their raw bytes like a real server
// would send them in the envelope.
func rawAddresses(v string) []imap.Address {
	var out []imap.Address
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var a imap.Address
		if i := strings.LastIndexByte(part, '<'); i >= 0 && strings.HasSuffix(part, ">") {
			a.Name = strings.Trim(strings.TrimSpace(part[:i]), `"`)
			a.Address = part[i+1 : len(part)-1]
		} else {
			a.Address = part
		}
		out = append(out, a)
	}
	return out
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
