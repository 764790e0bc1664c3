package mailclient

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient/memtransport"
)

var testAccount = &mail.MailAccount{
	ID:   "dev",
	Name: "Dev",
	From: mail.Address{Name: "Jane", Address: "jane@example.com"},
}

type countingServer struct {
	*memtransport.Server
	statusCalls int
}

func (s *countingServer) Status(ctx context.Context, name string) (*imap.MailboxStatus, error) {
	s.statusCalls++
	return s.Server.Status(ctx, name)
}

func newTestClient(t *testing.T) (*Client, *countingServer) {
	t.Helper()
	srv := &countingServer{Server: memtransport.New()}
	srv.AddMailbox("INBOX")
	srv.AddMailbox("Drafts", `\Drafts`)
	srv.AddMailbox("Archive", `\Noselect`)
	srv.AddMailbox("Archive/2024")
	dial := func(ctx context.Context) (Transport, error) { return srv, nil }
	return New(testAccount, dial, srv.Server, nil, nil), srv
}

func plainMessage(subject, body string) string {
	return "From: Bob <bob@example.com>\r\n" +
		"To: Jane <jane@example.com>\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: Mon, 04 Mar 2024 10:00:00 +0000\r\n" +
		"Message-ID: <" + strings.ReplaceAll(subject, " ", "-") + "@example.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		body + "\r\n"
}

const alternativeMessage = "From: Bob <bob@example.com>\r\n" +
	"To: jane@example.com\r\n" +
	"Subject: Report\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Gr=C3=BC=C3=9Fe\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Hi</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=report.pdf\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"JVBERi0=\r\n" +
	"--outer--\r\n"

func TestLazyConnection(t *testing.T) {
	dials := 0
	srv := memtransport.New()
	srv.AddMailbox("INBOX")
	c := New(testAccount, func(ctx context.Context) (Transport, error) {
		dials++
		return srv, nil
	}, srv, nil, nil)

	if dials != 0 {
		t.Fatalf("dialed %d times before the first operation", dials)
	}
	for i := 0; i < 3; i++ {
		if _, err := c.ListMailFolders(context.Background(), nil); err != nil {
			t.Fatalf("ListMailFolders() error = %v", err)
		}
	}
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !srv.Closed() {
		t.Error("Close() did not close the transport")
	}
}

func TestDialFailure(t *testing.T) {
	cause := errors.New("connection refused")
	c := New(testAccount, func(ctx context.Context) (Transport, error) { return nil, cause }, nil, nil, nil)

	_, err := c.ListMailFolders(context.Background(), nil)
	var clientErr *MailClientError
	if !errors.As(err, &clientErr) {
		t.Fatalf("error = %v, want *MailClientError", err)
	}
	if !errors.Is(err, cause) {
		t.Error("the cause must stay reachable")
	}
}

func TestListMailFolders(t *testing.T) {
	tests := []struct {
		name        string
		fields      []string
		statusCalls int
	}{
		{"no counts", []string{"name"}, 0},
		{"unread", []string{"name", "unreadMessages"}, 3},
		{"total", []string{"totalMessages"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.AddMessage("INBOX", plainMessage("one", "x"), `\Seen`)
			srv.AddMessage("INBOX", plainMessage("two", "x"))

			folders, err := c.ListMailFolders(context.Background(), tt.fields)
			if err != nil {
				t.Fatalf("ListMailFolders() error = %v", err)
			}
			if len(folders) != 4 {
				t.Fatalf("len(folders) = %d, want 4", len(folders))
			}
			if srv.statusCalls != tt.statusCalls {
				t.Errorf("status calls = %d, want %d", srv.statusCalls, tt.statusCalls)
			}
			if folders[3].Name != "2024" || folders[3].Key.ID != "Archive/2024" {
				t.Errorf("folder = %q (%q), want 2024 (Archive/2024)", folders[3].Name, folders[3].Key.ID)
			}
			if tt.statusCalls > 0 && (folders[0].UnreadMessages != 1 || folders[0].TotalMessages != 2) {
				t.Errorf("INBOX counts = %d/%d, want 1/2", folders[0].UnreadMessages, folders[0].TotalMessages)
			}
		})
	}
}

func TestListMailFoldersSubscriptions(t *testing.T) {
	c, _ := newTestClient(t)
	account := *testAccount
	account.Subscriptions = []string{"INBOX", "Archive"}
	c.account = &account

	folders, err := c.ListMailFolders(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListMailFolders() error = %v", err)
	}
	var ids []string
	for _, f := range folders {
		ids = append(ids, f.Key.ID)
	}
	if diff := cmp.Diff([]string{"INBOX", "Archive", "Archive/2024"}, ids); diff != "" {
		t.Errorf("folders mismatch (-want +got):\n%s", diff)
	}
}

func TestMessageCounts(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddMessage("INBOX", plainMessage("one", "x"), `\Seen`)
	srv.AddMessage("INBOX", plainMessage("two", "x"))
	srv.AddMessage("INBOX", plainMessage("three", "x"))
	inbox := testAccount.FolderKey("INBOX")

	total, err := c.MessageCount(context.Background(), inbox)
	if err != nil || total != 3 {
		t.Errorf("MessageCount() = %d, %v, want 3", total, err)
	}
	unread, err := c.UnreadMessageCount(context.Background(), inbox)
	if err != nil || unread != 2 {
		t.Errorf("UnreadMessageCount() = %d, %v, want 2", unread, err)
	}

	_, err = c.MessageCount(context.Background(), testAccount.FolderKey("Nope"))
	var notFound *MailFolderNotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want *MailFolderNotFoundError", err)
	}

	_, err = c.MessageCount(context.Background(), mail.NewFolderKey("other", "INBOX"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Errorf("error = %v, want *ServiceError for a foreign account", err)
	}
}

func TestListMessageItemsWindow(t *testing.T) {
	c, srv := newTestClient(t)
	for i := 1; i <= 10; i++ {
		srv.AddMessage("INBOX", plainMessage(fmt.Sprintf("message %d", i), "x"))
	}
	inbox := testAccount.FolderKey("INBOX")
	ascending := []SortField{{Field: "date"}}

	ids := func(items []*mail.MessageItem) []string {
		var out []string
		for _, item := range items {
			out = append(out, item.Key().ID)
		}
		return out
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"first page", ListOptions{Start: 0, Limit: 2, Sort: ascending}, []string{"1", "2"}},
		{"second page", ListOptions{Start: 2, Limit: 2, Sort: ascending}, []string{"3", "4"}},
		{"tail", ListOptions{Start: 8, Limit: 5, Sort: ascending}, []string{"9", "10"}},
		{"past the end", ListOptions{Start: 20, Limit: 5, Sort: ascending}, nil},
		{"newest first by default", ListOptions{Start: 0, Limit: 3}, []string{"10", "9", "8"}},
		{"descending", ListOptions{Start: 1, Limit: 2, Sort: []SortField{{Field: "date", Descending: true}}}, []string{"9", "8"}},
		{"limit at int bounds", ListOptions{Start: 7, Limit: math.MaxInt, Sort: ascending}, []string{"8", "9", "10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := c.ListMessageItems(context.Background(), inbox, tt.opts)
			if err != nil {
				t.Fatalf("ListMessageItems() error = %v", err)
			}
			if total != 10 {
				t.Errorf("total = %d, want 10", total)
			}
			if diff := cmp.Diff(tt.want, ids(items)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetMessageItem(t *testing.T) {
	c, srv := newTestClient(t)
	plain := srv.AddMessage("INBOX", plainMessage("Hello", "hi"), `\Seen`, `\Flagged`)
	multi := srv.AddMessage("INBOX", alternativeMessage)

	item, err := c.GetMessageItem(context.Background(), testAccount.FolderKey("INBOX").MessageKey(formatUID(plain)))
	if err != nil {
		t.Fatalf("GetMessageItem() error = %v", err)
	}
	if item.Subject() != "Hello" {
		t.Errorf("Subject() = %q, want Hello", item.Subject())
	}
	if item.From() != (mail.Address{Name: "Bob", Address: "bob@example.com"}) {
		t.Errorf("From() = %v", item.From())
	}
	if !item.Seen() || !item.Flagged() || item.Draft() || item.HasAttachments() {
		t.Errorf("flags = seen %v flagged %v draft %v attachments %v", item.Seen(), item.Flagged(), item.Draft(), item.HasAttachments())
	}
	if item.MessageID() != "<Hello@example.com>" {
		t.Errorf("MessageID() = %q", item.MessageID())
	}
	if want := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC); !item.Date().Equal(want) {
		t.Errorf("Date() = %v, want %v", item.Date(), want)
	}
	if item.Charset() != "utf-8" {
		t.Errorf("Charset() = %q, want utf-8", item.Charset())
	}
	if item.IsModified(mail.FieldSubject) {
		t.Error("fetched items must not report modified fields")
	}

	item, err = c.GetMessageItem(context.Background(), testAccount.FolderKey("INBOX").MessageKey(formatUID(multi)))
	if err != nil {
		t.Fatalf("GetMessageItem() error = %v", err)
	}
	if !item.HasAttachments() {
		t.Error("HasAttachments() = false, want true")
	}

	_, err = c.GetMessageItem(context.Background(), testAccount.FolderKey("INBOX").MessageKey("99"))
	if !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("error = %v, want ErrMessageNotFound", err)
	}

	_, err = c.GetMessageItem(context.Background(), testAccount.FolderKey("INBOX").MessageKey("abc"))
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Errorf("error = %v, want *ServiceError for a malformed id", err)
	}
}

func TestGetMessageBody(t *testing.T) {
	c, srv := newTestClient(t)
	uid := srv.AddMessage("INBOX", alternativeMessage)
	key := testAccount.FolderKey("INBOX").MessageKey(formatUID(uid))

	body, err := c.GetMessageBody(context.Background(), key)
	if err != nil {
		t.Fatalf("GetMessageBody() error = %v", err)
	}
	want := &mail.MessageBody{
		Key:       key,
		TextPlain: mail.NewMessagePart("Grüße", "utf-8", mail.MimeTypeTextPlain),
		TextHTML:  mail.NewMessagePart("<p>Hi</p>", "utf-8", mail.MimeTypeTextHTML),
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("GetMessageBody() mismatch (-want +got):\n%s", diff)
	}
}

func newDraft() *mail.MessageItemDraft {
	d := mail.NewMessageItemDraft(mail.MessageKey{})
	d.SetFrom(testAccount.From)
	d.SetTo(mail.AddressList{{Name: "Bob", Address: "bob@example.com"}})
	d.SetSubject("Re: Hello")
	d.SetInReplyTo("<Hello@example.com>")
	d.SetDraftInfo(mail.DraftInfo{MailAccountID: "dev", MailFolderID: "INBOX", ID: "1"})
	return d
}

func TestCreateMessageDraft(t *testing.T) {
	c, _ := newTestClient(t)
	drafts := testAccount.FolderKey("Drafts")

	created, err := c.CreateMessageDraft(context.Background(), drafts, newDraft())
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}
	if created.Key().ID != "1" || created.Key().MailFolderID != "Drafts" {
		t.Errorf("Key() = %v", created.Key())
	}

	got, err := c.GetMessageItemDraft(context.Background(), created.Key())
	if err != nil {
		t.Fatalf("GetMessageItemDraft() error = %v", err)
	}
	if got.Subject() != "Re: Hello" || got.InReplyTo() != "<Hello@example.com>" || !got.Draft() {
		t.Errorf("draft = subject %q inReplyTo %q draft %v", got.Subject(), got.InReplyTo(), got.Draft())
	}
	if diff := cmp.Diff(mail.AddressList{{Name: "Bob", Address: "bob@example.com"}}, got.To()); diff != "" {
		t.Errorf("To() mismatch (-want +got):\n%s", diff)
	}
	info, ok := got.DraftInfo()
	if !ok || info.ID != "1" {
		t.Errorf("DraftInfo() = %v, %v", info, ok)
	}

	_, err = c.CreateMessageDraft(context.Background(), drafts, created)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Errorf("error = %v, want *ServiceError for a keyed draft", err)
	}
}

func TestUpdateMessageDraft(t *testing.T) {
	c, srv := newTestClient(t)
	drafts := testAccount.FolderKey("Drafts")

	body, err := c.CreateMessageBodyDraft(context.Background(), drafts, &mail.MessageBodyDraft{
		TextPlain: mail.NewMessagePart("draft text", mail.DefaultCharset, mail.MimeTypeTextPlain),
	})
	if err != nil {
		t.Fatalf("CreateMessageBodyDraft() error = %v", err)
	}

	draft, err := c.GetMessageItemDraft(context.Background(), body.Key)
	if err != nil {
		t.Fatalf("GetMessageItemDraft() error = %v", err)
	}
	draft.SetSubject("Updated")
	draft.SetTo(mail.AddressList{{Address: "carol@example.com"}})

	updated, err := c.UpdateMessageDraft(context.Background(), draft)
	if err != nil {
		t.Fatalf("UpdateMessageDraft() error = %v", err)
	}
	if updated.Key() == draft.Key() {
		t.Fatal("the replacement must have a new key")
	}
	if draft.Key() != body.Key {
		t.Error("the updated draft must not be mutated")
	}
	if diff := cmp.Diff([]uint32{2}, srv.UIDs("Drafts")); diff != "" {
		t.Errorf("Drafts mismatch (-want +got):\n%s", diff)
	}
	if !containsFlag(srv.Flags("Drafts", 2), `\Draft`) {
		t.Error("replacement is not flagged \\Draft")
	}

	got, err := c.GetMessageItemDraft(context.Background(), updated.Key())
	if err != nil {
		t.Fatalf("GetMessageItemDraft() error = %v", err)
	}
	if got.Subject() != "Updated" || got.To().String() != "carol@example.com" {
		t.Errorf("replacement = subject %q to %q", got.Subject(), got.To().String())
	}

	b, err := c.GetMessageBody(context.Background(), updated.Key())
	if err != nil {
		t.Fatalf("GetMessageBody() error = %v", err)
	}
	if b.TextPlain == nil || b.TextPlain.Contents != "draft text" {
		t.Errorf("body not kept: %+v", b.TextPlain)
	}
}

func TestUpdateMessageBodyDraft(t *testing.T) {
	c, srv := newTestClient(t)
	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), newDraft())
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}

	updated, err := c.UpdateMessageBodyDraft(context.Background(), &mail.MessageBodyDraft{
		Key:      created.Key(),
		TextHTML: mail.NewMessagePart("<b>new</b>", mail.DefaultCharset, mail.MimeTypeTextHTML),
	})
	if err != nil {
		t.Fatalf("UpdateMessageBodyDraft() error = %v", err)
	}
	if updated.Key == created.Key() {
		t.Fatal("the replacement must have a new key")
	}

	item, err := c.GetMessageItemDraft(context.Background(), updated.Key)
	if err != nil {
		t.Fatalf("GetMessageItemDraft() error = %v", err)
	}
	if item.Subject() != "Re: Hello" {
		t.Errorf("headers not kept: subject %q", item.Subject())
	}
	b, err := c.GetMessageBody(context.Background(), updated.Key)
	if err != nil {
		t.Fatalf("GetMessageBody() error = %v", err)
	}
	if b.TextHTML == nil || b.TextHTML.Contents != "<b>new</b>" || b.TextPlain != nil {
		t.Errorf("body = %+v / %+v", b.TextPlain, b.TextHTML)
	}
	if len(srv.UIDs("Drafts")) != 1 {
		t.Errorf("Drafts = %v, want a single draft", srv.UIDs("Drafts"))
	}
}

func TestReplaceKeepsNewDraftWhenDeleteFails(t *testing.T) {
	c, srv := newTestClient(t)
	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), newDraft())
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}

	srv.FailExpunge = true
	created.SetSubject("Again")
	updated, err := c.UpdateMessageDraft(context.Background(), created)
	if err != nil {
		t.Fatalf("UpdateMessageDraft() error = %v, want the new key despite the failed delete", err)
	}
	if updated.Key().ID != "2" {
		t.Errorf("Key().ID = %q, want 2", updated.Key().ID)
	}
	if diff := cmp.Diff([]uint32{1, 2}, srv.UIDs("Drafts")); diff != "" {
		t.Errorf("Drafts mismatch (-want +got):\n%s", diff)
	}
}

func TestAppendWithoutUID(t *testing.T) {
	c, srv := newTestClient(t)
	srv.AddMessage("Drafts", plainMessage("older", "x"), `\Draft`)
	srv.NoAppendUID = true

	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), newDraft())
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}
	if created.Key().ID != "2" {
		t.Errorf("Key().ID = %q, want 2 resolved by Message-ID", created.Key().ID)
	}
}

func TestUpdateRequiresDraft(t *testing.T) {
	c, srv := newTestClient(t)
	uid := srv.AddMessage("INBOX", plainMessage("Hello", "hi"))
	key := testAccount.FolderKey("INBOX").MessageKey(formatUID(uid))

	d := mail.NewMessageItemDraft(key)
	if _, err := c.UpdateMessageDraft(context.Background(), d); !errors.Is(err, ErrNotADraft) {
		t.Errorf("UpdateMessageDraft() error = %v, want ErrNotADraft", err)
	}
	if _, err := c.GetMessageItemDraft(context.Background(), key); !errors.Is(err, ErrNotADraft) {
		t.Errorf("GetMessageItemDraft() error = %v, want ErrNotADraft", err)
	}
	if _, err := c.UpdateMessageDraft(context.Background(), newDraft()); err == nil {
		t.Error("updating a draft without key must fail")
	}
}

func TestSendMessageDraft(t *testing.T) {
	c, srv := newTestClient(t)
	original := srv.AddMessage("INBOX", plainMessage("Hello", "hi"), `\Seen`)

	d := newDraft()
	d.SetDraftInfo(mail.DraftInfoFor(testAccount.FolderKey("INBOX").MessageKey(formatUID(original))))
	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), d)
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}

	if err := c.SendMessageDraft(context.Background(), created.Key()); err != nil {
		t.Fatalf("SendMessageDraft() error = %v", err)
	}

	sent := srv.SentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sent))
	}
	if sent[0].From != "jane@example.com" {
		t.Errorf("From = %q", sent[0].From)
	}
	if strings.Contains(strings.ToUpper(string(sent[0].Raw)), strings.ToUpper(mail.DraftInfoHeader)) {
		t.Error("draft info header must be stripped before sending")
	}
	if !containsFlag(srv.Flags("INBOX", original), `\Answered`) {
		t.Errorf("original flags = %v, want \\Answered", srv.Flags("INBOX", original))
	}
}

func TestSendMessageDraftForeignInfo(t *testing.T) {
	c, srv := newTestClient(t)
	original := srv.AddMessage("INBOX", plainMessage("Hello", "hi"))

	d := newDraft()
	d.SetDraftInfo(mail.DraftInfo{MailAccountID: "other", MailFolderID: "INBOX", ID: formatUID(original)})
	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), d)
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}
	if err := c.SendMessageDraft(context.Background(), created.Key()); err != nil {
		t.Fatalf("SendMessageDraft() error = %v", err)
	}
	if containsFlag(srv.Flags("INBOX", original), `\Answered`) {
		t.Error("a foreign draft info must not flag anything")
	}
}

func TestSendMessageDraftRejectsNonDraft(t *testing.T) {
	c, srv := newTestClient(t)
	uid := srv.AddMessage("INBOX", plainMessage("Hello", "hi"))

	err := c.SendMessageDraft(context.Background(), testAccount.FolderKey("INBOX").MessageKey(formatUID(uid)))
	if !errors.Is(err, ErrNotADraft) {
		t.Errorf("SendMessageDraft() error = %v, want ErrNotADraft", err)
	}
	if len(srv.SentMessages()) != 0 {
		t.Error("nothing must be sent")
	}
}

func TestSendFailure(t *testing.T) {
	c, srv := newTestClient(t)
	created, err := c.CreateMessageDraft(context.Background(), testAccount.FolderKey("Drafts"), newDraft())
	if err != nil {
		t.Fatalf("CreateMessageDraft() error = %v", err)
	}
	srv.FailSend = true

	err = c.SendMessageDraft(context.Background(), created.Key())
	var clientErr *MailClientError
	if !errors.As(err, &clientErr) || !errors.Is(err, memtransport.ErrInjected) {
		t.Errorf("error = %v, want *MailClientError wrapping the send failure", err)
	}
}

func TestDeleteSetFlagsAndMove(t *testing.T) {
	c, srv := newTestClient(t)
	inbox := testAccount.FolderKey("INBOX")
	first := srv.AddMessage("INBOX", plainMessage("one", "x"))
	second := srv.AddMessage("INBOX", plainMessage("two", "x"), `\Seen`)

	flags := mail.NewFlagList(
		mail.FlagSetting{Flag: mail.FlagFlagged, Value: true},
		mail.FlagSetting{Flag: mail.FlagSeen, Value: false},
	)
	if err := c.SetFlags(context.Background(), inbox.MessageKey(formatUID(second)), flags); err != nil {
		t.Fatalf("SetFlags() error = %v", err)
	}
	if diff := cmp.Diff([]string{`\Flagged`}, srv.Flags("INBOX", second)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}

	moved, err := c.MoveMessage(context.Background(), inbox.MessageKey(formatUID(second)), testAccount.FolderKey("Archive/2024"))
	if err != nil {
		t.Fatalf("MoveMessage() error = %v", err)
	}
	if moved != testAccount.FolderKey("Archive/2024").MessageKey("1") {
		t.Errorf("MoveMessage() = %v", moved)
	}

	if err := c.DeleteMessage(context.Background(), inbox.MessageKey(formatUID(first))); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if len(srv.UIDs("INBOX")) != 0 {
		t.Errorf("INBOX = %v, want empty", srv.UIDs("INBOX"))
	}
	if err := c.DeleteMessage(context.Background(), inbox.MessageKey(formatUID(first))); !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("second DeleteMessage() error = %v, want ErrMessageNotFound", err)
	}
}

func TestAttachments(t *testing.T) {
	c, srv := newTestClient(t)
	created, err := c.CreateMessageBodyDraft(context.Background(), testAccount.FolderKey("Drafts"), &mail.MessageBodyDraft{
		TextPlain: mail.NewMessagePart("see attached", mail.DefaultCharset, mail.MimeTypeTextPlain),
	})
	if err != nil {
		t.Fatalf("CreateMessageBodyDraft() error = %v", err)
	}

	notes := &mail.FileAttachment{Text: "notes.txt", Type: "text/plain", Size: 5, Content: "aGVsbG8=", Encoding: "base64"}
	image := &mail.FileAttachment{Text: "dot.png", Type: "image/png", Size: 3, Content: "AAEC", Encoding: "base64"}

	added, err := c.CreateAttachments(context.Background(), created.Key, []*mail.FileAttachment{notes, image})
	if err != nil {
		t.Fatalf("CreateAttachments() error = %v", err)
	}
	notesID, _ := mail.GenerateAttachmentID("notes.txt", "aGVsbG8=", "base64")
	if added[0].Key.ID != notesID {
		t.Errorf("attachment id = %q, want %q", added[0].Key.ID, notesID)
	}
	msgKey := added[0].Key.MessageKey()
	if msgKey == created.Key {
		t.Fatal("adding attachments must replace the draft")
	}

	listed, err := c.FileAttachments(context.Background(), msgKey)
	if err != nil {
		t.Fatalf("FileAttachments() error = %v", err)
	}
	var names []string
	for _, a := range listed {
		names = append(names, a.Text)
	}
	if diff := cmp.Diff([]string{"notes.txt", "dot.png"}, names); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}
	if listed[1].Content != "AAEC" || listed[1].Key != added[1].Key {
		t.Errorf("dot.png = %+v, want the added content and key", listed[1])
	}

	// adding the same file again is a no-op on the content
	again, err := c.CreateAttachments(context.Background(), msgKey, []*mail.FileAttachment{image})
	if err != nil {
		t.Fatalf("CreateAttachments() error = %v", err)
	}
	msgKey = again[0].Key.MessageKey()
	if listed, _ = c.FileAttachments(context.Background(), msgKey); len(listed) != 2 {
		t.Errorf("len(attachments) = %d, want 2", len(listed))
	}

	newKey, err := c.DeleteAttachment(context.Background(), again[0].Key)
	if err != nil {
		t.Fatalf("DeleteAttachment() error = %v", err)
	}
	listed, err = c.FileAttachments(context.Background(), newKey)
	if err != nil {
		t.Fatalf("FileAttachments() error = %v", err)
	}
	if len(listed) != 1 || listed[0].Text != "notes.txt" {
		t.Errorf("attachments after delete = %v", listed)
	}
	if len(srv.UIDs("Drafts")) != 1 {
		t.Errorf("Drafts = %v, want a single draft", srv.UIDs("Drafts"))
	}

	if _, err := c.DeleteAttachment(context.Background(), newKey.AttachmentKey("missing")); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("DeleteAttachment() error = %v, want ErrAttachmentNotFound", err)
	}

	bad := &mail.FileAttachment{Text: "x", Content: "plain", Encoding: "7bit"}
	_, err = c.CreateAttachments(context.Background(), newKey, []*mail.FileAttachment{bad})
	if !errors.Is(err, mail.ErrAttachmentNotBase64) {
		t.Errorf("CreateAttachments() error = %v, want ErrAttachmentNotBase64", err)
	}
}

func containsFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}
