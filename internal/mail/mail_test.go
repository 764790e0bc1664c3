package mail

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestKeys(t *testing.T) {
	folder := NewFolderKey("dev", "INBOX")
	msg := folder.MessageKey("123")

	if msg != NewMessageKey("dev", "INBOX", "123") {
		t.Errorf("MessageKey() = %v", msg)
	}
	if msg.FolderKey() != folder {
		t.Errorf("FolderKey() = %v, want %v", msg.FolderKey(), folder)
	}
	att := msg.AttachmentKey("abc")
	if att.MessageKey() != msg {
		t.Errorf("AttachmentKey().MessageKey() = %v, want %v", att.MessageKey(), msg)
	}

	tests := []struct {
		name string
		err  error
	}{
		{"empty account", MailAccountKey{}.Validate()},
		{"empty folder", FolderKey{MailAccountID: "dev"}.Validate()},
		{"empty message id", NewMessageKey("dev", "INBOX", "").Validate()},
		{"empty attachment id", msg.AttachmentKey("").Validate()},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, ErrInvalidKey) {
			t.Errorf("%s: error = %v, want ErrInvalidKey", tt.name, tt.err)
		}
	}
	if err := msg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestAddressesAreCopied(t *testing.T) {
	list := AddressList{{Name: "A", Address: "a@example.com"}}
	item := NewMessageItem(NewMessageKey("dev", "INBOX", "1"))
	item.SetTo(list)

	list[0].Address = "changed@example.com"
	if got := item.To()[0].Address; got != "a@example.com" {
		t.Errorf("To()[0].Address = %q, want a@example.com", got)
	}

	got := item.To()
	got[0].Name = "changed"
	if item.To()[0].Name != "A" {
		t.Error("To() must return a copy")
	}
}

func TestParseAddressList(t *testing.T) {
	got, err := ParseAddressList(`"Jane Doe" <jane@example.com>, bob@example.com`)
	if err != nil {
		t.Fatalf("ParseAddressList() error = %v", err)
	}
	want := AddressList{
		{Name: "Jane Doe", Address: "jane@example.com"},
		{Address: "bob@example.com"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAddressList() mismatch (-want +got):\n%s", diff)
	}

	empty, err := ParseAddressList("  ")
	if err != nil || empty != nil {
		t.Errorf("ParseAddressList(blank) = %v, %v, want nil, nil", empty, err)
	}
}

func TestModifiedTracking(t *testing.T) {
	item := NewMessageItem(NewMessageKey("dev", "INBOX", "1"))
	item.SetSubject("hello")
	item.SetSeen(true)
	item.SetSubject("again")

	want := []Field{FieldSubject, FieldSeen}
	if diff := cmp.Diff(want, item.Modified()); diff != "" {
		t.Errorf("Modified() mismatch (-want +got):\n%s", diff)
	}
	if !item.IsModified(FieldSeen) || item.IsModified(FieldDate) {
		t.Error("IsModified() reports wrong fields")
	}

	item.ResetModified()
	if len(item.Modified()) != 0 {
		t.Errorf("Modified() after reset = %v", item.Modified())
	}
	if item.Subject() != "again" {
		t.Errorf("Subject() = %q, want again", item.Subject())
	}
}

func TestSet(t *testing.T) {
	draft := NewMessageItemDraft(MessageKey{})

	tests := []struct {
		name    string
		field   Field
		value   any
		wantErr any
	}{
		{"subject", FieldSubject, "hi", nil},
		{"date", FieldDate, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), nil},
		{"to", FieldTo, AddressList{{Address: "a@example.com"}}, nil},
		{"from", FieldFrom, Address{Address: "me@example.com"}, nil},
		{"flag", FieldFlagged, true, nil},
		{"size", FieldSize, 42, nil},
		{"draft info", FieldDraftInfo, DraftInfo{MailAccountID: "dev", MailFolderID: "INBOX", ID: "9"}, nil},
		{"unknown", Field("body"), "x", &UnknownFieldError{}},
		{"wrong type", FieldSeen, "yes", &FieldTypeError{}},
		{"wrong address type", FieldTo, "a@example.com", &FieldTypeError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := draft.Set(tt.field, tt.value)
			switch tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("Set() error = %v", err)
				}
				got, err := draft.Get(tt.field)
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if diff := cmp.Diff(tt.value, got); diff != "" {
					t.Errorf("Get() mismatch (-want +got):\n%s", diff)
				}
			case *UnknownFieldError:
				var target *UnknownFieldError
				if !errors.As(err, &target) {
					t.Errorf("Set() error = %v, want *UnknownFieldError", err)
				}
			case *FieldTypeError:
				var target *FieldTypeError
				if !errors.As(err, &target) {
					t.Errorf("Set() error = %v, want *FieldTypeError", err)
				}
			}
		})
	}
}

func TestDraftWithKey(t *testing.T) {
	oldKey := NewMessageKey("dev", "Drafts", "1")
	newKey := NewMessageKey("dev", "Drafts", "2")

	draft := NewMessageItemDraft(oldKey)
	draft.SetSubject("subject")
	draft.SetTo(AddressList{{Address: "a@example.com"}})
	draft.SetDraftInfo(DraftInfo{MailAccountID: "dev", MailFolderID: "INBOX", ID: "7"})

	moved := draft.WithKey(newKey)
	if moved.Key() != newKey || draft.Key() != oldKey {
		t.Fatalf("keys = %v, %v, want %v, %v", moved.Key(), draft.Key(), newKey, oldKey)
	}
	if moved.Subject() != "subject" {
		t.Errorf("Subject() = %q, want subject", moved.Subject())
	}
	if diff := cmp.Diff(draft.To(), moved.To()); diff != "" {
		t.Errorf("To() mismatch (-want +got):\n%s", diff)
	}
	info, ok := moved.DraftInfo()
	if !ok || info.ID != "7" {
		t.Errorf("DraftInfo() = %v, %v", info, ok)
	}

	moved.SetSubject("changed")
	if draft.Subject() != "subject" {
		t.Error("WithKey() must not share state with the original")
	}
}

func TestDraftInfo(t *testing.T) {
	info := DraftInfo{MailAccountID: "dev", MailFolderID: "INBOX", ID: "123"}
	encoded := info.Encode()
	if encoded != "WyJkZXYiLCJJTkJPWCIsIjEyMyJd" {
		t.Errorf("Encode() = %q", encoded)
	}

	decoded, err := DecodeDraftInfo(encoded)
	if err != nil {
		t.Fatalf("DecodeDraftInfo() error = %v", err)
	}
	if decoded != info {
		t.Errorf("DecodeDraftInfo() = %v, want %v", decoded, info)
	}

	for _, bad := range []string{"!!", "bm90IGpzb24=", "WyJhIl0="} {
		if _, err := DecodeDraftInfo(bad); err == nil {
			t.Errorf("DecodeDraftInfo(%q) should fail", bad)
		}
	}
}

func TestFlagList(t *testing.T) {
	flags := NewFlagList(
		FlagSetting{Flag: FlagSeen, Value: true},
		FlagSetting{Flag: FlagFlagged, Value: false},
	)
	flags.Set(FlagDraft, true)
	flags.Set(FlagSeen, false)

	add, remove := flags.Resolve()
	if diff := cmp.Diff([]string{`\Draft`}, add); diff != "" {
		t.Errorf("add mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`\Seen`, `\Flagged`}, remove); diff != "" {
		t.Errorf("remove mismatch (-want +got):\n%s", diff)
	}

	item := NewMessageItem(MessageKey{})
	item.SetSubject("x")
	item.SetFlagged(true)
	item.SetSeen(false)
	fromItem := FlagListFromItem(item)
	if fromItem.Len() != 2 {
		t.Errorf("FlagListFromItem().Len() = %d, want 2", fromItem.Len())
	}
}

func TestGenerateAttachmentID(t *testing.T) {
	first, err := GenerateAttachmentID("file.txt", "aGVsbG8=", "base64")
	if err != nil {
		t.Fatalf("GenerateAttachmentID() error = %v", err)
	}
	second, _ := GenerateAttachmentID("file.txt", "aGVsbG8=", "BASE64")
	if first != second {
		t.Errorf("ids differ: %q, %q", first, second)
	}
	other, _ := GenerateAttachmentID("other.txt", "aGVsbG8=", "base64")
	if other == first {
		t.Error("different names must yield different ids")
	}

	_, err = GenerateAttachmentID("file.txt", "hello", "quoted-printable")
	if !errors.Is(err, ErrAttachmentNotBase64) {
		t.Errorf("error = %v, want ErrAttachmentNotBase64", err)
	}
}

func TestFolderSelectable(t *testing.T) {
	tests := []struct {
		attrs []string
		want  bool
	}{
		{nil, true},
		{[]string{`\HasChildren`}, true},
		{[]string{`\NoSelect`}, false},
		{[]string{`\NonExistent`}, false},
	}
	for _, tt := range tests {
		f := &MailFolder{Attributes: tt.attrs}
		if got := f.Selectable(); got != tt.want {
			t.Errorf("Selectable(%v) = %v, want %v", tt.attrs, got, tt.want)
		}
	}
}

func TestAccountSubscribed(t *testing.T) {
	acc := &MailAccount{Subscriptions: []string{"INBOX"}}
	tests := []struct {
		id   string
		want bool
	}{
		{"INBOX", true},
		{"INBOX.Sub", true},
		{"INBOXES", false},
		{"Sent", false},
	}
	for _, tt := range tests {
		if got := acc.Subscribed(tt.id, "."); got != tt.want {
			t.Errorf("Subscribed(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
	if !(&MailAccount{}).Subscribed("Anything", "/") {
		t.Error("an account without subscriptions exposes every folder")
	}
}
