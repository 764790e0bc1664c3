package imap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/go-cmp/cmp"
)

func TestNewClient(t *testing.T) {
	cfg := Config{Host: "127.0.0.1", Port: 1143, User: "test@example.com"}

	client := NewClient(cfg, nil, nil)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.config != cfg {
		t.Error("client config not set correctly")
	}
	if client.client != nil {
		t.Error("internal client should be nil before Connect()")
	}
}

func TestDialOptions(t *testing.T) {
	opts := dialOptions(Config{Host: "imap.example.com", InsecureSkipVerify: true})

	if opts.TLSConfig.ServerName != "imap.example.com" || !opts.TLSConfig.InsecureSkipVerify {
		t.Errorf("TLSConfig = %+v", opts.TLSConfig)
	}

	tests := []struct {
		encoded string
		want    string
	}{
		{"=?windows-1252?q?Gr=FC=DFe?=", "Grüße"},
		{"=?ISO-8859-15?q?=A4uro?=", "€uro"},
		{"=?KOI8-R?B?8NLJ18XU?=", "Привет"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.encoded, func(t *testing.T) {
			got, err := opts.WordDecoder.DecodeHeader(tt.encoded)
			if err != nil {
				t.Fatalf("DecodeHeader() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DecodeHeader(%q) = %q, want %q", tt.encoded, got, tt.want)
			}
		})
	}
}

func TestClientCloseWithoutConnect(t *testing.T) {
	client := NewClient(Config{}, nil, nil)

	// Close should not panic when not connected
	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"list", func() error { _, err := client.ListMailboxes(ctx); return err }},
		{"status", func() error { _, err := client.Status(ctx, "INBOX"); return err }},
		{"search", func() error { _, err := client.Search(ctx, "INBOX", nil, nil); return err }},
		{"fetch", func() error { _, err := client.Fetch(ctx, "INBOX", []uint32{1}, FetchOptions{}); return err }},
		{"append", func() error { _, err := client.Append(ctx, "INBOX", []byte("x"), nil); return err }},
		{"store", func() error { return client.Store(ctx, "INBOX", []uint32{1}, []string{`\Seen`}, nil) }},
		{"expunge", func() error { return client.Expunge(ctx, "INBOX", []uint32{1}) }},
		{"move", func() error { _, err := client.Move(ctx, "INBOX", []uint32{1}, "Trash"); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrNotConnected) {
				t.Errorf("error = %v, want ErrNotConnected", err)
			}
		})
	}
}

func TestCanceledContext(t *testing.T) {
	client := NewClient(Config{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.ListMailboxes(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if err := client.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestPartPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
		wantErr  bool
	}{
		{"empty string", "", nil, false},
		{"single number", "1", []int{1}, false},
		{"two numbers", "1.2", []int{1, 2}, false},
		{"three numbers", "1.2.3", []int{1, 2, 3}, false},
		{"larger numbers", "10.20.30", []int{10, 20, 30}, false},
		{"zero", "0", nil, true},
		{"letters", "1.a", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePartPath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePartPath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("ParsePartPath(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
			if !tt.wantErr && tt.input != "" {
				if back := FormatPartPath(got); back != tt.input {
					t.Errorf("FormatPartPath() = %q, want %q", back, tt.input)
				}
			}
		})
	}

	if got := FormatPartPath(nil); got != "1" {
		t.Errorf("FormatPartPath(nil) = %q, want 1", got)
	}
}

func TestFlattenStructure(t *testing.T) {
	bs := &imap.BodyStructureMultiPart{
		Subtype: "mixed",
		Children: []imap.BodyStructure{
			&imap.BodyStructureMultiPart{
				Subtype: "alternative",
				Children: []imap.BodyStructure{
					&imap.BodyStructureSinglePart{
						Type: "TEXT", Subtype: "PLAIN",
						Params:   map[string]string{"charset": "ISO-8859-1"},
						Encoding: "QUOTED-PRINTABLE", Size: 10,
					},
					&imap.BodyStructureSinglePart{
						Type: "text", Subtype: "html",
						Params:   map[string]string{"charset": "utf-8"},
						Encoding: "base64", Size: 20,
					},
				},
			},
			&imap.BodyStructureSinglePart{
				Type: "application", Subtype: "pdf",
				Encoding: "base64", Size: 30,
				Extended: &imap.BodyStructureSinglePartExt{
					Disposition: &imap.BodyStructureDisposition{
						Value:  "ATTACHMENT",
						Params: map[string]string{"filename": "report.pdf"},
					},
				},
			},
		},
	}

	parts := FlattenStructure(bs)
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3", len(parts))
	}

	tests := []struct {
		path       string
		mimeType   string
		charset    string
		encoding   string
		attachment bool
		filename   string
	}{
		{"1.1", "text/plain", "ISO-8859-1", "quoted-printable", false, ""},
		{"1.2", "text/html", "utf-8", "base64", false, ""},
		{"2", "application/pdf", "", "base64", true, "report.pdf"},
	}

	for i, tt := range tests {
		p := parts[i]
		if p.Path != tt.path {
			t.Errorf("parts[%d].Path = %q, want %q", i, p.Path, tt.path)
		}
		if p.MimeType() != tt.mimeType {
			t.Errorf("parts[%d].MimeType() = %q, want %q", i, p.MimeType(), tt.mimeType)
		}
		if p.Charset() != tt.charset {
			t.Errorf("parts[%d].Charset() = %q, want %q", i, p.Charset(), tt.charset)
		}
		if p.Encoding != tt.encoding {
			t.Errorf("parts[%d].Encoding = %q, want %q", i, p.Encoding, tt.encoding)
		}
		if p.IsAttachment() != tt.attachment {
			t.Errorf("parts[%d].IsAttachment() = %v, want %v", i, p.IsAttachment(), tt.attachment)
		}
		if p.Filename != tt.filename {
			t.Errorf("parts[%d].Filename = %q, want %q", i, p.Filename, tt.filename)
		}
	}
}

func TestFlattenSinglePart(t *testing.T) {
	parts := FlattenStructure(&imap.BodyStructureSinglePart{Type: "text", Subtype: "plain", Encoding: "7bit"})
	if len(parts) != 1 || parts[0].Path != "1" {
		t.Errorf("parts = %+v, want a single part at path 1", parts)
	}
}

func TestMailboxError(t *testing.T) {
	nonExistent := &imap.Error{
		Type: imap.StatusResponseTypeNo,
		Code: imap.ResponseCodeNonExistent,
		Text: "no such mailbox",
	}
	err := mailboxError("failed to select mailbox", "Nope", nonExistent)
	if !errors.Is(err, ErrMailboxNotFound) {
		t.Errorf("error = %v, want ErrMailboxNotFound", err)
	}
	var imapErr *imap.Error
	if !errors.As(err, &imapErr) {
		t.Error("the server error must stay reachable")
	}

	other := mailboxError("failed to select mailbox", "INBOX", errors.New("connection reset"))
	if errors.Is(other, ErrMailboxNotFound) {
		t.Errorf("error = %v, must not be ErrMailboxNotFound", other)
	}
}

func TestConvertEnvelope(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env := convertEnvelope(&imap.Envelope{
		Date:    date,
		Subject: "Hello",
		From:    []imap.Address{{Name: "Jane", Mailbox: "jane", Host: "example.com"}},
		To: []imap.Address{
			{Mailbox: "team"},
			{Mailbox: "bob", Host: "example.com"},
			{},
		},
		MessageID: "abc@example.com",
	})

	want := &Envelope{
		Date:      date,
		Subject:   "Hello",
		From:      []Address{{Name: "Jane", Address: "jane@example.com"}},
		To:        []Address{{Address: "bob@example.com"}},
		MessageID: "abc@example.com",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("convertEnvelope() mismatch (-want +got):\n%s", diff)
	}
}

func TestUIDNums(t *testing.T) {
	got := uidNums(imap.UIDSetNum(3, 4, 9))
	if diff := cmp.Diff([]uint32{3, 4, 9}, got); diff != "" {
		t.Errorf("uidNums() mismatch (-want +got):\n%s", diff)
	}
	if uidNums(imap.SeqSetNum(1)) != nil {
		t.Error("sequence sets carry no UIDs")
	}
}
