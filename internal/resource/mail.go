package resource

// Type names of the mail resources.
const (
	TypeMailAccount = "MailAccount"
	TypeMailFolder  = "MailFolder"
	TypeMessageItem = "MessageItem"
	TypeMessageBody = "MessageBody"
)

// The descriptions are stateless value types so the cyclic relationship graph
// (MessageItem <-> MessageBody) does not form a package initialization cycle.

type MailAccount struct{}

func (MailAccount) Type() string { return TypeMailAccount }

func (MailAccount) Fields() []string {
	return []string{
		"name",
		"from",
		"replyTo",
		"inbox_type",
		"inbox_address",
		"inbox_port",
		"inbox_user",
		"inbox_ssl",
		"outbox_address",
		"outbox_port",
		"outbox_user",
		"outbox_secure",
		"subscriptions",
	}
}

func (d MailAccount) DefaultFields() []string {
	fields := d.Fields()
	return fields[:len(fields)-1]
}

func (MailAccount) Relationships() []Description { return nil }

type MailFolder struct{}

func (MailFolder) Type() string { return TypeMailFolder }

func (MailFolder) Fields() []string {
	return []string{"name", "data", "folderType", "unreadMessages", "totalMessages"}
}

func (d MailFolder) DefaultFields() []string { return d.Fields() }

func (MailFolder) Relationships() []Description {
	return []Description{MailAccount{}}
}

type MessageItem struct{}

func (MessageItem) Type() string { return TypeMessageItem }

func (MessageItem) Fields() []string {
	return []string{
		"from",
		"to",
		"cc",
		"bcc",
		"replyTo",
		"subject",
		"date",
		"size",
		"seen",
		"answered",
		"draft",
		"flagged",
		"recent",
		"hasAttachments",
		"charset",
		"messageId",
		"inReplyTo",
		"references",
		"draftInfo",
		"previewText",
	}
}

func (MessageItem) DefaultFields() []string {
	return []string{
		"from",
		"to",
		"subject",
		"date",
		"size",
		"seen",
		"answered",
		"draft",
		"flagged",
		"recent",
		"hasAttachments",
		"charset",
		"messageId",
	}
}

func (MessageItem) Relationships() []Description {
	return []Description{MailFolder{}, MessageBody{}}
}

type MessageBody struct{}

func (MessageBody) Type() string { return TypeMessageBody }

func (MessageBody) Fields() []string { return []string{"textPlain", "textHtml"} }

func (d MessageBody) DefaultFields() []string { return d.Fields() }

func (MessageBody) Relationships() []Description {
	return []Description{MailFolder{}, MessageItem{}}
}

// Static is a Description assembled from plain values, for descriptions that
// are configured rather than compiled in.
type Static struct {
	Name      string
	FieldList []string
	Defaults  []string
	Related   []Description
}

func (s *Static) Type() string                 { return s.Name }
func (s *Static) Fields() []string             { return s.FieldList }
func (s *Static) DefaultFields() []string      { return s.Defaults }
func (s *Static) Relationships() []Description { return s.Related }
