package mail

import "strings"

// MailAccount holds the identity and server settings of one account.
// Passwords are never rendered.
type MailAccount struct {
	ID      string
	Name    string
	From    Address
	ReplyTo Address

	InboxType     string
	InboxAddress  string
	InboxPort     int
	InboxUser     string
	InboxPassword string
	InboxSSL      bool

	OutboxAddress  string
	OutboxPort     int
	OutboxUser     string
	OutboxPassword string
	OutboxSecure   string

	// Subscriptions lists the folders exposed by the gateway. Empty means
	// all folders.
	Subscriptions []string
}

func (a *MailAccount) Key() MailAccountKey { return MailAccountKey{ID: a.ID} }

// FolderKey returns the key of folder id of this account.
func (a *MailAccount) FolderKey(id string) FolderKey {
	return FolderKey{MailAccountID: a.ID, ID: id}
}

// Subscribed reports whether folder id is within the account's
// subscriptions. A folder is subscribed if it equals a subscription or is
// nested below one.
func (a *MailAccount) Subscribed(id, delimiter string) bool {
	if len(a.Subscriptions) == 0 {
		return true
	}
	for _, s := range a.Subscriptions {
		if id == s {
			return true
		}
		if delimiter != "" && strings.HasPrefix(id, s+delimiter) {
			return true
		}
	}
	return false
}

func (a *MailAccount) ResourceType() string { return "MailAccount" }
func (a *MailAccount) ResourceID() string   { return a.ID }

func (a *MailAccount) ResourceAttributes() map[string]any {
	subs := a.Subscriptions
	if subs == nil {
		subs = []string{}
	}
	return map[string]any{
		"name":           a.Name,
		"from":           a.From,
		"replyTo":        a.ReplyTo,
		"inbox_type":     a.InboxType,
		"inbox_address":  a.InboxAddress,
		"inbox_port":     a.InboxPort,
		"inbox_user":     a.InboxUser,
		"inbox_ssl":      a.InboxSSL,
		"outbox_address": a.OutboxAddress,
		"outbox_port":    a.OutboxPort,
		"outbox_user":    a.OutboxUser,
		"outbox_secure":  a.OutboxSecure,
		"subscriptions":  subs,
	}
}
