// Package mail holds the domain model of the gateway: compound keys,
// addresses, flags, message items, drafts, bodies, attachments, folders and
// accounts.
package mail

import (
	"errors"
	"fmt"
)

// ErrInvalidKey is wrapped when a key has an empty component.
var ErrInvalidKey = errors.New("invalid key")

// MailAccountKey addresses a mail account.
type MailAccountKey struct {
	ID string `json:"id"`
}

func (k MailAccountKey) Validate() error {
	if k.ID == "" {
		return fmt.Errorf("%w: empty mail account id", ErrInvalidKey)
	}
	return nil
}

func (k MailAccountKey) String() string { return k.ID }

// FolderKey addresses a mailbox of an account.
type FolderKey struct {
	MailAccountID string `json:"mailAccountId"`
	ID            string `json:"id"`
}

func NewFolderKey(accountID, folderID string) FolderKey {
	return FolderKey{MailAccountID: accountID, ID: folderID}
}

func (k FolderKey) Validate() error {
	if k.MailAccountID == "" || k.ID == "" {
		return fmt.Errorf("%w: folder key %q", ErrInvalidKey, k.String())
	}
	return nil
}

// MessageKey returns the key of message id inside this folder.
func (k FolderKey) MessageKey(id string) MessageKey {
	return MessageKey{MailAccountID: k.MailAccountID, MailFolderID: k.ID, ID: id}
}

func (k FolderKey) IsZero() bool { return k == FolderKey{} }

func (k FolderKey) String() string { return k.MailAccountID + "/" + k.ID }

// MessageKey addresses a message by its UID inside a folder.
type MessageKey struct {
	MailAccountID string `json:"mailAccountId"`
	MailFolderID  string `json:"mailFolderId"`
	ID            string `json:"id"`
}

func NewMessageKey(accountID, folderID, id string) MessageKey {
	return MessageKey{MailAccountID: accountID, MailFolderID: folderID, ID: id}
}

func (k MessageKey) Validate() error {
	if k.MailAccountID == "" || k.MailFolderID == "" || k.ID == "" {
		return fmt.Errorf("%w: message key %q", ErrInvalidKey, k.String())
	}
	return nil
}

func (k MessageKey) FolderKey() FolderKey {
	return FolderKey{MailAccountID: k.MailAccountID, ID: k.MailFolderID}
}

// AttachmentKey returns the key of attachment id of this message.
func (k MessageKey) AttachmentKey(id string) AttachmentKey {
	return AttachmentKey{
		MailAccountID:       k.MailAccountID,
		MailFolderID:        k.MailFolderID,
		ParentMessageItemID: k.ID,
		ID:                  id,
	}
}

func (k MessageKey) IsZero() bool { return k == MessageKey{} }

func (k MessageKey) String() string {
	return k.MailAccountID + "/" + k.MailFolderID + "/" + k.ID
}

// AttachmentKey addresses an attachment of a message.
type AttachmentKey struct {
	MailAccountID       string `json:"mailAccountId"`
	MailFolderID        string `json:"mailFolderId"`
	ParentMessageItemID string `json:"parentMessageItemId"`
	ID                  string `json:"id"`
}

func (k AttachmentKey) Validate() error {
	if k.MailAccountID == "" || k.MailFolderID == "" || k.ParentMessageItemID == "" || k.ID == "" {
		return fmt.Errorf("%w: attachment key %q", ErrInvalidKey, k.String())
	}
	return nil
}

// MessageKey returns the key of the message the attachment belongs to.
func (k AttachmentKey) MessageKey() MessageKey {
	return MessageKey{MailAccountID: k.MailAccountID, MailFolderID: k.MailFolderID, ID: k.ParentMessageItemID}
}

func (k AttachmentKey) String() string {
	return k.MailAccountID + "/" + k.MailFolderID + "/" + k.ParentMessageItemID + "/" + k.ID
}
