package mail

import "strings"

// FolderType classifies a mailbox.
type FolderType string

const (
	FolderTypeInbox  FolderType = "INBOX"
	FolderTypeDraft  FolderType = "DRAFT"
	FolderTypeSent   FolderType = "SENT"
	FolderTypeTrash  FolderType = "TRASH"
	FolderTypeJunk   FolderType = "JUNK"
	FolderTypeFolder FolderType = "FOLDER"
)

// Mailbox attributes the folder model cares about.
const (
	AttrNoSelect    = `\Noselect`
	AttrNonExistent = `\NonExistent`
	AttrDrafts      = `\Drafts`
	AttrSent        = `\Sent`
	AttrTrash       = `\Trash`
	AttrJunk        = `\Junk`
)

// MailFolder is a mailbox of an account. Children are only populated when
// folders are assembled into a tree.
type MailFolder struct {
	Key            FolderKey
	Name           string
	Delimiter      string
	Attributes     []string
	FolderType     FolderType
	UnreadMessages int
	TotalMessages  int
	Children       []*MailFolder
}

// Selectable reports whether the folder can hold messages.
func (f *MailFolder) Selectable() bool {
	for _, a := range f.Attributes {
		if strings.EqualFold(a, AttrNoSelect) || strings.EqualFold(a, AttrNonExistent) {
			return false
		}
	}
	return true
}

// HasAttribute reports whether attr is set, ignoring case.
func (f *MailFolder) HasAttribute(attr string) bool {
	for _, a := range f.Attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}

func (f *MailFolder) ResourceType() string { return "MailFolder" }
func (f *MailFolder) ResourceID() string   { return f.Key.ID }

func (f *MailFolder) ResourceAttributes() map[string]any {
	children := make([]map[string]any, 0, len(f.Children))
	for _, c := range f.Children {
		attrs := c.ResourceAttributes()
		attrs["id"] = c.Key.ID
		children = append(children, attrs)
	}
	return map[string]any{
		"name":           f.Name,
		"data":           children,
		"folderType":     f.FolderType,
		"unreadMessages": f.UnreadMessages,
		"totalMessages":  f.TotalMessages,
		"mailAccountId":  f.Key.MailAccountID,
	}
}
