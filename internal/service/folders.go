package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/mail"
)

// well known folder names used when the server sends no SPECIAL-USE
// attributes
var folderNames = map[string]mail.FolderType{
	"drafts":           mail.FolderTypeDraft,
	"draft":            mail.FolderTypeDraft,
	"sent":             mail.FolderTypeSent,
	"sent items":       mail.FolderTypeSent,
	"sent messages":    mail.FolderTypeSent,
	"trash":            mail.FolderTypeTrash,
	"deleted items":    mail.FolderTypeTrash,
	"deleted messages": mail.FolderTypeTrash,
	"junk":             mail.FolderTypeJunk,
	"spam":             mail.FolderTypeJunk,
}

var folderAttributes = []struct {
	attr string
	typ  mail.FolderType
}{
	{mail.AttrDrafts, mail.FolderTypeDraft},
	{mail.AttrSent, mail.FolderTypeSent},
	{mail.AttrTrash, mail.FolderTypeTrash},
	{mail.AttrJunk, mail.FolderTypeJunk},
}

type MailFolderService struct {
	accounts *Accounts
	logger   *zap.Logger
}

func NewMailFolderService(accounts *Accounts, logger *zap.Logger) *MailFolderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailFolderService{accounts: accounts, logger: logger.Named("folders")}
}

// FolderTree lists the folders of an account nested by their hierarchy
// delimiter. The result holds the root folders.
func (s *MailFolderService) FolderTree(ctx context.Context, accountID string, fields []string) ([]*mail.MailFolder, error) {
	var folders []*mail.MailFolder
	err := s.accounts.With(ctx, accountID, func(c MailClient) error {
		var err error
		folders, err = c.ListMailFolders(ctx, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	tree := BuildFolderTree(folders)
	s.logger.Debug("built folder tree",
		zap.String("account", accountID),
		zap.Int("folders", len(folders)),
		zap.Int("roots", len(tree)))
	return tree, nil
}

// BuildFolderTree nests folders below their parents. Parents missing from
// the list are synthesized as non-selectable folders. Order follows the
// first appearance of each folder.
func BuildFolderTree(folders []*mail.MailFolder) []*mail.MailFolder {
	byID := make(map[string]*mail.MailFolder, len(folders))
	for _, f := range folders {
		byID[f.Key.ID] = f
	}

	var roots []*mail.MailFolder
	placed := make(map[string]bool)

	var place func(f *mail.MailFolder)
	place = func(f *mail.MailFolder) {
		if placed[f.Key.ID] {
			return
		}
		placed[f.Key.ID] = true

		parentID, ok := parentOf(f.Key.ID, f.Delimiter)
		if !ok {
			f.FolderType = folderType(f, true)
			roots = append(roots, f)
			return
		}
		parent, exists := byID[parentID]
		if !exists {
			parent = &mail.MailFolder{
				Key:        mail.NewFolderKey(f.Key.MailAccountID, parentID),
				Name:       leaf(parentID, f.Delimiter),
				Delimiter:  f.Delimiter,
				Attributes: []string{mail.AttrNoSelect},
			}
			byID[parentID] = parent
		}
		place(parent)
		f.FolderType = folderType(f, parent.FolderType == mail.FolderTypeInbox)
		parent.Children = append(parent.Children, f)
	}

	for _, f := range folders {
		place(f)
	}
	return roots
}

// folderType prefers SPECIAL-USE attributes. Names are only considered at
// the top level and directly below the inbox.
func folderType(f *mail.MailFolder, topLevel bool) mail.FolderType {
	if strings.EqualFold(f.Key.ID, "INBOX") {
		return mail.FolderTypeInbox
	}
	for _, fa := range folderAttributes {
		if f.HasAttribute(fa.attr) {
			return fa.typ
		}
	}
	if topLevel {
		if t, ok := folderNames[strings.ToLower(f.Name)]; ok {
			return t
		}
	}
	return mail.FolderTypeFolder
}

func parentOf(id, delimiter string) (string, bool) {
	if delimiter == "" {
		return "", false
	}
	i := strings.LastIndex(id, delimiter)
	if i <= 0 {
		return "", false
	}
	return id[:i], true
}

func leaf(id, delimiter string) string {
	if delimiter == "" {
		return id
	}
	return id[strings.LastIndex(id, delimiter)+len(delimiter):]
}
