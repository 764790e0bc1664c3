package mail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// DraftInfoHeader carries the DraftInfo of a reply draft until it is sent.
const DraftInfoHeader = "X-CN-DRAFT-INFO"

// DraftInfo points back at the message a draft replies to.
type DraftInfo struct {
	MailAccountID string
	MailFolderID  string
	ID            string
}

// DraftInfoFor returns the DraftInfo referencing key.
func DraftInfoFor(key MessageKey) DraftInfo {
	return DraftInfo{MailAccountID: key.MailAccountID, MailFolderID: key.MailFolderID, ID: key.ID}
}

func (d DraftInfo) MessageKey() MessageKey {
	return MessageKey{MailAccountID: d.MailAccountID, MailFolderID: d.MailFolderID, ID: d.ID}
}

// Encode renders the info as base64 of the JSON array
// [accountId, folderId, id].
func (d DraftInfo) Encode() string {
	raw, _ := json.Marshal([]string{d.MailAccountID, d.MailFolderID, d.ID})
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeDraftInfo parses an encoded DraftInfo.
func DecodeDraftInfo(s string) (DraftInfo, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return DraftInfo{}, fmt.Errorf("failed to decode draft info: %w", err)
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return DraftInfo{}, fmt.Errorf("failed to decode draft info: %w", err)
	}
	if len(parts) != 3 {
		return DraftInfo{}, fmt.Errorf("failed to decode draft info: expected 3 parts, got %d", len(parts))
	}
	info := DraftInfo{MailAccountID: parts[0], MailFolderID: parts[1], ID: parts[2]}
	if err := info.MessageKey().Validate(); err != nil {
		return DraftInfo{}, fmt.Errorf("failed to decode draft info: %w", err)
	}
	return info, nil
}
