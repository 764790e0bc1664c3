package mailclient

import (
	"errors"
	"fmt"

	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/mail"
)

var (
	ErrNotADraft          = errors.New("message is not a draft")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// MailClientError wraps a failure talking to the mail servers.
type MailClientError struct {
	Op  string
	Err error
}

func (e *MailClientError) Error() string {
	return fmt.Sprintf("mail client: %s: %v", e.Op, e.Err)
}

func (e *MailClientError) Unwrap() error { return e.Err }

// MailFolderNotFoundError is returned when an operation targets a folder
// the server does not know.
type MailFolderNotFoundError struct {
	Key mail.FolderKey
	Err error
}

func (e *MailFolderNotFoundError) Error() string {
	return fmt.Sprintf("mail folder %q not found", e.Key.ID)
}

func (e *MailFolderNotFoundError) Unwrap() error { return e.Err }

// ServiceError reports a caller mistake, such as creating a draft that
// already has a key.
type ServiceError struct {
	Msg string
	Err error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

func serviceErrorf(format string, args ...any) *ServiceError {
	return &ServiceError{Msg: fmt.Sprintf(format, args...)}
}

// wrap converts a transport error into the client's error types. Errors
// that already are client errors pass through.
func wrap(op string, folder mail.FolderKey, err error) error {
	if err == nil {
		return nil
	}
	var (
		clientErr   *MailClientError
		notFoundErr *MailFolderNotFoundError
		serviceErr  *ServiceError
	)
	switch {
	case errors.As(err, &clientErr), errors.As(err, &notFoundErr), errors.As(err, &serviceErr):
		return err
	case errors.Is(err, imap.ErrMailboxNotFound):
		return &MailFolderNotFoundError{Key: folder, Err: err}
	}
	return &MailClientError{Op: op, Err: err}
}
