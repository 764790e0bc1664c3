package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/jsonapi"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient"
	"github.com/bscott/mailgate/internal/service"
)

// problem writes a single problem with the given status.
func (s *Server) problem(c *gin.Context, status int, detail string) {
	c.Header("Content-Type", jsonapi.ProblemContentType)
	c.JSON(status, []jsonapi.Problem{jsonapi.NewProblem(status, detail, c.Request.URL.String())})
}

// fail maps err to a status and writes it as a problem. Server side
// failures are logged and reported without their detail.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		detail = "internal server error"
	}
	s.problem(c, status, detail)
}

func statusOf(err error) int {
	var (
		notFound   *mailclient.MailFolderNotFoundError
		serviceErr *mailclient.ServiceError
		fieldErr   *mail.FieldTypeError
		unknownErr *mail.UnknownFieldError
		reqErr     *requestError
	)
	switch {
	case errors.Is(err, service.ErrAccountNotFound),
		errors.As(err, &notFound),
		errors.Is(err, mailclient.ErrMessageNotFound),
		errors.Is(err, mailclient.ErrAttachmentNotFound):
		return http.StatusNotFound
	case errors.As(err, &reqErr),
		errors.As(err, &serviceErr),
		errors.As(err, &fieldErr),
		errors.As(err, &unknownErr),
		errors.Is(err, mailclient.ErrNotADraft),
		errors.Is(err, mail.ErrInvalidKey),
		errors.Is(err, mail.ErrAttachmentNotBase64):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// requestError reports a malformed request document.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }
