// Package server exposes the mail services over HTTP as JSON:API
// resources.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/metrics"
	"github.com/bscott/mailgate/internal/service"
)

const (
	shutdownTimeout  = 5 * time.Second
	dialCheckTimeout = 2 * time.Second
)

type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Dependencies are the services the handlers call.
type Dependencies struct {
	Accounts *service.Accounts
	Folders  *service.MailFolderService
	Messages *service.MessageItemService
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

type Server struct {
	config   Config
	engine   *gin.Engine
	health   healthcheck.Handler
	accounts *service.Accounts
	folders  *service.MailFolderService
	messages *service.MessageItemService
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func New(cfg Config, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   cfg,
		health:   healthcheck.NewHandler(),
		accounts: deps.Accounts,
		folders:  deps.Folders,
		messages: deps.Messages,
		metrics:  deps.Metrics,
		logger:   logger.Named("http"),
	}
	s.addChecks()
	s.engine = s.router()
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.config.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) addChecks() {
	s.health.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(10000))
	if s.accounts == nil {
		return
	}
	for _, a := range s.accounts.List() {
		if a.InboxAddress == "" || a.InboxPort == 0 {
			continue
		}
		addr := net.JoinHostPort(a.InboxAddress, strconv.Itoa(a.InboxPort))
		s.health.AddReadinessCheck("imap-"+a.ID, healthcheck.TCPDialCheck(addr, dialCheckTimeout))
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	// folder ids may contain an escaped hierarchy delimiter
	r.UseRawPath = true
	r.UnescapePathValues = true

	r.Use(s.recovery(), s.requestLogger(), s.observe())

	if len(s.config.AllowedOrigins) > 0 {
		corsConfig := gincors.Config{
			AllowOrigins:  s.config.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}
		for _, origin := range corsConfig.AllowOrigins {
			if origin == "*" {
				corsConfig.AllowOrigins = nil
				corsConfig.AllowAllOrigins = true
				break
			}
		}
		r.Use(gincors.New(corsConfig))
	}

	r.GET("/live", gin.WrapF(s.health.LiveEndpoint))
	r.GET("/ready", gin.WrapF(s.health.ReadyEndpoint))
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	r.GET("/MailAccounts", s.validate(collection(accountDescription)), s.listAccounts)

	account := r.Group("/MailAccounts/:account")
	account.GET("/MailFolders", s.validate(collection(folderDescription)), s.listFolders)

	items := account.Group("/MailFolders/:folder/MessageItems")
	items.GET("", s.validate(messageItemCollection()), s.listMessageItems)
	items.POST("", s.createMessageItem)
	items.GET("/:id", s.validate(single(itemDescription)), s.getMessageItem)
	items.PATCH("/:id", s.updateMessageItem)
	items.DELETE("/:id", s.deleteMessageItem)
	items.GET("/:id/MessageBody", s.validate(single(bodyDescription)), s.getMessageBody)
	items.PATCH("/:id/MessageBody", s.updateMessageBody)
	items.POST("/:id/send", s.sendMessageItem)
	items.GET("/:id/Attachments", s.validate(collection(attachmentDescription)), s.listAttachments)
	items.POST("/:id/Attachments", s.createAttachments)
	items.DELETE("/:id/Attachments/:attachment", s.deleteAttachment)

	r.NoRoute(func(c *gin.Context) {
		s.problem(c, http.StatusNotFound, "no such resource")
	})
	return r
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))
				s.problem(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
