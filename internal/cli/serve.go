package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/metrics"
	"github.com/bscott/mailgate/internal/server"
)

type ServeCmd struct {
	Addr    string   `help:"Listen address (overrides server.addr)" short:"a"`
	Origins []string `help:"Allowed CORS origins (overrides server.allowed_origins)" name:"origin"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	m := metrics.New()
	svc, err := ctx.openServices(logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close mail clients", zap.Error(err))
		}
	}()

	cfg := server.Config{
		Addr:           ctx.Config.Server.Addr,
		AllowedOrigins: ctx.Config.Server.AllowedOrigins,
	}
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if len(c.Origins) > 0 {
		cfg.AllowedOrigins = c.Origins
	}

	srv := server.New(cfg, server.Dependencies{
		Accounts: svc.accounts,
		Folders:  svc.folders,
		Messages: svc.messages,
		Metrics:  m,
		Logger:   logger,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting mailgate",
		zap.String("version", Version),
		zap.Int("accounts", len(svc.accounts.List())))
	return srv.Run(runCtx)
}
