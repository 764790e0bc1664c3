package cli

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/bscott/mailgate/internal/config"
	"github.com/bscott/mailgate/internal/logging"
	"github.com/bscott/mailgate/internal/mail"
	"github.com/bscott/mailgate/internal/mailclient"
	"github.com/bscott/mailgate/internal/metrics"
	"github.com/bscott/mailgate/internal/output"
	"github.com/bscott/mailgate/internal/service"
)

var Version = "0.1.0"

type Globals struct {
	JSON     bool   `help:"Output as JSON" name:"json"`
	HelpJSON bool   `help:"Output command help as JSON (AI agent mode)" name:"help-json"`
	Config   string `help:"Path to config file" short:"c" type:"path"`
	EnvFile  string `help:"Load environment variables from this file" name:"env-file" default:".env" type:"path"`
	Verbose  bool   `help:"Verbose output" short:"v"`
	Quiet    bool   `help:"Suppress non-essential output" short:"q"`
}

type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" help:"Run the JSON:API gateway"`
	Validate ValidateCmd `cmd:"" help:"Validate a query string without a server"`
	Folders  FoldersCmd  `cmd:"" help:"Show the folder tree of an account"`
	Messages MessagesCmd `cmd:"" help:"List message items of a folder"`
	Config   ConfigCmd   `cmd:"" help:"Configuration management"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

type Context struct {
	Config    *config.Config
	Formatter *output.Formatter
	Globals   *Globals

	// configErr is why Config holds defaults instead of the loaded file.
	configErr error
	transport transportFunc
	stdin     io.Reader
}

// transportFunc connects an account to its mail servers.
type transportFunc func(account *mail.MailAccount, logger *zap.Logger, m *metrics.Metrics) (mailclient.Dialer, mailclient.Sender)

func mailServers(account *mail.MailAccount, logger *zap.Logger, m *metrics.Metrics) (mailclient.Dialer, mailclient.Sender) {
	return mailclient.IMAPDialer(account, logger, m), mailclient.SMTPSender(account, logger, m)
}

// NewContext loads the env file and the config. A missing or broken config
// falls back to defaults; commands that need accounts report the load
// error through RequireConfig.
func NewContext(globals *Globals) (*Context, error) {
	formatter := output.New(globals.JSON, globals.Verbose, globals.Quiet)

	if err := config.LoadEnvFile(globals.EnvFile); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error

	if globals.Config != "" {
		cfg, err = config.Load(globals.Config)
	} else if config.Exists() {
		cfg, err = config.Load("")
	} else {
		err = fmt.Errorf("no config file found - run 'mailgate config init' to create one")
	}

	if err != nil {
		formatter.Verbosef("using default config: %v", err)
		cfg = config.DefaultConfig()
	}

	return &Context{
		Config:    cfg,
		Formatter: formatter,
		Globals:   globals,
		configErr: err,
		transport: mailServers,
	}, nil
}

// RequireConfig fails when no config file could be loaded.
func (ctx *Context) RequireConfig() error {
	if ctx.configErr != nil {
		return ctx.configErr
	}
	return ctx.Config.Validate()
}

// services bundles what the gateway and the inspection commands share.
type services struct {
	accounts *service.Accounts
	folders  *service.MailFolderService
	messages *service.MessageItemService
}

func (s *services) Close() error { return s.accounts.Close() }

// openServices wires the configured accounts to IMAP and SMTP clients.
// Connections are opened lazily on first use.
func (ctx *Context) openServices(logger *zap.Logger, m *metrics.Metrics) (*services, error) {
	if err := ctx.RequireConfig(); err != nil {
		return nil, err
	}
	accounts, err := ctx.Config.MailAccounts()
	if err != nil {
		return nil, err
	}

	factory := func(account *mail.MailAccount) service.MailClient {
		dial, send := ctx.transport(account, logger, m)
		return mailclient.New(account, dial, send, logger, m)
	}

	all := service.NewAccounts(accounts, factory)
	return &services{
		accounts: all,
		folders:  service.NewMailFolderService(all, logger),
		messages: service.NewMessageItemService(all, ctx.Config.Server.PreviewLength, logger),
	}, nil
}

// logger builds the zap logger from the config. Verbose raises the level
// to debug.
func (ctx *Context) logger() (*zap.Logger, error) {
	cfg := ctx.Config.Log
	if ctx.Globals.Verbose {
		cfg.Level = "debug"
	}
	return logging.New(cfg)
}

// commandLogger is used by one-shot commands, which only log warnings
// unless verbose.
func (ctx *Context) commandLogger() *zap.Logger {
	cfg := ctx.Config.Log
	cfg.Level = "warn"
	if ctx.Globals.Verbose {
		cfg.Level = "debug"
	}
	return logging.Must(cfg)
}
