package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/bscott/mailgate/internal/config"
)

const doctorTimeout = 15 * time.Second

// ConfigCmd handles configuration management
type ConfigCmd struct {
	Init     ConfigInitCmd     `cmd:"" help:"Interactive setup wizard for a mail account"`
	Show     ConfigShowCmd     `cmd:"" help:"Display current configuration"`
	Password ConfigPasswordCmd `cmd:"" help:"Store or delete an account password in the keyring"`
	Path     ConfigPathCmd     `cmd:"" help:"Print the config file path"`
	Doctor   ConfigDoctorCmd   `cmd:"" help:"Diagnose configuration issues"`
}

type ConfigInitCmd struct{}

type ConfigShowCmd struct{}

type ConfigPasswordCmd struct {
	Account string `arg:"" help:"Account id"`
	Delete  bool   `help:"Remove the stored password"`
}

type ConfigPathCmd struct{}

type ConfigDoctorCmd struct{}

// prompter reads wizard answers line by line.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func (ctx *Context) prompter() *prompter {
	in := ctx.stdin
	if in == nil {
		in = os.Stdin
	}
	return &prompter{in: in, reader: bufio.NewReader(in), out: ctx.Formatter.Writer}
}

func (p *prompter) ask(label, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	line, _ := p.reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func (p *prompter) askInt(label string, def int) (int, error) {
	s := p.ask(label, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", strings.ToLower(label), s)
	}
	return n, nil
}

func (p *prompter) askBool(label string, def bool) bool {
	d := "n"
	if def {
		d = "y"
	}
	s := strings.ToLower(p.ask(label+" (y/n)", d))
	return s == "y" || s == "yes"
}

// password reads without echo from a terminal and as a plain line
// otherwise.
func (p *prompter) password(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *ConfigInitCmd) Run(ctx *Context) error {
	out := ctx.Formatter.Writer
	fmt.Fprintln(out, "mailgate account setup")
	fmt.Fprintln(out, "======================")
	fmt.Fprintln(out)

	cfg := ctx.Config
	if ctx.configErr != nil {
		cfg = config.DefaultConfig()
	}

	p := ctx.prompter()
	id := p.ask("Account id", "")
	if id == "" {
		return fmt.Errorf("account id is required")
	}
	if _, exists := cfg.Account(id); exists {
		return fmt.Errorf("account %q already exists", id)
	}

	acc := config.NewAccount(id)
	acc.Name = p.ask("Display name", id)
	acc.From = p.ask("From address", "")
	if acc.From == "" {
		return fmt.Errorf("from address is required")
	}

	var err error
	fmt.Fprintln(out)
	acc.Inbox.Host = p.ask("IMAP host", "")
	if acc.Inbox.Port, err = p.askInt("IMAP port", acc.Inbox.Port); err != nil {
		return err
	}
	acc.Inbox.SSL = p.askBool("IMAP over TLS", acc.Inbox.SSL)
	acc.Inbox.User = p.ask("IMAP user", acc.From)

	fmt.Fprintln(out)
	acc.Outbox.Host = p.ask("SMTP host", acc.Inbox.Host)
	if acc.Outbox.Port, err = p.askInt("SMTP port", acc.Outbox.Port); err != nil {
		return err
	}
	acc.Outbox.Security = p.ask("SMTP security (tls, starttls, none)", acc.Outbox.Security)
	acc.Outbox.User = p.ask("SMTP user", acc.Inbox.User)

	cfg.Accounts = append(cfg.Accounts, acc)
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	password, err := p.password("Password")
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	if err := cfg.Save(ctx.Globals.Config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	if err := config.SetPassword(id, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}

	path := ctx.Globals.Config
	if path == "" {
		path, _ = config.ConfigPath()
	}
	fmt.Fprintln(out)
	ctx.Formatter.PrintSuccess(fmt.Sprintf("Account %q saved to %s", id, path))
	fmt.Fprintln(out, "Password stored securely in system keyring.")
	fmt.Fprintln(out, "Check the connection with: "+ctx.Formatter.InfoText("mailgate folders "+id))
	return nil
}

func (c *ConfigShowCmd) Run(ctx *Context) error {
	if err := ctx.RequireConfig(); err != nil {
		return err
	}

	passwords := make(map[string]bool, len(ctx.Config.Accounts))
	for _, a := range ctx.Config.Accounts {
		_, err := config.GetPassword(a.ID)
		passwords[a.ID] = err == nil
	}

	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON(map[string]any{
			"config":    ctx.Config,
			"passwords": passwords,
		})
	}

	data, err := yaml.Marshal(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out := ctx.Formatter.Writer
	fmt.Fprint(out, string(data))
	fmt.Fprintln(out)
	for _, a := range ctx.Config.Accounts {
		status := ctx.Formatter.SuccessText("stored")
		if !passwords[a.ID] {
			status = ctx.Formatter.WarningText("not set") + fmt.Sprintf(" (run 'mailgate config password %s' or set %s)", a.ID, config.PasswordEnv(a.ID))
		}
		fmt.Fprintf(out, "Password %s: %s\n", a.ID, status)
	}
	return nil
}

func (c *ConfigPasswordCmd) Run(ctx *Context) error {
	if c.Delete {
		if err := config.DeletePassword(c.Account); err != nil {
			return fmt.Errorf("failed to delete password: %w", err)
		}
		ctx.Formatter.PrintSuccess(fmt.Sprintf("Password of %q deleted", c.Account))
		return nil
	}

	if err := ctx.RequireConfig(); err != nil {
		return err
	}
	if _, ok := ctx.Config.Account(c.Account); !ok {
		return fmt.Errorf("unknown account %q", c.Account)
	}
	password, err := ctx.prompter().password("Password for " + c.Account)
	if err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if err := config.SetPassword(c.Account, password); err != nil {
		return fmt.Errorf("failed to store password in keyring: %w", err)
	}
	ctx.Formatter.PrintSuccess(fmt.Sprintf("Password of %q stored", c.Account))
	return nil
}

func (c *ConfigPathCmd) Run(ctx *Context) error {
	path := ctx.Globals.Config
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return err
		}
	}
	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON(map[string]any{"path": path, "exists": fileExists(path)})
	}
	fmt.Fprintln(ctx.Formatter.Writer, path)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (c *ConfigDoctorCmd) Run(ctx *Context) error {
	var results []checkResult
	check := func(name string, err error, okMessage string) {
		r := checkResult{Name: name, Status: "ok", Message: okMessage}
		if err != nil {
			r.Status, r.Message = "fail", err.Error()
		}
		results = append(results, r)
		if ctx.Formatter.JSON {
			return
		}
		prefix := ctx.Formatter.SuccessText("[OK]")
		if err != nil {
			prefix = ctx.Formatter.ErrorText("[FAIL]")
		}
		line := prefix + " " + name
		if r.Message != "" {
			line += " - " + r.Message
		}
		fmt.Fprintln(ctx.Formatter.Writer, line)
	}

	check("Config loaded", ctx.configErr, "")
	if ctx.configErr == nil {
		check("Config valid", ctx.Config.Validate(), fmt.Sprintf("%d account(s)", len(ctx.Config.Accounts)))

		var missing []string
		for _, a := range ctx.Config.Accounts {
			_, err := config.GetPassword(a.ID)
			check("Password for "+a.ID, err, "")
			if err != nil {
				missing = append(missing, a.ID)
			}
		}

		if len(missing) == 0 && len(ctx.Config.Accounts) > 0 {
			c.checkConnections(ctx, check)
		}
	}

	healthy := true
	for _, r := range results {
		if r.Status == "fail" {
			healthy = false
		}
	}
	if ctx.Formatter.JSON {
		return ctx.Formatter.PrintJSON(map[string]any{
			"checks":  results,
			"healthy": healthy,
		})
	}
	if !healthy {
		return errors.New("configuration has problems")
	}
	return nil
}

// checkConnections logs into every account by listing its folders.
func (c *ConfigDoctorCmd) checkConnections(ctx *Context, check func(string, error, string)) {
	svc, err := ctx.openServices(ctx.commandLogger(), nil)
	if err != nil {
		check("Mail clients", err, "")
		return
	}
	defer svc.Close()

	for _, a := range ctx.Config.Accounts {
		runCtx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
		tree, err := svc.folders.FolderTree(runCtx, a.ID, nil)
		cancel()
		check("IMAP login for "+a.ID, err, fmt.Sprintf("%d top-level folder(s)", len(tree)))
	}
}
