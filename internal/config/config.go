// Package config loads the gateway configuration: the HTTP server, logging
// and the mail accounts it serves. Passwords are never stored in the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"github.com/bscott/mailgate/internal/logging"
	"github.com/bscott/mailgate/internal/mail"
)

const (
	AppName   = "mailgate"
	EnvPrefix = "MAILGATE_"

	DefaultAddr          = "127.0.0.1:8080"
	DefaultPreviewLength = 200
	DefaultIMAPPort      = 993
	DefaultSMTPPort      = 587
	DefaultSMTPSecurity  = "starttls"
)

var ErrPasswordNotFound = errors.New("password not found")

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	PreviewLength  int      `yaml:"preview_length"`
}

type InboxConfig struct {
	Type string `yaml:"type"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	SSL  bool   `yaml:"ssl"`
}

type OutboxConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	// Security is one of "tls", "starttls" or "none".
	Security string `yaml:"security"`
}

type AccountConfig struct {
	ID            string       `yaml:"id"`
	Name          string       `yaml:"name"`
	From          string       `yaml:"from"`
	ReplyTo       string       `yaml:"reply_to,omitempty"`
	Inbox         InboxConfig  `yaml:"inbox"`
	Outbox        OutboxConfig `yaml:"outbox"`
	Subscriptions []string     `yaml:"subscriptions,omitempty"`
}

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      logging.Config  `yaml:"log"`
	Accounts []AccountConfig `yaml:"accounts"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          DefaultAddr,
			PreviewLength: DefaultPreviewLength,
		},
		Log: logging.DefaultConfig(),
	}
}

// NewAccount returns an account with the default ports filled in.
func NewAccount(id string) AccountConfig {
	return AccountConfig{
		ID:     id,
		Inbox:  InboxConfig{Type: "imap", Port: DefaultIMAPPort, SSL: true},
		Outbox: OutboxConfig{Port: DefaultSMTPPort, Security: DefaultSMTPSecurity},
	}
}

// ConfigDir honors XDG_CONFIG_HOME.
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path, or the default path when empty, and
// applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s - run 'mailgate config init' to create one", path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for i := range cfg.Accounts {
		cfg.Accounts[i].applyDefaults()
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process
// environment. Variables that are already set win. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides settings from MAILGATE_ADDR, MAILGATE_ALLOWED_ORIGINS,
// MAILGATE_PREVIEW_LENGTH, MAILGATE_LOG_LEVEL and MAILGATE_LOG_FILE.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "ADDR"); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(EnvPrefix + "PREVIEW_LENGTH"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sPREVIEW_LENGTH: %s", EnvPrefix, v)
		}
		c.Server.PreviewLength = n
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_FILE"); ok {
		c.Log.File = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (a *AccountConfig) applyDefaults() {
	if a.Inbox.Type == "" {
		a.Inbox.Type = "imap"
	}
	if a.Inbox.Port == 0 {
		a.Inbox.Port = DefaultIMAPPort
	}
	if a.Outbox.Port == 0 {
		a.Outbox.Port = DefaultSMTPPort
	}
	if a.Outbox.Security == "" {
		a.Outbox.Security = DefaultSMTPSecurity
	}
	if a.Inbox.User == "" && a.From != "" {
		if from, err := mail.ParseAddress(a.From); err == nil {
			a.Inbox.User = from.Address
		}
	}
	if a.Outbox.User == "" {
		a.Outbox.User = a.Inbox.User
	}
}

func (c *Config) Save(path string) error {
	if path == "" {
		var err error
		path, err = ConfigPath()
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Validate checks that every account can be addressed and reached.
func (c *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, a := range c.Accounts {
		switch {
		case a.ID == "":
			errs = append(errs, fmt.Errorf("account %d has no id", i))
			continue
		case seen[a.ID]:
			errs = append(errs, fmt.Errorf("account id %q is used twice", a.ID))
		}
		seen[a.ID] = true
		if a.Inbox.Type != "imap" {
			errs = append(errs, fmt.Errorf("account %q: unsupported inbox type %q", a.ID, a.Inbox.Type))
		}
		if a.Inbox.Host == "" {
			errs = append(errs, fmt.Errorf("account %q: inbox host is required", a.ID))
		}
		if a.Outbox.Host == "" {
			errs = append(errs, fmt.Errorf("account %q: outbox host is required", a.ID))
		}
		switch a.Outbox.Security {
		case "tls", "starttls", "none":
		default:
			errs = append(errs, fmt.Errorf("account %q: outbox security must be tls, starttls or none", a.ID))
		}
		if a.From != "" {
			if _, err := mail.ParseAddress(a.From); err != nil {
				errs = append(errs, fmt.Errorf("account %q: %w", a.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Account returns the account with the given id.
func (c *Config) Account(id string) (*AccountConfig, bool) {
	for i := range c.Accounts {
		if c.Accounts[i].ID == id {
			return &c.Accounts[i], true
		}
	}
	return nil, false
}

// MailAccount builds the account model with its password resolved.
func (a *AccountConfig) MailAccount(password string) (*mail.MailAccount, error) {
	acc := &mail.MailAccount{
		ID:             a.ID,
		Name:           a.Name,
		InboxType:      a.Inbox.Type,
		InboxAddress:   a.Inbox.Host,
		InboxPort:      a.Inbox.Port,
		InboxUser:      a.Inbox.User,
		InboxPassword:  password,
		InboxSSL:       a.Inbox.SSL,
		OutboxAddress:  a.Outbox.Host,
		OutboxPort:     a.Outbox.Port,
		OutboxUser:     a.Outbox.User,
		OutboxPassword: password,
		OutboxSecure:   a.Outbox.Security,
		Subscriptions:  a.Subscriptions,
	}
	if a.From != "" {
		from, err := mail.ParseAddress(a.From)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.ID, err)
		}
		acc.From = from
	}
	if a.ReplyTo != "" {
		replyTo, err := mail.ParseAddress(a.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", a.ID, err)
		}
		acc.ReplyTo = replyTo
	}
	return acc, nil
}

// MailAccounts builds every configured account, resolving passwords from
// the environment first and the system keyring second.
func (c *Config) MailAccounts() ([]*mail.MailAccount, error) {
	out := make([]*mail.MailAccount, 0, len(c.Accounts))
	for i := range c.Accounts {
		a := &c.Accounts[i]
		password, err := GetPassword(a.ID)
		if err != nil {
			return nil, err
		}
		acc, err := a.MailAccount(password)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, nil
}

// PasswordEnv names the variable holding the password of account id, for
// example MAILGATE_PASSWORD_WORK_MAIL for "work-mail".
func PasswordEnv(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(id) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return EnvPrefix + "PASSWORD_" + b.String()
}

func SetPassword(id, password string) error {
	if id == "" {
		return errors.New("account id must be set before storing password")
	}
	return keyring.Set(AppName, id, password)
}

func GetPassword(id string) (string, error) {
	if v, ok := os.LookupEnv(PasswordEnv(id)); ok {
		return v, nil
	}
	password, err := keyring.Get(AppName, id)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for account %q - set %s or run 'mailgate config password %s'",
				ErrPasswordNotFound, id, PasswordEnv(id), id)
		}
		return "", fmt.Errorf("failed to get password from keyring: %w", err)
	}
	return password, nil
}

func DeletePassword(id string) error {
	return keyring.Delete(AppName, id)
}
