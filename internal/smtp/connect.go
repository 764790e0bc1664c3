package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// ConnectTimeout is the maximum time allowed for establishing SMTP TCP connections.
const ConnectTimeout = 5 * time.Second

// Connection security modes, as configured per account.
const (
	SecurityNone     = ""
	SecuritySSL      = "ssl"
	SecurityTLS      = "tls"
	SecuritySTARTTLS = "starttls"
)

var dialContext = (&net.Dialer{Timeout: ConnectTimeout}).DialContext

// ParseSecurity normalizes a configured security mode.
func ParseSecurity(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case SecurityNone, "none", "plain":
		return SecurityNone, nil
	case SecuritySSL, SecurityTLS:
		return SecurityTLS, nil
	case SecuritySTARTTLS:
		return SecuritySTARTTLS, nil
	default:
		return "", fmt.Errorf("unknown SMTP security mode %q", s)
	}
}

// DialClient connects to an SMTP server with an explicit timeout and
// secures the connection according to security.
func DialClient(ctx context.Context, addr, host, security string, tlsConfig *tls.Config) (*gosmtp.Client, error) {
	security, err := ParseSecurity(security)
	if err != nil {
		return nil, err
	}

	conn, err := dialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if security == SecurityTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	if security == SecuritySTARTTLS {
		client, err := gosmtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("STARTTLS failed on %s: %w", host, err)
		}
		return client, nil
	}
	return gosmtp.NewClient(conn), nil
}
