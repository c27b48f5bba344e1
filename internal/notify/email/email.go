// Package email delivers alerts over SMTP with implicit TLS.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
	"github.com/JakeFAU/gazette-watch/internal/notify"
)

// ErrNotConfigured is returned when sender, password or recipient is missing.
var ErrNotConfigured = fmt.Errorf("email credentials not configured: %w", notify.ErrSkipped)

const (
	defaultHost    = "smtp.gmail.com"
	defaultPort    = 465
	defaultTimeout = 30 * time.Second
)

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	From     string
	Password string
	To       string
	Timeout  time.Duration
}

// Configured reports whether all credentials are present.
func (c Config) Configured() bool {
	return c.From != "" && c.Password != "" && c.To != ""
}

// SendFunc delivers a raw message. Tests replace the network path with it.
type SendFunc func(ctx context.Context, cfg Config, msg []byte) error

// Notifier sends the HTML report as a single email.
type Notifier struct {
	cfg  Config
	send SendFunc
}

// New returns a Notifier using implicit TLS.
func New(cfg Config) *Notifier {
	return NewWithSender(cfg, sendTLS)
}

// NewWithSender returns a Notifier that delivers through send.
func NewWithSender(cfg Config, send SendFunc) *Notifier {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Notifier{cfg: cfg, send: send}
}

// Notify implements gazette.Notifier.
func (n *Notifier) Notify(ctx context.Context, msg gazette.Message) error {
	if !n.cfg.Configured() {
		return ErrNotConfigured
	}
	if err := n.send(ctx, n.cfg, buildMessage(n.cfg.From, n.cfg.To, msg)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func buildMessage(from, to string, msg gazette.Message) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.HTMLBody, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}

func sendTLS(ctx context.Context, cfg Config, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.Timeout},
		Config:    &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Auth(smtp.PlainAuth("", cfg.From, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(cfg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish body: %w", err)
	}
	if err := client.Quit(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("smtp quit: %w", err)
	}
	return nil
}
