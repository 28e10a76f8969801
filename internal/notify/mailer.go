// Package notify delivers rejection notices to invoice senders.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

const (
	RejectionSubject = "Invoice Validation Failed"
	rejectionIntro   = "Your invoice was rejected for this reason:\n\n"
)

// Mailer sends a rejection notice to one recipient.
type Mailer interface {
	SendRejection(ctx context.Context, to, reason string) error
}

type SMTPConfig struct {
	Host     string
	Port     int // default 587
	Username string
	Password string
	From     string // defaults to Username
	Timeout  time.Duration
}

// deliverFunc hands a rendered message to the server at addr.
type deliverFunc func(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text notices over SMTP with STARTTLS and PLAIN auth.
type SMTPMailer struct {
	cfg     SMTPConfig
	deliver deliverFunc
	logger  *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPMailer{cfg: cfg, deliver: deliverSTARTTLS, logger: logger}
}

func (m *SMTPMailer) SendRejection(ctx context.Context, to, reason string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return common.NewAppError("NO_RECIPIENT", "rejection has no recipient", common.ErrNoRecipient)
	}
	msg, err := BuildRejection(m.cfg.From, to, reason, time.Now())
	if err != nil {
		return fmt.Errorf("build rejection: %w", err)
	}

	start := time.Now()
	if err := m.deliver(ctx, m.cfg, m.cfg.From, []string{to}, msg); err != nil {
		m.logger.Error("notify.smtp.failed", "to", to, "host", m.cfg.Host, "error", err)
		return common.NewAppError("SMTP_ERROR", "send rejection to "+to, fmt.Errorf("%w: %w", common.ErrCollaborator, err))
	}
	m.logger.Info("notify.smtp.sent", "to", to, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// BuildRejection renders the RFC 5322 rejection message.
func BuildRejection(from, to, reason string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetSubject(RejectionSubject)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(RejectionBody(reason))); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RejectionBody is the text sent to the invoice sender.
func RejectionBody(reason string) string {
	return rejectionIntro + reason
}

func deliverSTARTTLS(ctx context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func(c *smtp.Client) {
		_ = c.Close()
	}(c)

	if err := c.StartTLS(&tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", cfg.Username, cfg.Password)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := c.Mail(from, nil); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// LogMailer logs rejections instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendRejection(_ context.Context, to, reason string) error {
	if strings.TrimSpace(to) == "" {
		return common.NewAppError("NO_RECIPIENT", "rejection has no recipient", common.ErrNoRecipient)
	}
	m.logger.Info("notify.dry_run", "to", to, "subject", RejectionSubject, "reason", reason)
	return nil
}
