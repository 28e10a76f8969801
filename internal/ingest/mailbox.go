package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

type MailboxConfig struct {
	Addr        string // host:port of the IMAPS server, e.g. imap.gmail.com:993
	Username    string
	Password    string
	Mailbox     string // default INBOX
	Subject     string // subject substring to match, default "invoice"
	DialTimeout time.Duration
}

// imapSession is the subset of *client.Client the source needs.
type imapSession interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

type dialFunc func(ctx context.Context, cfg MailboxConfig) (imapSession, error)

// MailboxSource pulls the latest unread invoice mail and hands out its first
// attachment. Fetching the body marks the message as seen.
type MailboxSource struct {
	cfg    MailboxConfig
	dial   dialFunc
	logger *slog.Logger
}

func NewMailboxSource(cfg MailboxConfig, logger *slog.Logger) *MailboxSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Subject == "" {
		cfg.Subject = "invoice"
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	return &MailboxSource{cfg: cfg, dial: dialTLS, logger: logger}
}

func dialTLS(_ context.Context, cfg MailboxConfig) (imapSession, error) {
	c, err := client.DialTLS(cfg.Addr, nil)
	if err != nil {
		return nil, err
	}
	c.Timeout = cfg.DialTimeout
	return c, nil
}

func (s *MailboxSource) Name() string { return "mailbox" }

func (s *MailboxSource) Next(ctx context.Context) (*Document, error) {
	c, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", s.cfg.Addr, err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			s.logger.Debug("ingest.mailbox.logout_failed", "error", err)
		}
	}()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(s.cfg.Mailbox, false); err != nil {
		return nil, fmt.Errorf("imap select %s: %w", s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("Subject", s.cfg.Subject)
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		s.logger.Debug("ingest.mailbox.empty", "mailbox", s.cfg.Mailbox)
		return nil, nil
	}
	latest := ids[len(ids)-1]

	raw, err := fetchBody(c, latest)
	if err != nil {
		return nil, err
	}

	sender, att, err := ParseInvoiceMail(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %d: %w", latest, err)
	}
	if att == nil {
		s.logger.Info("ingest.mailbox.no_attachment", "seq", latest, "sender", sender)
		return nil, nil
	}

	tmpDir, err := os.MkdirTemp("", "invoice-mail-*")
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(tmpDir, att.Filename)
	if err := os.WriteFile(dst, att.Content, 0o600); err != nil {
		_ = os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("write attachment: %w", err)
	}

	fileID := uuid.NewString()
	s.logger.Info("ingest.mailbox.attachment",
		"seq", latest,
		"sender", sender,
		"filename", att.Filename,
		"bytes", len(att.Content),
		"file_id", fileID,
	)
	return NewDocument(dst, fileID, sender, s.Name(), tmpDir), nil
}

func fetchBody(c imapSession, seq uint32) ([]byte, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)
	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var (
		body    []byte
		readErr error
	)
	// drain until Fetch closes the channel
	for msg := range messages {
		if r := msg.GetBody(section); r != nil && body == nil && readErr == nil {
			body, readErr = io.ReadAll(r)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read body: %w", readErr)
	}
	if body == nil {
		return nil, errors.New("imap fetch: empty body")
	}
	return body, nil
}

// Attachment is a decoded mail attachment.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ParseInvoiceMail returns the sender address and the first non-empty
// attachment of a message. A message without one yields a nil attachment.
func ParseInvoiceMail(r io.Reader) (string, *Attachment, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", nil, err
	}
	defer func(mr *mail.Reader) {
		_ = mr.Close()
	}(mr)

	from, err := mr.Header.Text("From")
	if err != nil || from == "" {
		from = mr.Header.Get("From")
	}
	sender := SenderFromHeader(from)

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return sender, nil, nil
		}
		if err != nil {
			return sender, nil, err
		}
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		content, err := io.ReadAll(p.Body)
		if err != nil || len(content) == 0 {
			continue
		}
		ct, _, _ := h.ContentType()
		name, _ := h.Filename()
		if strings.TrimSpace(name) == "" {
			name = GeneratedFilename(ct)
		}
		return sender, &Attachment{
			Filename:    CleanFilename(name),
			ContentType: ct,
			Content:     content,
		}, nil
	}
}
