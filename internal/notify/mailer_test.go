package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

func TestBuildRejection(t *testing.T) {
	raw, err := BuildRejection("ap@buyer.test", "vendor@example.com", "Tax information is missing", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildRejection: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	subject, _ := mr.Header.Subject()
	if subject != RejectionSubject {
		t.Errorf("subject = %q", subject)
	}
	to, err := mr.Header.AddressList("To")
	if err != nil || len(to) != 1 || to[0].Address != "vendor@example.com" {
		t.Errorf("to = %v, %v", to, err)
	}

	p, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	body, _ := io.ReadAll(p.Body)
	want := "Your invoice was rejected for this reason:\n\nTax information is missing"
	if strings.ReplaceAll(string(body), "\r\n", "\n") != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

func TestSMTPMailer_SendRejection(t *testing.T) {
	var (
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test", Username: "ap@buyer.test", Password: "x"}, nil)
	m.deliver = func(_ context.Context, cfg SMTPConfig, from string, to []string, msg []byte) error {
		if cfg.Port != 587 {
			t.Errorf("port = %d, want default 587", cfg.Port)
		}
		gotFrom, gotTo, gotMsg = from, to, msg
		return nil
	}

	if err := m.SendRejection(context.Background(), " vendor@example.com ", "Invoice Date is missing"); err != nil {
		t.Fatalf("SendRejection: %v", err)
	}
	if gotFrom != "ap@buyer.test" {
		t.Errorf("from = %q, want username fallback", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "vendor@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	if !bytes.Contains(gotMsg, []byte("Invoice Date is missing")) {
		t.Errorf("message does not carry the reason")
	}
}

func TestSMTPMailer_NoRecipient(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test"}, nil)
	m.deliver = func(context.Context, SMTPConfig, string, []string, []byte) error {
		t.Fatalf("deliver must not be called")
		return nil
	}
	err := m.SendRejection(context.Background(), "  ", "x")
	if !errors.Is(err, common.ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}

func TestSMTPMailer_DeliveryFailure(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.test"}, nil)
	m.deliver = func(context.Context, SMTPConfig, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.SendRejection(context.Background(), "vendor@example.com", "x")
	if !errors.Is(err, common.ErrCollaborator) {
		t.Fatalf("err = %v, want ErrCollaborator", err)
	}
}

func TestLogMailer(t *testing.T) {
	m := NewLogMailer(nil)
	if err := m.SendRejection(context.Background(), "vendor@example.com", "x"); err != nil {
		t.Fatalf("SendRejection: %v", err)
	}
	if err := m.SendRejection(context.Background(), "", "x"); !errors.Is(err, common.ErrNoRecipient) {
		t.Fatalf("err = %v, want ErrNoRecipient", err)
	}
}
