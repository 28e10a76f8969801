package app

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/llm/ollama"
	"github.com/joseph-ayodele/invoice-intake/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-intake/internal/notify"
)

func TestNewCompleter(t *testing.T) {
	c, err := NewCompleter(common.LLMConfig{Provider: "openai", APIKey: "k"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*openai.Client); !ok {
		t.Errorf("openai provider built %T", c)
	}
	c, err = NewCompleter(common.LLMConfig{Provider: "ollama"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*ollama.Client); !ok {
		t.Errorf("ollama provider built %T", c)
	}
	if _, err := NewCompleter(common.LLMConfig{Provider: "bard"}, nil); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("unknown provider err = %v", err)
	}
}

func TestNewMailer(t *testing.T) {
	if _, ok := NewMailer(common.SMTPConfig{Host: "smtp.test"}, true, nil).(*notify.LogMailer); !ok {
		t.Error("dry run must log")
	}
	if _, ok := NewMailer(common.SMTPConfig{}, false, nil).(*notify.LogMailer); !ok {
		t.Error("missing host must fall back to log")
	}
	if _, ok := NewMailer(common.SMTPConfig{Host: "smtp.test"}, false, nil).(*notify.SMTPMailer); !ok {
		t.Error("configured host must use SMTP")
	}
}

func TestNew_InMemory(t *testing.T) {
	cfg := &common.Config{LLM: common.LLMConfig{Provider: "ollama"}}
	a, err := New(context.Background(), cfg, Options{InMemory: true, DryRun: true}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(context.Background(), 0); err != nil {
		t.Errorf("health: %v", err)
	}
	if _, err := a.Dispatcher.DispatchRaw(context.Background(), "fetch_peers", "abc"); err != nil {
		t.Errorf("fetch_peers on fresh db: %v", err)
	}
}
