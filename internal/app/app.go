// Package app wires configuration into the pipeline's collaborators. The
// commands under cmd/ share it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-intake/internal/agent"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/llm"
	"github.com/joseph-ayodele/invoice-intake/internal/llm/ollama"
	"github.com/joseph-ayodele/invoice-intake/internal/llm/openai"
	"github.com/joseph-ayodele/invoice-intake/internal/notify"
	"github.com/joseph-ayodele/invoice-intake/internal/ocr"
	"github.com/joseph-ayodele/invoice-intake/internal/pipeline"
	"github.com/joseph-ayodele/invoice-intake/internal/repository"
)

// Options override parts of the environment configuration.
type Options struct {
	InMemory bool // embedded sqlite instead of DATABASE_URL
	DryRun   bool // log rejection mail instead of sending it
}

// App holds the wired collaborators. Close releases the database.
type App struct {
	DB         *repository.DB
	Extracted  repository.ExtractedRepository
	Invoices   repository.InvoiceRepository
	Mailer     notify.Mailer
	Dispatcher *agent.Dispatcher
	Extractor  *pipeline.Extractor
}

// New opens and migrates the database and builds the dispatcher and the
// extraction pipeline.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := OpenDatabase(ctx, cfg.Database, opts.InMemory, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	completer, err := NewCompleter(cfg.LLM, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		DB:        db,
		Extracted: repository.NewExtractedRepository(db, logger),
		Invoices:  repository.NewInvoiceRepository(db, logger),
		Mailer:    NewMailer(cfg.SMTP, opts.DryRun, logger),
	}
	a.Dispatcher = agent.NewDispatcher(a.Extracted, a.Invoices, a.Mailer, logger)
	a.Extractor = pipeline.NewExtractor(
		extract.NewOCRAdapter(NewOCR(cfg.OCR, logger), logger),
		extract.NewLLMFieldExtractor(completer, logger),
		logger,
	)
	return a, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// OpenDatabase connects with cfg, or to a private in-memory sqlite database.
func OpenDatabase(ctx context.Context, cfg common.DatabaseConfig, inMemory bool, logger *slog.Logger) (*repository.DB, error) {
	if inMemory {
		return repository.OpenSQLite(ctx, "", logger)
	}
	return repository.Open(ctx, repository.Config{
		Driver:           cfg.Driver,
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
}

// NewCompleter builds the language-model client named by cfg.Provider.
func NewCompleter(cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			JSONMode:    true,
		}, logger), nil
	case "ollama", "":
		return ollama.NewClient(ollama.Config{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported LLM_PROVIDER %q", cfg.Provider), common.ErrInvalidInput)
	}
}

func NewOCR(cfg common.OCRConfig, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Pdftoppm:    cfg.PdftoppmPath,
		Tesseract:   cfg.TesseractPath,
		DPI:         cfg.DPI,
		TessdataDir: cfg.TessdataDir,
		Preprocess:  cfg.Preprocess,
	}, logger)
}

// NewMailer returns the SMTP mailer, or a logging one in dry-run mode or when
// no SMTP host is configured.
func NewMailer(cfg common.SMTPConfig, dryRun bool, logger *slog.Logger) notify.Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if dryRun || cfg.Host == "" {
		if !dryRun {
			logger.Warn("app.mailer.no_smtp_host", "fallback", "log")
		}
		return notify.NewLogMailer(logger)
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Pass,
		From:     cfg.From,
	}, logger)
}
