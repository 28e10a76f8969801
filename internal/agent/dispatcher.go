package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
	"github.com/joseph-ayodele/invoice-intake/internal/metrics"
	"github.com/joseph-ayodele/invoice-intake/internal/notify"
)

// FlagStore is the audit-row side of the store.
type FlagStore interface {
	UpdateFlag(ctx context.Context, fileID string, flagged bool) (int64, error)
	CountExcept(ctx context.Context, fileID string) (int, error)
}

// InvoiceStore persists accepted invoices.
type InvoiceStore interface {
	Insert(ctx context.Context, record invoice.Record) (*entity.Invoice, error)
}

// Dispatcher executes tool calls against injected collaborators.
type Dispatcher struct {
	flags    FlagStore
	invoices InvoiceStore
	mailer   notify.Mailer
	logger   *slog.Logger
}

func NewDispatcher(flags FlagStore, invoices InvoiceStore, mailer notify.Mailer, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{flags: flags, invoices: invoices, mailer: mailer, logger: logger}
}

// DispatchRaw parses lenient tool input and dispatches it.
func (d *Dispatcher) DispatchRaw(ctx context.Context, tool, input string) (string, error) {
	call, err := ParseCall(tool, input)
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(tool, "invalid").Inc()
		d.logger.Warn("agent.tool.bad_input", "tool", tool, "error", err)
		return "", err
	}
	return d.Dispatch(ctx, call)
}

// Dispatch runs one call and returns its human-readable result.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (string, error) {
	tool := call.Tool()
	start := time.Now()
	if err := call.Validate(); err != nil {
		metrics.ToolCallsTotal.WithLabelValues(tool, "invalid").Inc()
		d.logger.Warn("agent.tool.invalid", "tool", tool, "error", err)
		return "", err
	}

	var (
		result string
		err    error
	)
	switch c := call.(type) {
	case UpdateFlag:
		result, err = d.updateFlag(ctx, c)
	case PushInvoice:
		result, err = d.pushInvoice(ctx, c)
	case SendRejection:
		result, err = d.sendRejection(ctx, c)
	case FetchPeers:
		result, err = d.fetchPeers(ctx, c)
	default:
		err = fmt.Errorf("%w: unsupported call %T", common.ErrInvalidInput, call)
	}

	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(tool, "error").Inc()
		d.logger.Error("agent.tool.failed", "tool", tool, "file_id", common.FileIDFromContext(ctx), "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	metrics.ToolCallsTotal.WithLabelValues(tool, "ok").Inc()
	d.logger.Info("agent.tool.ok", "tool", tool, "file_id", common.FileIDFromContext(ctx), "result", result, "elapsed_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (d *Dispatcher) updateFlag(ctx context.Context, c UpdateFlag) (string, error) {
	flagged := !c.IsValid
	n, err := d.flags.UpdateFlag(ctx, c.FileID, flagged)
	if err != nil {
		return "", err
	}
	if n == 0 {
		d.logger.Warn("agent.update_flag.no_rows", "file_id", c.FileID)
	}
	return fmt.Sprintf("Successfully updated: flagged=%t, visited=true for file_id=%s", flagged, c.FileID), nil
}

func (d *Dispatcher) pushInvoice(ctx context.Context, c PushInvoice) (string, error) {
	record := invoice.Record(maps.Clone(c.Record))
	if err := record.FlattenStructured(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	inv, err := d.invoices.Insert(ctx, record)
	if err != nil {
		return "", err
	}
	d.logger.Info("agent.push_invoice.stored", "id", inv.ID, "file_id", inv.FileID)
	return "Successfully inserted invoice into invoice_db", nil
}

func (d *Dispatcher) sendRejection(ctx context.Context, c SendRejection) (string, error) {
	to := recipientAddress(strings.TrimSpace(c.Recipient))
	if to == "" {
		return "", common.NewAppError("NO_RECIPIENT", "rejection has no recipient", common.ErrNoRecipient)
	}
	if err := d.mailer.SendRejection(ctx, to, c.Reason); err != nil {
		return "", err
	}
	return "Email sent to " + to, nil
}

func (d *Dispatcher) fetchPeers(ctx context.Context, c FetchPeers) (string, error) {
	n, err := d.flags.CountExcept(ctx, c.FileID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Found %d other invoices", n), nil
}
