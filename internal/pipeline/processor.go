package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/agent"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/entity"
	"github.com/joseph-ayodele/invoice-intake/internal/ingest"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
	"github.com/joseph-ayodele/invoice-intake/internal/metrics"
)

// ProcessingFailedMessage is all an end user learns about internal errors.
const ProcessingFailedMessage = "processing failed"

// DocumentExtractor turns a document into a record.
type DocumentExtractor interface {
	Extract(ctx context.Context, path, fileID, sender string) (invoice.Result, error)
}

// AuditStore keeps the extracted_information row of every extracted document.
type AuditStore interface {
	Insert(ctx context.Context, fileID string, record map[string]any) (*entity.ExtractedInformation, error)
}

// CallDispatcher executes planned tool calls.
type CallDispatcher interface {
	Dispatch(ctx context.Context, call agent.Call) (string, error)
}

// Action is one executed tool call.
type Action struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Outcome reports what happened to one document.
type Outcome struct {
	FileID     string                    `json:"file_id,omitempty"`
	Sender     string                    `json:"sender,omitempty"`
	Status     constants.Outcome         `json:"status"`
	Reason     string                    `json:"reason,omitempty"`
	Record     invoice.Record            `json:"record,omitempty"`
	Validation *invoice.ValidationResult `json:"validation,omitempty"`
	Actions    []Action                  `json:"actions,omitempty"`
}

// Processor runs one document at a time from source to actions.
type Processor struct {
	source     ingest.Source
	extractor  DocumentExtractor
	audit      AuditStore
	dispatcher CallDispatcher
	logger     *slog.Logger
}

func NewProcessor(source ingest.Source, extractor DocumentExtractor, audit AuditStore, dispatcher CallDispatcher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:     source,
		extractor:  extractor,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ProcessNext pulls one document and processes it. Source failures are
// logged and reported as an idle cycle.
func (p *Processor) ProcessNext(ctx context.Context) Outcome {
	doc, err := p.source.Next(ctx)
	if err != nil {
		p.logger.Error("pipeline.source.failed", "source", p.source.Name(), "error", err)
		return Outcome{Status: constants.OutcomeIdle}
	}
	if doc == nil {
		p.logger.Debug("pipeline.idle")
		return Outcome{Status: constants.OutcomeIdle}
	}
	return p.ProcessDocument(ctx, doc)
}

// ProcessDocument owns doc and releases it on every path.
func (p *Processor) ProcessDocument(ctx context.Context, doc *ingest.Document) (out Outcome) {
	ctx = common.WithFileID(ctx, doc.FileID)
	log := p.logger.With("file_id", doc.FileID, "sender", doc.Sender)
	start := time.Now()

	defer func() {
		if err := doc.Release(); err != nil {
			log.Warn("pipeline.cleanup.failed", "path", doc.Path, "error", err)
		}
		metrics.DocumentsTotal.WithLabelValues(string(out.Status)).Inc()
		log.Info("pipeline.done", "status", out.Status, "elapsed_ms", time.Since(start).Milliseconds())
	}()

	out = Outcome{FileID: doc.FileID, Sender: doc.Sender}

	res, err := p.extractor.Extract(ctx, doc.Path, doc.FileID, doc.Sender)
	if err != nil {
		log.Error("pipeline.extract.failed", "error", err)
		out.Status = constants.OutcomeFailed
		out.Reason = ProcessingFailedMessage
		return out
	}
	if !res.OK() {
		out.Status = constants.OutcomeFailed
		out.Reason = res.Failure.Reason
		out.Record = res.AsRecord()
		return out
	}
	record := res.Record
	out.Record = record

	if _, err := p.audit.Insert(ctx, doc.FileID, record); err != nil {
		log.Error("pipeline.audit.insert_failed", "error", err)
	}

	v := invoice.Validate(record)
	out.Validation = &v
	out.Reason = v.Reason
	for _, f := range v.Missing {
		metrics.MissingFieldsTotal.WithLabelValues(f).Inc()
	}
	log.Info("pipeline.validated", "valid", v.Valid, "reason", v.Reason)

	for _, call := range agent.Plan(doc.FileID, record, v) {
		result, err := p.dispatcher.Dispatch(ctx, call)
		action := Action{Tool: call.Tool(), Result: result}
		if err != nil {
			action.Error = err.Error()
			out.Actions = append(out.Actions, action)
			log.Error("pipeline.action.failed", "tool", call.Tool(), "error", err)
			out.Status = constants.OutcomeFailed
			return out
		}
		out.Actions = append(out.Actions, action)
	}

	if v.Valid {
		out.Status = constants.OutcomeAccepted
	} else {
		out.Status = constants.OutcomeRejected
	}
	return out
}
