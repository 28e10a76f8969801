// Package pipeline turns one document into a validated invoice and drives
// the resulting actions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
	"github.com/joseph-ayodele/invoice-intake/internal/metrics"
)

// Extractor is the extraction pipeline: OCR, model prompt, JSON recovery,
// normalization and provenance.
type Extractor struct {
	text   extract.TextExtractor
	fields extract.FieldExtractor
	logger *slog.Logger
}

func NewExtractor(text extract.TextExtractor, fields extract.FieldExtractor, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{text: text, fields: fields, logger: logger}
}

// Extract returns the normalized record for the document at path with
// Received_From set to sender and file_id attached. A parse failure comes
// back as a failed Result; an error means the document was unusable or a
// collaborator failed.
func (e *Extractor) Extract(ctx context.Context, path, fileID, sender string) (invoice.Result, error) {
	log := e.logger.With("file_id", fileID, "path", path)
	start := time.Now()

	ext := constants.NormalizeExt(filepath.Ext(path))
	if constants.KindOf(ext) == constants.FileKindUnsupported {
		metrics.ExtractionFailuresTotal.WithLabelValues("unsupported").Inc()
		log.Warn("pipeline.extract.unsupported", "ext", ext)
		return invoice.Result{}, common.NewAppError("UNSUPPORTED_FILE",
			fmt.Sprintf("must be PDF or image, got %q", ext), common.ErrUnsupportedFile)
	}

	log.Info("pipeline.extract.start", "sender", sender)
	text, err := e.text.Extract(ctx, path)
	if err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues("ocr").Inc()
		return invoice.Result{}, fmt.Errorf("ocr: %w", err)
	}
	log.Debug("pipeline.extract.ocr_ok", "pages", text.Pages, "method", text.Method, "text_len", len(text.Text))

	res, err := e.fields.ExtractFields(ctx, text.Text, sender)
	if err != nil {
		metrics.ExtractionFailuresTotal.WithLabelValues("llm").Inc()
		return invoice.Result{}, fmt.Errorf("field extraction: %w", err)
	}
	if !res.OK() {
		metrics.ExtractionFailuresTotal.WithLabelValues("parse").Inc()
		log.Warn("pipeline.extract.parse_failed", "reason", res.Failure.Reason, "exception", res.Failure.Exception)
		return res, nil
	}

	record := res.Record.WithProvenance(fileID, sender)
	if err := record.FlattenStructured(); err != nil {
		return invoice.Result{}, fmt.Errorf("flatten record: %w", err)
	}
	log.Info("pipeline.extract.ok", "elapsed_ms", time.Since(start).Milliseconds())
	return invoice.Parsed(record), nil
}
