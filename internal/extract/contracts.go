package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.FileKind
	Method     string // "pdf-ocr" | "image-ocr"
	Duration   time.Duration
	Warnings   []string
}

// FieldExtractor is Stage 2: text -> invoice record, or a parse failure.
// A returned error means the collaborator itself failed.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text, sender string) (invoice.Result, error)
}
