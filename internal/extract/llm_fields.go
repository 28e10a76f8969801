package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
	"github.com/joseph-ayodele/invoice-intake/internal/llm"
	"github.com/joseph-ayodele/invoice-intake/internal/metrics"
)

// LLMFieldExtractor prompts a language model with the OCR text and recovers
// a normalized record from whatever it answers.
type LLMFieldExtractor struct {
	llm    llm.Completer
	logger *slog.Logger
}

func NewLLMFieldExtractor(c llm.Completer, logger *slog.Logger) *LLMFieldExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMFieldExtractor{llm: c, logger: logger}
}

func (x *LLMFieldExtractor) ExtractFields(ctx context.Context, text, sender string) (invoice.Result, error) {
	prompt := llm.BuildExtractionPrompt(text, sender)

	start := time.Now()
	out, err := x.llm.Complete(ctx, prompt)
	elapsed := time.Since(start)
	metrics.LLMDuration.Observe(elapsed.Seconds())
	if err != nil {
		x.logger.Error("extract.llm.failed", "error", err, "elapsed_ms", elapsed.Milliseconds())
		return invoice.Result{}, common.NewAppError("LLM_ERROR", "completion failed", fmt.Errorf("%w: %w", common.ErrCollaborator, err))
	}
	x.logger.Debug("extract.llm.ok", "elapsed_ms", elapsed.Milliseconds(), "output_len", len(out))

	res := invoice.ParseResponse(out).Normalize()
	if !res.OK() {
		x.logger.Warn("extract.llm.unparseable",
			"reason", res.Failure.Reason,
			"exception", res.Failure.Exception,
		)
	}
	return res, nil
}
