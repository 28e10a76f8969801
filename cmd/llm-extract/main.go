package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/app"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/extract"
	"github.com/joseph-ayodele/invoice-intake/internal/invoice"
)

// llm-extract runs OCR text through the prompt, the model and the response
// extractor, then validates the result. Useful when tuning prompts.
func main() {
	var (
		textFile = flag.String("text", "", "file holding OCR text (required)")
		sender   = flag.String("sender", "unknown@uploader.com", "sender address for the prompt")
		times    = flag.Int("times", 1, "repeat the extraction this many times")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if *textFile == "" {
		logger.Error("usage: llm-extract -text <ocr.txt> [-sender addr] [-times n]")
		os.Exit(2)
	}
	text, err := os.ReadFile(*textFile)
	if err != nil {
		logger.Error("read text", "path", *textFile, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	completer, err := app.NewCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Error("llm.init.failed", "error", err)
		os.Exit(2)
	}
	fields := extract.NewLLMFieldExtractor(completer, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failures := 0
	for i := 1; i <= *times; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+30*time.Second)
		start := time.Now()
		res, err := fields.ExtractFields(ctx, string(text), *sender)
		cancel()
		if err != nil {
			logger.Error("llm.run.error", "iter", i, "error", err)
			failures++
			continue
		}

		out := map[string]any{"iter": i, "elapsed_ms": time.Since(start).Milliseconds()}
		if res.OK() {
			out["record"] = res.Record
			out["validation"] = invoice.Validate(res.Record)
		} else {
			out["failure"] = res.AsRecord()
			failures++
		}
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
			os.Exit(1)
		}
	}
	logger.Info("done", "times", *times, "failures", failures)
	if failures == *times {
		os.Exit(1)
	}
}
