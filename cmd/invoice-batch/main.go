package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/app"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/export"
	"github.com/joseph-ayodele/invoice-intake/internal/ingest"
	"github.com/joseph-ayodele/invoice-intake/internal/pipeline"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		file    = flag.String("file", "", "invoice file to process, PDF or image (required)")
		sender  = flag.String("sender", ingest.UnknownUploader, "sender address recorded as Received_From")
		inmem   = flag.Bool("inmem", true, "use an in-memory SQLite database instead of DATABASE_URL")
		dryRun  = flag.Bool("dry-run", true, "log rejection mail instead of sending it")
		xlsx    = flag.String("xlsx", "", "write stored invoices to this XLSX file after processing")
		timeout = flag.Duration("timeout", 10*time.Minute, "overall processing timeout")
	)
	flag.Parse()

	if *file == "" {
		printError("Error: --file is required\n")
		os.Exit(2)
	}

	// stdout carries the JSON result
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Options{InMemory: *inmem, DryRun: *dryRun}, logger)
	if err != nil {
		logger.Error("app.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	doc, err := ingest.CheckoutFile(*file, *sender)
	if err != nil {
		logger.Error("checkout.failed", "file", *file, "error", err)
		os.Exit(1)
	}

	proc := pipeline.NewProcessor(nil, a.Extractor, a.Extracted, a.Dispatcher, logger)
	out := proc.ProcessDocument(ctx, doc)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		printError("Error: encode result: %v\n", err)
		os.Exit(1)
	}

	if *xlsx != "" {
		f, err := os.Create(*xlsx)
		if err != nil {
			logger.Error("xlsx.create.failed", "path", *xlsx, "error", err)
			os.Exit(1)
		}
		n, err := export.NewService(a.Invoices, logger).ExportInvoices(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			logger.Error("xlsx.export.failed", "path", *xlsx, "error", err)
			os.Exit(1)
		}
		logger.Info("xlsx.export.ok", "path", *xlsx, "rows", n)
	}

	if out.Status == constants.OutcomeFailed {
		os.Exit(1)
	}
}
