package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-intake/internal/app"
	"github.com/joseph-ayodele/invoice-intake/internal/async"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
	"github.com/joseph-ayodele/invoice-intake/internal/ingest"
	"github.com/joseph-ayodele/invoice-intake/internal/pipeline"
	"github.com/joseph-ayodele/invoice-intake/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{}, logger)
	if err != nil {
		logger.Error("app.init.failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("db.ping.failed", "error", err)
		os.Exit(1)
	}

	// mailbox first: it carries the real sender
	var sources []ingest.Source
	if cfg.Sources.IMAPAddr != "" {
		sources = append(sources, ingest.NewMailboxSource(ingest.MailboxConfig{
			Addr:     cfg.Sources.IMAPAddr,
			Username: cfg.Sources.IMAPUser,
			Password: cfg.Sources.IMAPPass,
			Subject:  cfg.Sources.IMAPSubject,
		}, logger))
	}
	if cfg.Sources.InboxDir != "" {
		sources = append(sources, ingest.NewDirectorySource(ingest.DirectoryConfig{
			Root:       cfg.Sources.InboxDir,
			SkipHidden: true,
			Uploader:   cfg.Sources.DefaultUploader,
		}, a.Extracted.Exists, logger))
	}
	source := ingest.NewChain(logger, sources...)

	proc := pipeline.NewProcessor(source, a.Extractor, a.Extracted, a.Dispatcher, logger)

	pollOpts := []async.Option{
		async.WithInterval(cfg.PollInterval),
		async.WithLogger(logger),
	}
	if cfg.Sources.Watch && cfg.Sources.InboxDir != "" {
		wake, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:    []string{cfg.Sources.InboxDir},
			Debounce: 2 * time.Second,
		}, logger)
		if err != nil {
			logger.Error("watcher.start.failed", "error", err)
			os.Exit(1)
		}
		pollOpts = append(pollOpts, async.WithWake(wake))
	}
	poller := async.NewPoller(proc, pollOpts...)

	// gRPC tool service
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("grpc.listen.failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, hs := server.NewGRPCServer(server.NewToolService(a.Dispatcher, logger), logger)
	go func() {
		logger.Info("grpc.listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc.serve.failed", "error", err)
			stop()
		}
	}()

	// metrics and health
	httpServer := server.NewHTTPServer(cfg.Server.MetricsAddr, server.NewOpsRouter(a.DB, logger))
	go func() {
		logger.Info("http.listening", "addr", cfg.Server.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http.serve.failed", "error", err)
			stop()
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = poller.Run(ctx)
	}()

	<-ctx.Done()
	logger.Info("shutdown.start")
	hs.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http.shutdown.failed", "error", err)
	}
	grpcServer.GracefulStop()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown.poller_timeout")
	}
	logger.Info("shutdown.done")
}
