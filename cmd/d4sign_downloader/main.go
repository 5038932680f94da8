package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/d4sign_downloader/internal/cleanup"
	"github.com/italolelis/d4sign_downloader/internal/config"
	"github.com/italolelis/d4sign_downloader/internal/d4sign"
	"github.com/italolelis/d4sign_downloader/internal/document"
	"github.com/italolelis/d4sign_downloader/internal/downloader"
	"github.com/italolelis/d4sign_downloader/internal/filestore"
	"github.com/italolelis/d4sign_downloader/internal/http/rest"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
	"github.com/italolelis/d4sign_downloader/internal/notifier"
	"github.com/italolelis/d4sign_downloader/internal/orchestrator"
	"github.com/italolelis/d4sign_downloader/internal/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	handler := logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger := slog.New(handler).With("run_id", downloader.GenerateRunID())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("d4sign downloader starting...", "log_level", cfg.LogLevel, "version", version)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("shutdown complete")

			return
		}

		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		DiskPath:       cfg.TargetDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		if err := tel.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Signing Service Client
	client := document.NewInstrumentedClient(
		d4sign.NewClient(cfg.D4Sign.BaseURL, cfg.D4Sign.TokenAPI, cfg.D4Sign.CryptKey, d4sign.WithTimeout(cfg.D4Sign.RequestTimeout)),
		tel,
		"d4sign",
	)

	// =========================================================================
	// Start Orchestrator
	guard := filestore.NewGuard(cfg.TargetDir)
	job := downloader.NewJob(client, guard, downloader.NewHTTPTransferer(nil), tel, cfg.D4Sign.RateLimitReason)

	orch := orchestrator.New(client, job, orchestrator.Config{
		Capacity:       cfg.MaxParallel,
		JobTimeout:     cfg.JobTimeout,
		ReportInterval: cfg.ReportInterval,
		Cooldown:       cfg.RetryCooldown,
		MaxPasses:      cfg.MaxPasses,
		MaxDuration:    cfg.MaxRetryDuration,
	},
		orchestrator.WithNotifier(notifier.New(cfg.DiscordWebhookURL)),
		orchestrator.WithTelemetry(tel),
		orchestrator.WithSweeper(cleanup.NewSweeper(cfg.TargetDir, cfg.PartialMaxAge)),
	)

	// =========================================================================
	// Start API Service

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	var server *http.Server

	if cfg.Web.Enabled {
		server = setupServer(ctx, orch, tel, cfg)

		go func() {
			logger.Info("Initializing API support", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- err
			}
		}()
	}

	logger.Info("starting downloads",
		"target_dir", cfg.TargetDir,
		"max_parallel", cfg.MaxParallel,
		"job_timeout", cfg.JobTimeout.String(),
		"retry_cooldown", cfg.RetryCooldown.String(),
		"max_passes", cfg.MaxPasses,
	)

	// =========================================================================
	// Start Main Loop
	runErrors := make(chan error, 1)

	go func() {
		runErrors <- orch.Run(ctx)
	}()

	var runErr error

	select {
	case err := <-serverErrors:
		runErr = fmt.Errorf("server error: %w", err)
	case runErr = <-runErrors:
	}

	if server != nil {
		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return errors.Join(runErr, fmt.Errorf("could not stop server gracefully: %w", err))
			}
		}
	}

	return runErr
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, orch *orchestrator.Orchestrator, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Mount("/", rest.NewStatusHandler(orch, tel.Handler()).Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
