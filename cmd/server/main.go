package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/grades/internal/archive"
	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/database"
	"github.com/JonMunkholm/grades/internal/logging"
	"github.com/JonMunkholm/grades/internal/metrics"
	"github.com/JonMunkholm/grades/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists; real environment variables take precedence.
	if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	validator, err := core.NewValidator(cfg.Validation.DateLayout, cfg.Validation.GroupPattern)
	if err != nil {
		return err
	}

	m := metrics.NewManager(
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithMetricsEnabled(cfg.Metrics.Enabled),
	)

	opts := []core.Option{
		core.WithValidator(validator),
		core.WithUploadLimiter(core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)),
		core.WithUploadTimeout(cfg.Upload.Timeout),
		core.WithRecorder(m),
	}
	if cfg.Archive.Enabled() {
		archiver, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		opts = append(opts, core.WithArchiver(archiver))
		slog.Info("upload archive enabled", "bucket", cfg.Archive.Bucket, "prefix", cfg.Archive.Prefix)
	}

	service := core.NewService(store, opts...)
	server := web.NewServer(service, cfg, m)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"storage", cfg.Database.Driver,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Handlers may still be inside IngestUpload after their connection closed.
		if status := service.UploadLimiterStatus(); status.Active > 0 {
			slog.Info("waiting for uploads to complete", "active", status.Active)
			if err := service.WaitForUploads(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}
