// Command gradesctl ingests grade CSV files and runs the twos reports
// against the configured storage without going through the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/grades/internal/archive"
	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/database"
	"github.com/JonMunkholm/grades/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openService).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// openService builds the app from the environment.
func openService(ctx context.Context) (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stderr))

	store, closeStore, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	validator, err := core.NewValidator(cfg.Validation.DateLayout, cfg.Validation.GroupPattern)
	if err != nil {
		closeStore()
		return nil, err
	}

	opts := []core.Option{
		core.WithValidator(validator),
		core.WithUploadTimeout(cfg.Upload.Timeout),
	}
	if cfg.Archive.Enabled() {
		archiver, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			closeStore()
			return nil, fmt.Errorf("archive: %w", err)
		}
		opts = append(opts, core.WithArchiver(archiver))
	}

	return &app{
		svc:   core.NewService(store, opts...),
		cfg:   cfg,
		store: store,
		close: closeStore,
	}, nil
}
