// Package database opens the storage backend selected by configuration.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/grades/internal/config"
	"github.com/JonMunkholm/grades/internal/core"
	"github.com/JonMunkholm/grades/internal/database/postgres"
	"github.com/JonMunkholm/grades/internal/database/sqlite"
)

// Supported STORAGE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ErrUnknownDriver is returned for a STORAGE_DRIVER that has no backend.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Open connects to the configured backend. The returned func releases it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		pool, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		store := postgres.New(pool)
		if cfg.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("postgres: %w", err)
			}
		}
		slog.Info("connected to database", "driver", DriverPostgres, "name", pool.Config().ConnConfig.Database)
		return store, pool.Close, nil

	case DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		slog.Info("opened database", "driver", DriverSQLite, "path", cfg.SQLitePath)
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
