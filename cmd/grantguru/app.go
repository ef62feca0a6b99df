package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/colby-usm/GrantGuru/internal/config"
	"github.com/colby-usm/GrantGuru/internal/db"
	"github.com/colby-usm/GrantGuru/internal/ingest"
	"github.com/colby-usm/GrantGuru/internal/scraper"
	"github.com/colby-usm/GrantGuru/internal/store"
)

// setup loads the configuration and installs the default slog logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cfg, nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", format)
}

// openStore connects the storage driver selected by STORE_DRIVER. The
// returned close func releases the underlying pool.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		log.Printf("[grantguru] Opening SQLite %s…", cfg.SQLitePath)
		gdb, err := db.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		closeDB := func() {
			if sqlDB, err := gdb.DB(); err == nil {
				sqlDB.Close()
			}
		}
		s, err := store.NewGormStore(gdb)
		if err != nil {
			closeDB()
			return nil, nil, err
		}
		log.Println("[grantguru] SQLite ready ✓")
		return s, closeDB, nil

	default:
		log.Println("[grantguru] Connecting to PostgreSQL…")
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Println("[grantguru] PostgreSQL connected ✓")
		return store.NewPostgresStore(pool), pool.Close, nil
	}
}

// newOrchestrator assembles the pipeline against the configured upstream.
func newOrchestrator(cfg *config.Config, s store.Store) *ingest.Orchestrator {
	return ingest.New(
		scraper.NewDiscoverer(cfg.SearchURL, cfg.SearchPageSize, cfg.SearchTimeout),
		scraper.NewDetailFetcher(cfg.DetailURL, cfg.DetailTimeout),
		nil,
		store.NewReconciler(s),
		ingest.Options{
			Delay:        cfg.FetchDelay,
			Limit:        cfg.FetchLimit,
			ExcludeTerms: cfg.ExcludeTerms,
		},
	)
}
