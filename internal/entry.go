// Package internal provides the application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/cowbump/internal/catalog"
	"github.com/starford/cowbump/internal/mcpserver"
	"github.com/starford/cowbump/internal/watcher"
)

var errConfigRequired = errors.New("config is required")

// NewLogger builds the structured JSON logger. It writes to stderr so that
// command output on stdout stays clean.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// OpenCatalog opens the catalog described by cfg, creating the data
// directory if needed.
func OpenCatalog(cfg *Config, logger *slog.Logger) (*catalog.Catalog, error) {
	if err := os.MkdirAll(cfg.Collection.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cat, err := catalog.Open(catalog.Options{
		Root:       cfg.Collection.Root,
		DBPath:     cfg.Collection.DBPath(),
		BackupPath: cfg.Collection.BackupPath(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	return cat, nil
}

// Run starts watch mode: an initial reconciliation, then a rescan and save
// after every quiet period until ctx is cancelled or a signal arrives. The
// snapshot is saved once more on shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("root", cfg.Collection.Root),
		slog.String("db_path", cfg.Collection.DBPath()),
		slog.Duration("debounce", cfg.Watch.Debounce),
		slog.String("log_level", cfg.App.LogLevel.String()))

	cat, err := OpenCatalog(cfg, logger)
	if err != nil {
		return err
	}

	// The watcher goroutine is the only one touching cat from here on.
	rescan := func() {
		rep, err := cat.Reconcile()
		if err != nil {
			logger.Warn("rescan failed", slog.String("error", err.Error()))
			return
		}
		if rep.Changed() {
			if err := cat.Save(); err != nil {
				logger.Error("save failed", slog.String("error", err.Error()))
			}
		}
		if app.onRescan != nil {
			app.onRescan()
		}
	}
	rescan()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := watcher.Watch(gCtx, cat.Root(), watcher.Options{
			Debounce: cfg.Watch.Debounce,
			Ignore:   cat.Ignore,
		}, logger, rescan)
		if err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	if err := cat.Save(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	logger.Info("Watcher stopped successfully")
	return nil
}

// ServeMCP reconciles once and then serves the MCP tools on stdio until
// the client disconnects or ctx is cancelled.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cat, err := OpenCatalog(app.config, app.logger)
	if err != nil {
		return err
	}
	if _, err := cat.Reconcile(); err != nil {
		app.logger.Warn("initial reconcile failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(cat, app.config.MCP.Autosave, app.logger)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info("MCP server starting on stdio")
	if err := srv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return cat.Save()
}
