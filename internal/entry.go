// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/dreamvault/internal/api"
	"github.com/starford/dreamvault/internal/apperr"
	"github.com/starford/dreamvault/internal/entryservice"
	"github.com/starford/dreamvault/internal/index"
	"github.com/starford/dreamvault/internal/journal"
	"github.com/starford/dreamvault/internal/mcpserver"
	"github.com/starford/dreamvault/internal/scrape"
	"github.com/starford/dreamvault/internal/sse"
	"github.com/starford/dreamvault/internal/storage"
)

// components are the shared building blocks of every command.
type components struct {
	logger  *slog.Logger
	db      *index.DB
	scraper *scrape.Scraper
	svc     *entryservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout, logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build opens the vault and the index and wires the extraction pipeline.
// The caller closes c.db.
func (a *application) build(notify index.EventCallback, extra ...entryservice.Option) (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("selection_mode", string(cfg.Scrape.Mode)),
		slog.Int("batch_size", cfg.Scrape.BatchSize),
		slog.Int("metrics", len(cfg.Metrics)),
		slog.String("conflict_strategy", cfg.Frontmatter.ConflictStrategy),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	extractor := journal.New(journal.Options{
		Callouts:    cfg.Callouts,
		Metrics:     cfg.Metrics,
		Frontmatter: cfg.Frontmatter.Options(),
		Strategy:    cfg.Frontmatter.Strategy(),
	})
	scraper := scrape.New(store, extractor,
		scrape.WithBatchSize(cfg.Scrape.BatchSize),
		scrape.WithLogger(logger),
	)
	svcOpts := append([]entryservice.Option{
		entryservice.WithLogger(logger),
		entryservice.WithNotifier(notify),
		entryservice.WithWriteBack(cfg.Frontmatter.WriteBack),
	}, extra...)
	svc := entryservice.New(store, db, scraper, cfg.Scrape.Selection, svcOpts...)

	return &components{logger: logger, db: db, scraper: scraper, svc: svc}, nil
}

// initialSync scrapes the configured selection. An empty selection is not
// fatal for long-running commands.
func (c *components) initialSync(ctx context.Context) {
	report, err := c.svc.Scrape(ctx, nil)
	switch {
	case errors.Is(err, apperr.ErrNoDocuments):
		c.logger.Warn("initial sync: no documents selected")
	case err != nil:
		c.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	default:
		c.logger.Info("initial sync done",
			slog.String("run_id", report.RunID),
			slog.Int("entries", report.Tally.Entries),
			slog.Int("conflicts", report.Tally.Conflicts),
			slog.Int("failed", report.Tally.Failed))
	}
}

// Run starts the HTTP server, the SSE broker and the vault watcher.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := app.build(broker.PublishDocumentEvent, entryservice.WithScrapeListener(func(r *entryservice.ScrapeReport) {
		broker.PublishScrapeCompleted(r.RunID, r.Tally)
	}))
	if err != nil {
		return err
	}
	defer c.db.Close()
	logger := c.logger

	c.initialSync(ctx)

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.svc.Stats(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start vault watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, c.db, c.scraper, cfg.Scrape.Selection, cfg.Vault.Path, logger, broker.PublishDocumentEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
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

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// Scrape runs one scrape of the configured selection and prints the report
// as JSON. Failed documents do not make the command fail.
func Scrape(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	report, err := c.svc.Scrape(ctx, nil)
	if err != nil {
		if errors.Is(err, apperr.ErrNoDocuments) {
			return fmt.Errorf("scrape: %w; check scrape.selection_mode and vault.path", err)
		}
		if report == nil {
			return fmt.Errorf("scrape: %w", err)
		}
		c.logger.Warn("scrape interrupted", slog.String("error", err.Error()))
	}
	return app.printJSON(report)
}

// WriteBack updates the front matter of one document and prints the result.
func WriteBack(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if !app.config.Frontmatter.WriteBack {
		return fmt.Errorf("write-back is disabled; set frontmatter.write_back: true")
	}
	c, err := app.build(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	res, err := c.svc.WriteBack(ctx, path, "")
	if err != nil {
		return fmt.Errorf("write-back %s: %w", path, err)
	}
	return app.printJSON(res)
}

// ServeMCP serves the MCP tools on stdin/stdout. Logs go to the configured
// log output, which must not be stdout.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	c, err := app.build(nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	c.initialSync(ctx)

	srv := mcpserver.New(c.svc, app.version)
	c.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

func (a *application) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
