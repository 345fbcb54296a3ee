// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
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

	"github.com/starford/studykb/internal/api"
	"github.com/starford/studykb/internal/index"
	"github.com/starford/studykb/internal/kb"
	"github.com/starford/studykb/internal/mcpserver"
	"github.com/starford/studykb/internal/progress"
	"github.com/starford/studykb/internal/review"
	"github.com/starford/studykb/internal/sse"
	"github.com/starford/studykb/internal/workspace"
)

type services struct {
	kb        *kb.Service
	progress  *progress.Service
	workspace *workspace.Service
	db        *index.DB
}

// buildServices creates the data directories, opens the index, and wires the
// domain services shared by the HTTP and MCP entry points.
func buildServices(cfg *Config, logger *slog.Logger) (*services, error) {
	for _, dir := range []string{cfg.KB.Path, cfg.Progress.Path, cfg.Workspaces.Path} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, cfg.KB.Path, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	scheduler := review.NewScheduler(cfg.Review.InitialIntervalDays, cfg.Review.Multiplier, cfg.Review.MaxIntervalDays)

	workspaceSvc, err := workspace.NewService(cfg.Workspaces.Path, workspace.Limits{
		MaxFileSize:        cfg.Workspaces.MaxFileSize,
		MaxReadLines:       cfg.Workspaces.MaxReadLines,
		MaxHistoryVersions: cfg.Workspaces.MaxHistoryVersions,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init workspaces: %w", err)
	}

	return &services{
		kb:        kb.NewService(cfg.KB.Path, cfg.KB.MaxReadLines),
		progress:  progress.NewService(cfg.Progress.Path, scheduler),
		workspace: workspaceSvc,
		db:        db,
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("kb_path", cfg.KB.Path),
		slog.String("workspaces_path", cfg.Workspaces.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	// Build API handler and router.
	h := api.NewHandler(svcs.kb, svcs.progress, svcs.workspace, svcs.db, broker, api.GrepLimits{
		ContextLines: cfg.Grep.ContextLines,
		MaxMatches:   cfg.Grep.MaxMatches,
	})
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start the knowledge-base watcher with an SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, svcs.db, cfg.KB.Path, logger, func(kind, path string) {
			broker.PublishMaterialEvent(kind, path)
		})
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
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream.
func RunMCP(_ context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	svcs, err := buildServices(cfg, logger)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	srv := mcpserver.New(svcs.kb, svcs.progress, svcs.workspace, svcs.db, mcpserver.GrepLimits{
		ContextLines: cfg.Grep.ContextLines,
		MaxMatches:   cfg.Grep.MaxMatches,
	})

	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}
