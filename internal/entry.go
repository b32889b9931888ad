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

	"github.com/soffiafdz/palimpsest-sub000/internal/api"
	"github.com/soffiafdz/palimpsest-sub000/internal/lint"
	"github.com/soffiafdz/palimpsest-sub000/internal/mcpserver"
	"github.com/soffiafdz/palimpsest-sub000/internal/metrics"
	"github.com/soffiafdz/palimpsest-sub000/internal/pageparser"
	"github.com/soffiafdz/palimpsest-sub000/internal/render"
	"github.com/soffiafdz/palimpsest-sub000/internal/sse"
	"github.com/soffiafdz/palimpsest-sub000/internal/storage"
	"github.com/soffiafdz/palimpsest-sub000/internal/store"
	"github.com/soffiafdz/palimpsest-sub000/internal/syncer"
	"github.com/soffiafdz/palimpsest-sub000/internal/watch"
	"github.com/soffiafdz/palimpsest-sub000/internal/wiki"
	"github.com/soffiafdz/palimpsest-sub000/internal/wikiservice"
)

// components are the wired pieces every command shares.
type components struct {
	db    *store.DB
	files *storage.FS
	gen   *wiki.Generator
	sync  *syncer.Syncer
}

func (c *components) Close() error {
	return c.db.Close()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		out := app.logOutput
		if out == nil {
			out = os.Stderr
		}
		app.logger = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	return app, nil
}

// open wires storage, the database, the generator and the syncer.
func (a *application) open() (*components, error) {
	cfg := a.config

	a.logger.Debug("Configuration loaded",
		slog.String("wiki_path", cfg.Wiki.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Wiki.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create wiki dir: %w", err)
	}
	files, err := storage.NewFS(cfg.Wiki.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	r, err := render.New(cfg.Wiki.Templates)
	if err != nil {
		return nil, fmt.Errorf("init templates: %w", err)
	}
	reg, err := wiki.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	gen := wiki.NewGenerator(db, files, r, reg, a.logger)
	parser := pageparser.New(pageparser.NewKeyCache(db), a.logger)
	return &components{
		db:    db,
		files: files,
		gen:   gen,
		sync:  syncer.New(db, gen, parser, a.logger),
	}, nil
}

func (a *application) watcher(c *components, onEdit watch.EditCallback) *watch.Watcher {
	return watch.New(c.files, c.db, watch.Options{
		Origin:   a.config.Wiki.Origin,
		Debounce: a.config.Sync.Debounce,
		Logger:   a.logger,
		OnEdit:   onEdit,
	})
}

// Generate renders the wiki for scope.
func Generate(ctx context.Context, scope wiki.Scope, opts ...Option) (*wiki.Stats, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := app.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return wikiservice.New(c.db, c.gen, c.sync, wikiservice.WithLogger(app.logger)).Generate(ctx, scope)
}

// Sync runs one sync pass. The marker is refreshed from disk first so that
// edits made while no watcher was running are not overwritten.
func Sync(ctx context.Context, so syncer.Options, opts ...Option) (*syncer.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := app.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if _, err := app.watcher(c, nil).Scan(ctx); err != nil {
		return nil, fmt.Errorf("scan edits: %w", err)
	}
	return wikiservice.New(c.db, c.gen, c.sync, wikiservice.WithLogger(app.logger)).Sync(ctx, so)
}

// Lint validates editable pages without touching the database. No paths
// means every editable page.
func Lint(ctx context.Context, paths []string, opts ...Option) (*lint.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	c, err := app.open()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return wikiservice.New(c.db, c.gen, c.sync, wikiservice.WithLogger(app.logger)).Lint(ctx, paths...)
}

// Watch records hand edits in the pending-edit marker until ctx is done.
func Watch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.Close()

	app.logger.Info("Watching wiki", slog.String("wiki_path", app.config.Wiki.Path))
	return app.watcher(c, nil).Run(ctx)
}

// ServeMCP serves the MCP tools over stdio.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.Close()

	svc := wikiservice.New(c.db, c.gen, c.sync, wikiservice.WithLogger(app.logger))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// Run starts the HTTP server, the edit watcher and the event stream.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger
	slog.SetDefault(logger)

	c, err := app.open()
	if err != nil {
		return err
	}
	defer c.Close()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rec := metrics.NewPrometheus(nil).WithRuntimeCollectors()

	svc := wikiservice.New(c.db, c.gen, c.sync,
		wikiservice.WithEvents(broker),
		wikiservice.WithMetrics(rec),
		wikiservice.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health and metrics endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rec.Handler())

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.API(), broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Sync.Watch {
		g.Go(func() error {
			return app.watcher(c, svc.PagesEdited).Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

// errShutdown cancels the group once a signal arrives so the watcher stops
// along with the HTTP server.
var errShutdown = errors.New("shutdown")
