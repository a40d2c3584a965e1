// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/starford/quicknote/internal/api"
	"github.com/starford/quicknote/internal/apperr"
	"github.com/starford/quicknote/internal/mcpserver"
	"github.com/starford/quicknote/internal/notestore"
	"github.com/starford/quicknote/internal/session"
	"github.com/starford/quicknote/internal/sse"
	"github.com/starford/quicknote/internal/statedb"
	"github.com/starford/quicknote/internal/storage"
	"github.com/starford/quicknote/internal/tui"
	"github.com/starford/quicknote/internal/watcher"
)

// LockName is the single-instance lock file inside the notes directory.
const LockName = ".quicknote.lock"

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger, closeLog, err := newLogger(app.mode, cfg.App)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("notes_path", cfg.Notes.Path),
		slog.Duration("autosave_interval", cfg.Autosave.Interval),
		slog.Bool("flush_on_switch", cfg.Autosave.FlushOnSwitch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure notes directory exists.
	if err := os.MkdirAll(cfg.Notes.Path, 0o755); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}

	// One process owns the notes directory at a time.
	lock := flock.New(filepath.Join(cfg.Notes.Path, LockName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another QuickNote instance is using %s", cfg.Notes.Path)
	}
	defer lock.Unlock()

	fs, err := storage.NewFS(cfg.Notes.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	db, err := statedb.Open(cfg.Session.StatePath(cfg.Notes.Path))
	if err != nil {
		return fmt.Errorf("init state db: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Event fan-out; each sink must not block.
	var sinks []session.Notifier
	var broker *sse.Broker
	var bridge *tui.Bridge
	switch app.mode {
	case ModeServe:
		broker = sse.NewBroker(time.Second)
		defer broker.Close()
		sinks = append(sinks, broker.Notify)
	case ModeTUI:
		bridge = &tui.Bridge{}
		sinks = append(sinks, bridge.Notify)
	}

	store := notestore.New(fs, logger)
	sess := session.New(store, session.Config{
		Interval:      cfg.Autosave.Interval,
		FlushOnSwitch: cfg.Autosave.FlushOnSwitch,
		Restore:       cfg.Session.Restore,
	}, logger,
		session.WithStateRecorder(db),
		session.WithNotifier(func(ev session.Event) {
			for _, n := range sinks {
				n(ev)
			}
		}),
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sess.Run(gCtx)
	})

	g.Go(func() error {
		err := watcher.Watch(gCtx, cfg.Notes.Path, watcher.DefaultDebounce, logger, func(path string) {
			if err := sess.ExternalChange(gCtx, path); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, apperr.ErrClosed) {
				logger.Warn("external change not applied", slog.String("path", path), slog.String("error", err.Error()))
			}
		})
		if err != nil {
			// Editing still works without change notifications.
			logger.Warn("watcher unavailable", slog.String("error", err.Error()))
		}
		return nil
	})

	switch app.mode {
	case ModeTUI:
		g.Go(func() error {
			defer cancel()
			return tui.Run(gCtx, sess, bridge,
				tui.WithDebounce(cfg.Autosave.EditDebounce),
				tui.WithMaxWait(cfg.Autosave.Interval),
				tui.WithLogger(logger))
		})
	case ModeMCP:
		g.Go(func() error {
			defer cancel()
			logger.Info("Starting MCP server on stdio")
			return mcpserver.New(sess, app.version).ServeStdio()
		})
	default:
		serveHTTP(gCtx, g, cfg, sess, broker, logger)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped")
	return nil
}

func serveHTTP(ctx context.Context, g *errgroup.Group, cfg *Config, sess *session.Session, broker *sse.Broker, logger *slog.Logger) {
	apiRouter := api.NewRouter(sess, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", readyHandler(sess.Done(), broker))

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server...")

		logger.Info("Closing event streams",
			slog.Int("sse_clients", broker.ClientCount()),
			slog.Int64("sse_dropped", broker.Dropped()))
		// SSE streams end when their channels close.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})
}

type readiness struct {
	Status     string `json:"status"`
	SSEClients int    `json:"sse_clients"`
	SSEDropped int64  `json:"sse_dropped"`
}

// readyHandler reports 503 once the session loop has stopped, along with
// event stream statistics.
func readyHandler(sessionDone <-chan struct{}, broker *sse.Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		body := readiness{
			Status:     "ok",
			SSEClients: broker.ClientCount(),
			SSEDropped: broker.Dropped(),
		}
		status := http.StatusOK
		select {
		case <-sessionDone:
			body.Status = "stopping"
			status = http.StatusServiceUnavailable
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// newLogger builds the JSON logger for mode. stdout belongs to the
// terminal in TUI mode and to the protocol in MCP mode.
func newLogger(mode Mode, cfg ApplicationConfig) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var w io.Writer = os.Stdout
	closeFn := func() {}

	switch mode {
	case ModeMCP:
		w = os.Stderr
	case ModeTUI:
		if cfg.LogFile == "" {
			w = io.Discard
			break
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	return slog.New(slog.NewJSONHandler(w, opts)), closeFn, nil
}
