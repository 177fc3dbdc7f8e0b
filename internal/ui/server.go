// Package ui serves a local dashboard over the pipeline: models, rules and
// run history, with a button to trigger a run and live updates over SSE.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapflow/internal/engine"
	"github.com/leapstack-labs/leapflow/internal/registry"
	"github.com/leapstack-labs/leapflow/internal/validate"
	"github.com/leapstack-labs/leapflow/pkg/core"
	"golang.org/x/sync/errgroup"
)

// DefaultPort is the port the dashboard listens on when none is given.
const DefaultPort = 8765

const watchDebounce = 100 * time.Millisecond

// Pipeline is the engine surface the dashboard reads and runs.
type Pipeline interface {
	Registry() *registry.ModelRegistry
	Rules() []validate.Rule
	Store() core.Store
	Environment() string
	RunPipeline(ctx context.Context) (*engine.PipelineResult, error)
}

// Config holds configuration for the UI server.
type Config struct {
	Pipeline Pipeline
	Port     int
	// Watch broadcasts a notice when a CSV under RawDir changes
	Watch  bool
	RawDir string
	Logger *slog.Logger
}

// Server is the dashboard HTTP server.
type Server struct {
	pipeline Pipeline
	port     int
	watch    bool
	rawDir   string
	logger   *slog.Logger
	notifier *Notifier

	// runMu admits one pipeline run at a time
	runMu sync.Mutex
}

// NewServer creates a new UI server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	return &Server{
		pipeline: cfg.Pipeline,
		port:     port,
		watch:    cfg.Watch,
		rawDir:   cfg.RawDir,
		logger:   logger,
		notifier: NewNotifier(),
	}
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Routes returns the dashboard router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Compress(5, "application/json", "text/html"),
	)

	r.Get("/", s.handleIndex)
	r.Get("/updates", s.handleUpdates)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/rules", s.handleRules)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRunDetail)
		r.Post("/run", s.handleRun)
	})

	return r
}

// Serve starts the UI server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting UI server", slog.String("addr", fmt.Sprintf("http://localhost:%d", s.port)))

	eg, egctx := errgroup.WithContext(ctx)

	handler := middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
		NoColor: true,
	})(s.Routes())

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.rawDir != "" {
		eg.Go(func() error {
			return s.watchRaw(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down UI server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watchRaw broadcasts EventRawChanged when a CSV in the raw directory is
// written or created. Bursts of writes are coalesced.
func (s *Server) watchRaw(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.rawDir); err != nil {
		s.logger.Error("failed to watch raw directory", slog.String("dir", s.rawDir), slog.String("error", err.Error()))
		<-ctx.Done()
		return nil
	}

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}

			name := filepath.Base(event.Name)
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watchDebounce, func() {
				s.logger.Debug("raw file changed", slog.String("file", name))
				s.notifier.Broadcast(Event{Kind: EventRawChanged, Detail: name})
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}
