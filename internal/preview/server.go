// Package preview serves a project's templates over HTTP with live
// reload: pages rendered through it subscribe to an SSE event stream
// and reload whenever a template they came from changes on disk.
package preview

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/weft/pkg/spi"
	"github.com/leapstack-labs/weft/pkg/template"
)

// Config holds configuration for the preview server.
type Config struct {
	// Loader resolves and watches the project's templates. Required.
	Loader *template.Loader
	// Provider supplies the render variables for viewed templates.
	// Nil renders with an empty context.
	Provider spi.ContextProvider
	// Addr is the listen address, ":8080" when empty.
	Addr string
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Server is the preview HTTP server.
type Server struct {
	loader   *template.Loader
	provider spi.ContextProvider
	addr     string
	logger   *slog.Logger
	hub      *hub
	index    *page
}

// New creates a preview server.
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		loader:   cfg.Loader,
		provider: cfg.Provider,
		addr:     addr,
		logger:   logger,
		hub:      newHub(),
	}
}

// Serve starts the server and blocks until the context is cancelled or
// a component fails.
func (s *Server) Serve(ctx context.Context) error {
	index, err := newPage("index", indexSrc)
	if err != nil {
		return err
	}
	s.index = index

	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.Compress(5),
	)
	s.setupRoutes(r)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: r,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Watch the template roots and fan changes out to the clients. The
	// loader invalidates its caches before delivering a batch, so a
	// reload triggered here always re-renders from fresh sources.
	eg.Go(func() error {
		changes, err := s.loader.Watch(egctx)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		for batch := range changes {
			s.logger.Debug("templates changed", "paths", batch, "clients", s.hub.count())
			s.hub.broadcast(batch)
		}
		return nil
	})

	eg.Go(func() error {
		s.logger.Info("preview server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down preview server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// setupRoutes configures the preview routes on r.
func (s *Server) setupRoutes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Get("/view/*", s.handleView)
	r.Get("/events", s.handleEvents)
	r.Get("/healthz", s.handleHealthz)
}
