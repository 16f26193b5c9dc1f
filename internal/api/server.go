// Package api serves the read-only biodiversity API: species and occurrence
// listings, GeoJSON map data, statistics, the import log and CSV exports.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"

	"github.com/mkoziy/acat/internal/config"
	"github.com/mkoziy/acat/internal/metrics"
)

// Server is the HTTP server for the read API.
type Server struct {
	db       bun.IDB
	cfg      config.ServerConfig
	router   *chi.Mux
	server   *http.Server
	registry *prometheus.Registry
	metrics  *metrics.HTTPMetrics
}

// NewServer creates a Server. A nil registry gets a fresh one with the Go
// and process collectors.
func NewServer(db bun.IDB, cfg config.ServerConfig, registry *prometheus.Registry) (*Server, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:       db,
		cfg:      cfg,
		router:   chi.NewRouter(),
		registry: registry,
		metrics:  httpMetrics,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.metrics.Middleware)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/species", s.handleListSpecies)
		r.Get("/species/{id}", s.handleGetSpecies)

		r.Get("/occurrences", s.handleListOccurrences)
		r.Get("/occurrences/{id}", s.handleGetOccurrence)

		r.Get("/map-data", s.handleMapData)
		r.Get("/statistics", s.handleStatistics)

		r.Get("/import-runs", s.handleListImportRuns)
		r.Get("/import-runs/{runID}", s.handleGetImportRun)
	})

	s.router.Route("/export", func(r chi.Router) {
		r.Get("/species.csv", s.handleExportSpecies)
		r.Get("/occurrences.csv", s.handleExportOccurrences)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", s.cfg.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := s.db.NewSelect().ColumnExpr("1").Scan(r.Context(), &one); err != nil {
		s.respondError(w, r, fmt.Errorf("database unavailable: %w", err), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
