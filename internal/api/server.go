// Package api serves the admin HTTP API for seeding and resetting sessions.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foxzi/mailseed/internal/catalog"
	"github.com/foxzi/mailseed/internal/config"
	"github.com/foxzi/mailseed/internal/loader"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/models"
	"github.com/foxzi/mailseed/internal/seeder"
)

// Seeder is the set of seed operations the API exposes
type Seeder interface {
	Generate(ctx context.Context, sessionID string) (*seeder.Outcome, error)
	EnsureSeeded(ctx context.Context, sessionID string) (*seeder.Outcome, error)
	Reseed(ctx context.Context, sessionID string) (*seeder.Outcome, error)
	Wipe(ctx context.Context, sessionID string) (*loader.WipeResult, error)
	Stats(ctx context.Context, sessionID string) (*models.SessionStats, error)
	Preview() (*catalog.Summary, error)
	SessionStats(ctx context.Context) (*metrics.SessionStats, error)
}

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	seeder     Seeder
	config     *config.APIConfig
	version    string
	logger     *slog.Logger
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(s Seeder, cfg *config.APIConfig, version string, logger *slog.Logger) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		seeder:    s,
		config:    cfg,
		version:   version,
		logger:    logger.With("component", "api"),
		startTime: time.Now(),
	}

	srv.setupRoutes()
	return srv
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.HTTPMiddleware)

	// Health check (no auth required)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}/stats", s.handleStats)
		r.Post("/sessions/{id}/ensure", s.handleEnsure)
		r.Post("/sessions/{id}/reseed", s.handleReseed)
		r.Post("/sessions/{id}/wipe", s.handleWipe)
		r.Get("/catalog/preview", s.handlePreview)
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("starting HTTP API server", "addr", s.config.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
