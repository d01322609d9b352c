package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/invoice-reconciler/internal/api/handlers"
	"github.com/eshaffer321/invoice-reconciler/internal/api/middleware"
	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/report"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: middleware.DefaultCORSConfig().AllowedOrigins,
	}
}

// Services bundles the application services the API exposes. Reconciler,
// Overrides and Importer may be nil; their endpoints are then not mounted
// (the run endpoint answers 503).
type Services struct {
	Reconciler *service.ReconcileService
	Overrides  *service.OverrideService
	Reports    *report.Service
	Importer   *ingest.Service
	Health     func(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if services.Reports == nil {
		services.Reports = report.NewService(repo, logger)
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		repo:     repo,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = s.config.AllowedOrigins
	}
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler(s.services.Health)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Invoices
		invoicesHandler := handlers.NewInvoicesHandler(s.repo)
		r.Get("/invoices", invoicesHandler.List)
		r.Get("/invoices/{id}", invoicesHandler.Get)
		r.Get("/invoices/{id}/links", invoicesHandler.Links)

		// Bank transactions
		transactionsHandler := handlers.NewTransactionsHandler(s.repo)
		r.Get("/transactions", transactionsHandler.List)
		r.Get("/transactions/{id}", transactionsHandler.Get)
		r.Get("/transactions/{id}/links", transactionsHandler.Links)

		// Reconciliation runs
		runsHandler := handlers.NewRunsHandler(s.repo, s.services.Reconciler)
		r.Post("/reconcile/run", runsHandler.Start)
		r.Get("/runs", runsHandler.List)
		r.Get("/runs/{id}", runsHandler.Get)

		// Manual overrides
		if s.services.Overrides != nil {
			overridesHandler := handlers.NewOverridesHandler(s.services.Overrides)
			r.Post("/override/link", overridesHandler.Link)
			r.Post("/override/unlink", overridesHandler.Unlink)
			r.Put("/override/invoices/{id}/notes", overridesHandler.Notes)
		}

		// Dashboard, audit trail and exports
		reportsHandler := handlers.NewReportsHandler(s.repo, s.services.Reports)
		r.Get("/dashboard", reportsHandler.Dashboard)
		r.Get("/audit", reportsHandler.Audit)
		r.Get("/export/{report}", reportsHandler.Export)

		// CSV uploads
		if s.services.Importer != nil {
			uploadHandler := handlers.NewUploadHandler(s.services.Importer)
			r.Post("/upload/{kind}", uploadHandler.Upload)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
