// Package server is the composition root: it opens the store, builds the
// services and handlers, mounts the routes and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config
//	  └─ repository.Store (sqlite or postgres)
//	       ├─ service.AuthService   ← auth.TokenService, auth.PasswordService
//	       └─ service.RecordService
//	            └─ handler.* ← report.Renderer
//
// Every dependency is wired here, in New, and nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/glicoflow/internal/auth"
	"github.com/sakif/glicoflow/internal/config"
	"github.com/sakif/glicoflow/internal/handler"
	"github.com/sakif/glicoflow/internal/metrics"
	"github.com/sakif/glicoflow/internal/middleware"
	"github.com/sakif/glicoflow/internal/report"
	"github.com/sakif/glicoflow/internal/repository"
	"github.com/sakif/glicoflow/internal/repository/postgres"
	sqliteRepo "github.com/sakif/glicoflow/internal/repository/sqlite"
	"github.com/sakif/glicoflow/internal/service"
)

// Server owns the router and the store. The store is closed when Start
// returns, or by Close if Start is never called.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	store   repository.Store
	metrics *metrics.Metrics
	limiter *middleware.RateLimiter
}

// New opens the configured store and wires the application onto it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStore wires the application onto an already-open store.
func NewWithStore(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger, s.metrics)
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenStore opens the store named by cfg.Driver. For SQLite the parent
// directory of the database file is created if missing.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverSQLite, "":
		if cfg.Path != sqliteRepo.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Handler returns the root handler, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts middleware and routes.
//
//	GET  /health, /api/health          liveness + database ping
//	GET  /metrics                      Prometheus (when enabled)
//	POST /api/auth/check-username      rate limited
//	POST /api/auth/register            rate limited
//	POST /api/auth/login               rate limited
//	GET  /api/auth/me                  bearer
//	POST /api/auth/logout              bearer
//	POST /api/records                  bearer
//	GET  /api/records                  bearer
//	GET  /api/records/stats            bearer
//	GET  /api/records/report           bearer, text/html
//
// Middleware order matters: the request id must exist before the logger
// reads it, and Recoverer must sit inside the logger so a panic is logged
// as a 500.
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords, err := auth.NewPasswordService(s.config.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("creating password service: %w", err)
	}
	renderer, err := report.New()
	if err != nil {
		return fmt.Errorf("creating report renderer: %w", err)
	}

	authService := service.NewAuthService(s.store.Users(), tokens, passwords, service.AuthOptions{
		UniqueEmail: s.config.Auth.UniqueEmail,
		Metrics:     s.metrics,
	}, s.logger)
	recordService := service.NewRecordService(s.store.Records(), s.metrics, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	recordHandler := handler.NewRecordHandler(recordService, renderer, s.logger)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.metrics.Instrument)

	s.router.Get("/health", healthHandler.HandleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	requireAuth := auth.RequireAuth(authService, s.logger, s.metrics)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.limiter != nil {
					r.Use(s.limiter.Handler)
				}
				r.Post("/check-username", authHandler.HandleCheckUsername)
				r.Post("/register", authHandler.HandleRegister)
				r.Post("/login", authHandler.HandleLogin)
			})
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", authHandler.HandleMe)
				r.Post("/logout", authHandler.HandleLogout)
			})
		})

		r.Route("/records", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", recordHandler.HandleCreate)
			r.Get("/", recordHandler.HandleList)
			r.Get("/stats", recordHandler.HandleStats)
			r.Get("/report", recordHandler.HandleReport)
		})
	})

	return nil
}

// Close releases the store. Start calls it itself.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
// stop accepting connections, wait up to ShutdownTimeout for in-flight
// requests, close the store.
func (s *Server) Start() error {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if s.limiter != nil {
		s.limiter.StartCleanup(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Driver),
			slog.Bool("metrics", s.metrics != nil),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
