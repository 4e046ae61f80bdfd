// Package server sets up the HTTP server, router, and all route
// definitions. It is the composition root: the database, language
// registry, sandbox backend and dispatcher are all wired together here,
// so main.go stays minimal.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/execbox/internal/dispatch"
	"github.com/sakif/execbox/internal/handler"
	"github.com/sakif/execbox/internal/language"
	"github.com/sakif/execbox/internal/middleware"
	sqliteRepo "github.com/sakif/execbox/internal/repository/sqlite"
	"github.com/sakif/execbox/internal/sandbox"
	dockerSandbox "github.com/sakif/execbox/internal/sandbox/docker"
	"github.com/sakif/execbox/internal/sandbox/process"
)

// Sandbox backend names accepted in Config.Backend.
const (
	BackendProcess = "process"
	BackendDocker  = "docker"
)

// Config holds server configuration.
type Config struct {
	Port          int
	DBPath        string
	LanguagesFile string // optional TOML file merged over the built-in defaults

	// Backend selects the sandbox implementation: "process" or "docker".
	Backend        string
	MaxOutputBytes int

	Dispatch dispatch.Config
}

// Server represents the HTTP server and all its dependencies. It owns the
// database connection and the sandbox backend and closes both on shutdown.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	executor io.Closer // nil for backends with nothing to release
}

// New creates a new Server with the given config, assembling the whole
// dependency chain: database, language registry, sandbox executor,
// dispatcher, handlers.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendProcess
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// newExecutor builds the sandbox backend named in the config.
func (s *Server) newExecutor() (sandbox.Executor, error) {
	switch s.config.Backend {
	case BackendProcess:
		cfg := process.DefaultConfig()
		if s.config.MaxOutputBytes > 0 {
			cfg.MaxOutputBytes = s.config.MaxOutputBytes
		}
		return process.New(cfg, s.logger), nil

	case BackendDocker:
		cfg := dockerSandbox.DefaultConfig()
		if s.config.MaxOutputBytes > 0 {
			cfg.MaxOutputBytes = s.config.MaxOutputBytes
		}
		exec, err := dockerSandbox.New(cfg, s.logger)
		if err != nil {
			return nil, fmt.Errorf("creating docker sandbox: %w", err)
		}
		s.executor = exec
		return exec, nil

	default:
		return nil, fmt.Errorf("unknown sandbox backend %q", s.config.Backend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// Route structure:
//
//	POST /api/execute         → run a snippet (JSON)
//	GET  /api/languages       → list supported languages (JSON)
//	GET  /api/executions      → list recent executions (JSON)
//	GET  /api/executions/{id} → get one execution record (JSON)
//	GET  /healthz             → liveness probe
func (s *Server) setupRoutes() error {
	// Global middleware, in order: request ID, real client IP, request
	// logging, panic recovery.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	registry, err := language.Load(s.config.LanguagesFile)
	if err != nil {
		return fmt.Errorf("loading language profiles: %w", err)
	}

	exec, err := s.newExecutor()
	if err != nil {
		return err
	}

	dispatcher := dispatch.New(s.config.Dispatch, registry, exec, s.db, s.logger)

	executeHandler := handler.NewExecuteHandler(dispatcher, s.logger)
	executionHandler := handler.NewExecutionHandler(s.db, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/execute", executeHandler.HandleExecute)
		r.Get("/languages", executeHandler.HandleLanguages)
		r.Get("/executions", executionHandler.HandleList)
		r.Get("/executions/{id}", executionHandler.HandleGetByID)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown: stop
// accepting connections, wait for in-flight requests, then close the
// sandbox backend and the database.
func (s *Server) Start() error {
	defer s.db.Close()
	defer func() {
		if s.executor != nil {
			if err := s.executor.Close(); err != nil {
				s.logger.Error("failed to close sandbox backend", slog.String("error", err.Error()))
			}
		}
	}()

	// WriteTimeout must clear the longest permitted execution, or the
	// response is cut off before the sandbox finishes.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.Dispatch.MaxTimeout + s.config.Dispatch.QueueWait + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("backend", s.config.Backend),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
