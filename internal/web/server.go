package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/geo-mapper/internal/config"
	"github.com/geo-mapper/internal/match"
	"github.com/geo-mapper/internal/web/handlers"
	"github.com/geo-mapper/internal/web/middleware"
)

// Dependencies are the components the server exposes.
type Dependencies struct {
	Datasets []*match.Dataset
	Resolver *match.Resolver
	Manual   *match.Manual
	// Runs is optional; without it the run history routes are not mounted.
	Runs handlers.RunStore
}

// Server represents the web server
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *mux.Router
	logger     *zap.Logger
}

// NewServer creates a new web server instance
func NewServer(cfg *config.Config, deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{config: cfg, logger: logger}
	s.setupRoutes(deps)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(deps Dependencies) {
	s.router = mux.NewRouter()

	manual := deps.Manual
	if manual == nil {
		manual = match.NewManual(s.logger)
	}
	apiHandler := &handlers.APIHandler{
		Datasets: deps.Datasets,
		Resolver: deps.Resolver,
		Manual:   manual,
		Mapping:  s.config.Mapping,
		Logger:   s.logger,
		Started:  time.Now(),
	}

	s.router.HandleFunc("/api/health", apiHandler.Health).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/datasets", apiHandler.ListDatasets).Methods(http.MethodGet)
	api.HandleFunc("/strategies", apiHandler.ListStrategies).Methods(http.MethodGet)
	api.HandleFunc("/normalize", apiHandler.Normalize).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/resolve", apiHandler.Resolve).Methods(http.MethodPost, http.MethodOptions)

	if deps.Runs != nil {
		runsHandler := &handlers.RunsHandler{Store: deps.Runs, Logger: s.logger}
		api.HandleFunc("/runs", runsHandler.ListRuns).Methods(http.MethodGet)
		api.HandleFunc("/runs/{id}/coverage", runsHandler.GetCoverage).Methods(http.MethodGet)
	}

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.logger))
	api.Use(middleware.Authentication(s.config.Server.APIKey))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("Server stopped")
	return nil
}
