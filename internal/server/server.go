package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/Nzyazin/miniauthorizer/internal/core/handler"
	"github.com/Nzyazin/miniauthorizer/internal/core/logger"
	"github.com/Nzyazin/miniauthorizer/internal/core/metrics"
	middlWre "github.com/Nzyazin/miniauthorizer/internal/core/middleware"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository/memory"
	"github.com/Nzyazin/miniauthorizer/internal/core/repository/postgres"
	"github.com/Nzyazin/miniauthorizer/internal/core/usecase"
	"github.com/Nzyazin/miniauthorizer/pkg/config"
	"github.com/Nzyazin/miniauthorizer/pkg/postgresdb"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slok/go-http-metrics/middleware"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router      *mux.Router
	log         logger.Logger
	cfg         config.HTTPConfig
	httpServer  *http.Server
	cardHandler *handler.CardHandler
	repo        repository.CardRepository
	registry    *prometheus.Registry
	db          *postgresdb.Database
}

func NewServer(cfg *config.Config, log logger.Logger) (*Server, error) {
	repo, db, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	return newServer(cfg.HTTP, log, repo, db), nil
}

// NewWithRepository builds a server around an already opened store.
func NewWithRepository(cfg config.HTTPConfig, log logger.Logger, repo repository.CardRepository) *Server {
	return newServer(cfg, log, repo, nil)
}

func newServer(cfg config.HTTPConfig, log logger.Logger, repo repository.CardRepository, db *postgresdb.Database) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authorizer := usecase.NewAuthorizer(repo, log, metrics.NewAuthorizer(registry))
	server := &Server{
		log:         log,
		cfg:         cfg,
		router:      mux.NewRouter(),
		cardHandler: handler.NewCardHandler(authorizer, log),
		repo:        repo,
		registry:    registry,
		db:          db,
	}

	server.router.Use(middlWre.RequestLogger(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: metricsprom.NewRecorder(metricsprom.Config{Registry: registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return std.Handler("", mw, next)
	})

	server.RegisterRoutes()

	server.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.router,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return server
}

func openStore(cfg *config.Config, log logger.Logger) (repository.CardRepository, *postgresdb.Database, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("Using in-memory card store, data is lost on restart")
		return memory.NewCardRepo(log), nil, nil
	case config.BackendPostgres:
		db, err := postgresdb.NewPostgresDB(cfg.DB, log)
		if err != nil {
			return nil, nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx, db.DB); err != nil {
			db.Close()
			return nil, nil, err
		}

		return postgres.NewPostgresCardRepo(db.DB, log, cfg.DB.LockTimeout), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func (s *Server) RegisterRoutes() {
	s.router.Use(middlWre.Recovery(s.log))

	wrap := middlWre.WithErrorHandler(s.log)
	s.router.Handle("/cards", wrap(s.cardHandler.CreateCard)).Methods("POST")
	s.router.Handle("/cards/{cardNumber}", wrap(s.cardHandler.GetBalance)).Methods("GET")
	s.router.Handle("/transactions", wrap(s.cardHandler.Debit)).Methods("POST")
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")

	if s.cfg.EnablePprof {
		s.router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		s.router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		s.router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		s.router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		s.router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.log.Error("Health check failed", logger.ErrorField("error", err))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}

// Run serves on the configured address, over TLS when a certificate and key
// are configured.
func (s *Server) Run() error {
	if s.cfg.TLSEnabled() {
		return s.httpServer.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and then closes the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("Failed to shutdown HTTP server", logger.ErrorField("error", err))
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("Failed to close database connection", logger.ErrorField("error", err))
			errs = append(errs, fmt.Errorf("database shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}
