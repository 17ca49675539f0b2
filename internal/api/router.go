// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the control API: readiness, services, lifecycle,
// events and metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/papertalk/internal/api/handlers"
	"github.com/wingedpig/papertalk/internal/api/middleware"
	"github.com/wingedpig/papertalk/internal/api/version"
	"github.com/wingedpig/papertalk/internal/events"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host string
	Port int
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Services  handlers.ServiceSource
	Readiness handlers.ReadinessSource
	Lifecycle handlers.LifecycleSource
	Quit      func() // Starts shutdown; must not block
	EventBus  events.EventBus
	Metrics   http.Handler // Served at /metrics when set
	Version   string       // Application version string
	RunID     string
	Logger    *slog.Logger

	// AllowedOrigins are browser origins permitted besides same-origin.
	AllowedOrigins []string
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(deps.AllowedOrigins))

	// Lets preflights reach the CORS middleware; mux runs middleware only
	// on matched routes.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": deps.Version,
			"run_id":  deps.RunID,
		})
	}).Methods("GET")

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(version.Middleware)

	readinessHandler := handlers.NewReadinessHandler(deps.Readiness)
	api.HandleFunc("/readiness", readinessHandler.Get).Methods("GET")

	serviceHandler := handlers.NewServiceHandler(deps.Services, deps.Readiness)
	api.HandleFunc("/services", serviceHandler.List).Methods("GET")
	api.HandleFunc("/services/{name}", serviceHandler.Get).Methods("GET")

	lifecycleHandler := handlers.NewLifecycleHandler(deps.Lifecycle, deps.Quit)
	api.HandleFunc("/lifecycle", lifecycleHandler.Get).Methods("GET")
	api.HandleFunc("/quit", lifecycleHandler.Quit).Methods("POST")

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus, logger, deps.AllowedOrigins)
		api.HandleFunc("/events", eventHandler.History).Methods("GET")
		api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")
	}

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	logger *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
		logger: logger,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Listen binds the listening socket. Port 0 picks a free port.
func (s *Server) Listen() (net.Addr, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()
	return ln.Addr(), nil
}

// Serve serves requests until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	srv, ln := s.server, s.listener
	s.mu.Unlock()
	if srv == nil {
		return errors.New("server is not listening")
	}

	s.logger.Info("API server listening", "url", "http://"+ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe binds and serves.
func (s *Server) ListenAndServe() error {
	if _, err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	s.logger.Debug("shutting down API server")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}

	return srv.Shutdown(shutdownCtx)
}
