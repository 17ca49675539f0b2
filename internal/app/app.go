// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires configuration, supervision, readiness monitoring and
// the control API into one process.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/papertalk/internal/api"
	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/events"
	"github.com/wingedpig/papertalk/internal/health"
	"github.com/wingedpig/papertalk/internal/lifecycle"
	"github.com/wingedpig/papertalk/internal/logging"
	"github.com/wingedpig/papertalk/internal/metrics"
	"github.com/wingedpig/papertalk/internal/service"
	"github.com/wingedpig/papertalk/internal/watcher"
)

// shutdownTimeout bounds Shutdown. Processes still alive when it expires
// are killed.
const shutdownTimeout = 30 * time.Second

// App is the main application container.
type App struct {
	configPath string
	version    string
	config     *config.Config
	logger     *slog.Logger

	eventBus   *events.MemoryEventBus
	metrics    metrics.Collector
	supervisor *service.Supervisor
	monitors   *health.Group
	controller *lifecycle.Controller
	apiServer  *api.Server
	watcher    *watcher.ConfigWatcher

	mu       sync.Mutex
	addr     net.Addr
	shutdown bool
	serveErr chan error

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string         // Loaded when Config is nil; also the base for {{.ConfigDir}}
	Config     *config.Config // Already loaded configuration
	Host       string
	Port       int // Overrides the config when > 0
	Debug      bool
	Version    string // Application version string
	LogOutput  io.Writer

	// Test seams; production uses real processes and HTTP probes.
	Spawner  service.Spawner
	Detector service.Detector
	Prober   health.Prober
}

// New creates a new App instance. Nothing runs until Start or Run.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		serveErr:   make(chan error, 1),
		done:       make(chan struct{}),
	}

	cfg := opts.Config
	if cfg == nil {
		var err error
		cfg, err = config.NewLoader().LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	if err := config.NewTemplateExpander().ExpandServices(cfg, app.templateContext(cfg)); err != nil {
		return nil, fmt.Errorf("failed to expand config: %w", err)
	}
	app.config = cfg

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: opts.LogOutput,
		Debug:  opts.Debug,
	})
	if err != nil {
		return nil, err
	}
	app.logger = logger

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
		Logger:           logger,
	})
	logger = logger.With("run_id", app.eventBus.RunID())
	app.logger = logger

	var metricsHandler http.Handler
	if cfg.Metrics.Disabled {
		app.metrics = metrics.NewNoop()
	} else {
		prom := metrics.NewPrometheus(cfg.Metrics.Namespace)
		app.metrics = prom
		metricsHandler = prom.Handler()
	}

	services := cfg.EnabledServices()

	prober := opts.Prober
	if prober == nil {
		prober = health.NewHTTPProber()
	}
	detector := opts.Detector
	if detector == nil {
		detector = service.NewAmbientDetector(prober)
	}
	supOpts := []service.Option{
		service.WithDetector(detector),
		service.WithEventBus(app.eventBus),
		service.WithMetrics(app.metrics),
		service.WithLogger(logger),
	}
	if opts.Spawner != nil {
		supOpts = append(supOpts, service.WithSpawner(opts.Spawner))
	}
	app.supervisor = service.NewSupervisor(services, supOpts...)

	app.monitors = health.NewGroup(health.TargetsFromConfig(services), prober,
		health.WithInterval(config.ParseDuration(cfg.Readiness.Interval, health.DefaultInterval)),
		health.WithWarnAfter(config.ParseDuration(cfg.Readiness.WarnAfter, 0)),
		health.WithLogger(logger),
		health.WithMetrics(app.metrics),
		health.OnReady(app.onReady),
	)

	app.controller = lifecycle.NewController(app.supervisor, app.monitors,
		lifecycle.WithEventBus(app.eventBus),
		lifecycle.WithMetrics(app.metrics),
		lifecycle.WithLogger(logger),
	)

	app.apiServer = api.NewServer(api.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, api.Dependencies{
		Services:  app.supervisor,
		Readiness: app.monitors.State(),
		Lifecycle: app.controller,
		Quit:      app.Stop,
		EventBus:  app.eventBus,
		Metrics:   metricsHandler,
		Version:   opts.Version,
		RunID:     app.eventBus.RunID(),
		Logger:    logger,

		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return app, nil
}

func (app *App) templateContext(cfg *config.Config) *config.TemplateContext {
	ctx := &config.TemplateContext{Project: cfg.Project}
	if app.configPath != "" {
		if abs, err := filepath.Abs(app.configPath); err == nil {
			ctx.ConfigDir = filepath.Dir(abs)
		}
	}
	if ctx.ConfigDir == "" {
		ctx.ConfigDir, _ = os.Getwd()
	}
	ctx.Home, _ = os.UserHomeDir()
	return ctx
}

func (app *App) onReady(name string, all bool) {
	ctx := context.Background()
	_ = app.eventBus.Publish(ctx, events.Event{Type: events.EventServiceReady, Service: name})
	if all {
		app.logger.Info("all services ready")
		_ = app.eventBus.Publish(ctx, events.Event{
			Type:    events.EventReadinessReady,
			Payload: map[string]interface{}{"services": app.monitors.State().Names()},
		})
	}
}

// watchConfig reports edits to the loaded config file. A watcher that
// cannot start only costs the notification.
func (app *App) watchConfig() {
	if app.configPath == "" || app.config.Watch.Disabled {
		return
	}
	w, err := watcher.NewConfigWatcher(app.configPath, app.eventBus,
		config.ParseDuration(app.config.Watch.Debounce, 0), app.logger)
	if err != nil {
		app.logger.Warn("config watcher disabled", "error", err)
		return
	}
	app.mu.Lock()
	app.watcher = w
	app.mu.Unlock()
}

// Start binds the API, then launches every service and starts readiness
// monitoring. It returns without waiting for readiness.
func (app *App) Start(ctx context.Context) error {
	addr, err := app.apiServer.Listen()
	if err != nil {
		return err
	}
	app.mu.Lock()
	app.addr = addr
	app.mu.Unlock()

	go func() {
		if err := app.apiServer.Serve(); err != nil {
			app.logger.Error("API server error", "error", err)
			app.serveErr <- err
		}
	}()

	app.watchConfig()

	app.logger.Info("starting services", "count", len(app.supervisor.Services()))
	if _, err := app.controller.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Run starts the app and blocks until a signal, ctx cancellation, a quit
// request or an API server failure, then shuts down.
func (app *App) Run(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := app.Start(ctx); err != nil {
		_ = app.Shutdown(context.Background())
		return err
	}

	var runErr error
	select {
	case sig := <-sigCh:
		app.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		app.logger.Info("context cancelled, shutting down")
	case <-app.done:
		app.logger.Info("quit requested, shutting down")
	case runErr = <-app.serveErr:
	}

	if err := app.Shutdown(context.Background()); err != nil {
		return err
	}
	return runErr
}

// Shutdown terminates every owned process, then stops the API server and
// closes the event bus. Calls after the first do nothing.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	if app.shutdown {
		app.mu.Unlock()
		return nil
	}
	app.shutdown = true
	cw := app.watcher
	app.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	app.controller.Quit(shutdownCtx)

	if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("error shutting down API server", "error", err)
	}

	if cw != nil {
		_ = cw.Close()
	}
	_ = app.eventBus.Close()

	app.logger.Info("shutdown complete")
	return nil
}

// Stop asks Run to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}

// Addr returns the API listen address once Start has bound it.
func (app *App) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.addr
}

// Config returns the expanded configuration.
func (app *App) Config() *config.Config { return app.config }

// Readiness returns the readiness flags.
func (app *App) Readiness() *health.State { return app.monitors.State() }

// Supervisor returns the process supervisor.
func (app *App) Supervisor() *service.Supervisor { return app.supervisor }

// Lifecycle returns the lifecycle controller.
func (app *App) Lifecycle() *lifecycle.Controller { return app.controller }
