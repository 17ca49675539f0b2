// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/events"
	"github.com/wingedpig/papertalk/internal/health"
	"github.com/wingedpig/papertalk/internal/metrics"
)

// Supervisor decides, per service, whether to spawn it or treat it as
// externally owned, and holds the handle of every process it spawned.
//
// The ambient check and the spawn are not atomic: another actor can start
// the service in between. When that happens our spawn usually fails or
// exits with an "address in use" error. Both cases are re-checked and
// logged as warnings, never retried.
type Supervisor struct {
	spawner  Spawner
	detector Detector
	bus      events.EventBus
	metrics  metrics.Collector
	logger   *slog.Logger

	mu         sync.Mutex
	order      []string
	records    map[string]*record
	terminated bool
}

type record struct {
	spec      config.ServiceConfig
	launched  bool
	ownership Ownership
	handle    Handle
	reason    string
	err       error
	issued    bool

	// Set when an ambient child exited, and another instance was found
	// serving, before its handle was recorded.
	earlyExit   Handle
	earlyReason string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSpawner sets how processes are started.
func WithSpawner(sp Spawner) Option {
	return func(s *Supervisor) { s.spawner = sp }
}

// WithDetector sets the already-running check used for ambient services.
func WithDetector(d Detector) Option {
	return func(s *Supervisor) { s.detector = d }
}

// WithEventBus publishes supervisor events to bus.
func WithEventBus(bus events.EventBus) Option {
	return func(s *Supervisor) { s.bus = bus }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(s *Supervisor) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.logger = l }
}

// NewSupervisor creates a supervisor for the given services. Nothing is
// launched until Launch or LaunchAll is called.
func NewSupervisor(specs []config.ServiceConfig, opts ...Option) *Supervisor {
	s := &Supervisor{
		records: make(map[string]*record, len(specs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.spawner == nil {
		s.spawner = ExecSpawner{}
	}
	if s.detector == nil {
		s.detector = NewAmbientDetector(health.NewHTTPProber())
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics = metrics.OrNoop(s.metrics)

	for _, spec := range specs {
		if _, ok := s.records[spec.Name]; ok {
			continue
		}
		s.order = append(s.order, spec.Name)
		s.records[spec.Name] = &record{spec: spec, ownership: OwnershipPending}
	}
	return s
}

// LaunchAll launches ambient services first and always-started services
// second. Services within a phase launch concurrently. A failure is
// isolated to its service; the results report every outcome.
func (s *Supervisor) LaunchAll(ctx context.Context) []LaunchResult {
	var ambient, always, passive []config.ServiceConfig

	s.mu.Lock()
	for _, name := range s.order {
		spec := s.records[name].spec
		switch spec.LaunchMode() {
		case config.LaunchAmbient:
			ambient = append(ambient, spec)
		case config.LaunchAlways:
			always = append(always, spec)
		default:
			passive = append(passive, spec)
		}
	}
	s.mu.Unlock()

	results := make(map[string]LaunchResult, len(s.order))
	var resultsMu sync.Mutex

	runPhase := func(specs []config.ServiceConfig) {
		var g errgroup.Group
		for _, spec := range specs {
			g.Go(func() error {
				res := s.Launch(ctx, spec)
				resultsMu.Lock()
				results[spec.Name] = res
				resultsMu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	runPhase(ambient)
	runPhase(always)
	runPhase(passive)

	out := make([]LaunchResult, 0, len(results))
	for _, name := range s.order {
		if res, ok := results[name]; ok {
			out = append(out, res)
		}
	}
	return out
}

// Launch makes the launch decision for one service. A service is launched
// at most once; later calls return the recorded outcome.
func (s *Supervisor) Launch(ctx context.Context, spec config.ServiceConfig) LaunchResult {
	s.mu.Lock()
	rec, ok := s.records[spec.Name]
	if !ok {
		s.mu.Unlock()
		return LaunchResult{Name: spec.Name, Mode: spec.LaunchMode(), Err: fmt.Errorf("%q: %w", spec.Name, ErrUnknownService)}
	}
	if rec.launched {
		res := rec.result()
		s.mu.Unlock()
		return res
	}
	rec.launched = true
	spec = rec.spec
	s.mu.Unlock()

	logger := s.logger.With(slog.String("service", spec.Name))

	switch spec.LaunchMode() {
	case config.LaunchNone:
		logger.Debug("monitor only, not launching")
		s.settle(spec.Name, OwnershipUnmanaged, nil, "", nil)

	case config.LaunchAmbient:
		if running, reason := s.detector.Running(ctx, spec); running {
			logger.Info("already running, leaving it alone", "reason", reason)
			s.markExternal(ctx, spec, reason)
			break
		}
		logger.Info("not running, starting it")
		h, err := s.spawn(ctx, spec)
		if err != nil {
			if running, reason := s.detector.Running(ctx, spec); running {
				logger.Warn("spawn failed but service is now available, treating as external", "error", err, "reason", reason)
				s.markExternal(ctx, spec, reason)
				break
			}
			s.fail(ctx, spec, err)
			break
		}
		s.own(ctx, spec, h)

	default:
		logger.Info("starting")
		h, err := s.spawn(ctx, spec)
		if err != nil {
			s.fail(ctx, spec, err)
			break
		}
		s.own(ctx, spec, h)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return rec.result()
}

func (s *Supervisor) spawn(ctx context.Context, spec config.ServiceConfig) (Handle, error) {
	h, err := s.spawner.Spawn(ctx, spec, s.handleExit)
	s.metrics.SpawnAttempt(spec.Name, err)
	return h, err
}

func (s *Supervisor) own(ctx context.Context, spec config.ServiceConfig, h Handle) {
	s.logger.Info("spawned", "service", spec.Name, "pid", h.PID(), "command", strings.Join(spec.Argv(), " "))
	late := s.settle(spec.Name, OwnershipOwned, h, "", nil)
	s.publish(ctx, events.EventServiceSpawned, spec.Name, map[string]interface{}{
		"pid":     h.PID(),
		"command": spec.Argv(),
	})

	// Spawned after TerminateAll: stop it right away.
	if late {
		s.terminate(ctx, h)
	}
}

func (s *Supervisor) markExternal(ctx context.Context, spec config.ServiceConfig, reason string) {
	s.settle(spec.Name, OwnershipExternal, nil, reason, nil)
	s.metrics.ExternalDetected(spec.Name)
	s.publish(ctx, events.EventServiceExternal, spec.Name, map[string]interface{}{"reason": reason})
}

func (s *Supervisor) fail(ctx context.Context, spec config.ServiceConfig, err error) {
	s.logger.Error("failed to start", "service", spec.Name, "error", err)
	s.settle(spec.Name, OwnershipFailed, nil, "", err)
	s.publish(ctx, events.EventServiceSpawnFailed, spec.Name, map[string]interface{}{"error": err.Error()})
}

// settle records a launch outcome and reports whether TerminateAll has
// already run.
func (s *Supervisor) settle(name string, own Ownership, h Handle, reason string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[name]
	if h != nil && rec.earlyExit == h {
		own = OwnershipExternal
		reason = rec.earlyReason
		rec.earlyExit = nil
	}
	rec.ownership = own
	rec.handle = h
	rec.reason = reason
	rec.err = err
	if h != nil && own == OwnershipOwned && s.terminated {
		rec.issued = true
		return true
	}
	return false
}

func (s *Supervisor) handleExit(h Handle, exitCode int, err error) {
	spec := h.Spec()
	logger := s.logger.With(slog.String("service", spec.Name))
	s.metrics.ProcessExited(spec.Name, exitCode)

	payload := map[string]interface{}{"pid": h.PID(), "exit_code": exitCode}
	if err != nil {
		payload["error"] = err.Error()
	}

	if spec.LaunchMode() == config.LaunchAmbient && exitCode != 0 {
		if running, reason := s.detector.Running(context.Background(), spec); running {
			logger.Warn("exited but service is served by another instance", "exit_code", exitCode, "reason", reason)
			s.mu.Lock()
			rec := s.records[spec.Name]
			switch {
			case rec.handle == h:
				rec.ownership = OwnershipExternal
				rec.reason = reason
			case rec.handle == nil && rec.ownership == OwnershipPending:
				// Exited before Launch recorded the handle; settle applies it.
				rec.earlyExit = h
				rec.earlyReason = reason
			}
			s.mu.Unlock()
			payload["external"] = true
			s.publish(context.Background(), events.EventServiceExited, spec.Name, payload)
			return
		}
	}

	logger.Warn("exited", "pid", h.PID(), "exit_code", exitCode, "error", err)
	s.publish(context.Background(), events.EventServiceExited, spec.Name, payload)
}

// TerminateAll terminates every owned process in parallel and waits for
// them. Each handle is terminated exactly once across all calls. External
// services are never touched. Failures are logged and ignored. It returns
// the number of terminate calls issued by this call.
func (s *Supervisor) TerminateAll(ctx context.Context) int {
	s.mu.Lock()
	s.terminated = true
	var handles []Handle
	for _, name := range s.order {
		rec := s.records[name]
		if rec.handle == nil || rec.issued || rec.ownership != OwnershipOwned {
			continue
		}
		rec.issued = true
		handles = append(handles, rec.handle)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			s.terminate(ctx, h)
		}(h)
	}
	wg.Wait()

	return len(handles)
}

func (s *Supervisor) terminate(ctx context.Context, h Handle) {
	start := time.Now()
	s.logger.Info("terminating", "service", h.Name(), "pid", h.PID())
	err := h.Terminate(ctx)
	elapsed := time.Since(start)
	s.metrics.TerminateIssued(h.Name(), elapsed, err)

	payload := map[string]interface{}{"pid": h.PID(), "duration_ms": elapsed.Milliseconds()}
	if err != nil {
		s.logger.Warn("terminate failed", "service", h.Name(), "pid", h.PID(), "error", err)
		payload["error"] = err.Error()
	}
	s.publish(ctx, events.EventServiceTerminated, h.Name(), payload)
}

// Handles returns the handles of every process the supervisor spawned.
func (s *Supervisor) Handles() []Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Handle
	for _, name := range s.order {
		if h := s.records[name].handle; h != nil {
			out = append(out, h)
		}
	}
	return out
}

// Services describes every configured service in order.
func (s *Supervisor) Services() []ServiceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceInfo, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name].info())
	}
	return out
}

// Service describes one service.
func (s *Supervisor) Service(name string) (ServiceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[name]
	if !ok {
		return ServiceInfo{}, fmt.Errorf("%q: %w", name, ErrUnknownService)
	}
	return rec.info(), nil
}

func (s *Supervisor) publish(ctx context.Context, eventType, service string, payload map[string]interface{}) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(context.WithoutCancel(ctx), events.Event{
		Type:    eventType,
		Service: service,
		Payload: payload,
	})
}

func (r *record) result() LaunchResult {
	res := LaunchResult{
		Name:      r.spec.Name,
		Mode:      r.spec.LaunchMode(),
		Ownership: r.ownership,
		Reason:    r.reason,
		Err:       r.err,
	}
	if r.handle != nil {
		res.PID = r.handle.PID()
	}
	return res
}

func (r *record) info() ServiceInfo {
	info := ServiceInfo{
		Name:      r.spec.Name,
		Mode:      r.spec.LaunchMode(),
		Ownership: r.ownership,
		HealthURL: r.spec.Health.URL,
		Command:   r.spec.Argv(),
		Reason:    r.reason,
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	if r.handle != nil {
		info.State = r.handle.State().String()
		info.PID = r.handle.PID()
		info.ExitCode = r.handle.ExitCode()
		started := r.handle.StartedAt()
		info.StartedAt = &started
	}
	return info
}
