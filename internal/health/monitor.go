// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/metrics"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = time.Second

// ReadyFunc is called once when a service's flag latches. all is true
// for the single call that completed the readiness gate.
type ReadyFunc func(name string, all bool)

type options struct {
	interval  time.Duration
	warnAfter time.Duration
	logger    *slog.Logger
	metrics   metrics.Collector
	onReady   ReadyFunc
}

// Option configures a Monitor or Group.
type Option func(*options)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithWarnAfter logs a single warning if a service is still not ready after d.
func WithWarnAfter(d time.Duration) Option {
	return func(o *options) { o.warnAfter = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// OnReady registers a callback for readiness transitions.
func OnReady(fn ReadyFunc) Option {
	return func(o *options) { o.onReady = fn }
}

func buildOptions(opts []Option) options {
	o := options{interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.metrics = metrics.OrNoop(o.metrics)
	return o
}

// Monitor polls one service's endpoint and latches its flag in a State.
type Monitor struct {
	name     string
	endpoint Endpoint
	prober   Prober
	state    *State
	opts     options
	logger   *slog.Logger
}

// NewMonitor creates a monitor for name. name must be an entry of state.
func NewMonitor(name string, ep Endpoint, prober Prober, state *State, opts ...Option) *Monitor {
	o := buildOptions(opts)
	return &Monitor{
		name:     name,
		endpoint: ep,
		prober:   prober,
		state:    state,
		opts:     o,
		logger:   o.logger.With(slog.String("service", name)),
	}
}

// Run probes immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	started := time.Now()
	warned := false

	m.poll(ctx, started, &warned)

	ticker := time.NewTicker(m.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, started, &warned)
		}
	}
}

func (m *Monitor) poll(ctx context.Context, started time.Time, warned *bool) {
	if ctx.Err() != nil {
		return
	}

	begin := time.Now()
	ok := m.prober.Probe(ctx, m.endpoint)
	m.opts.metrics.ProbeCompleted(m.name, ok, time.Since(begin))

	// A probe finishing after cancellation no longer matters.
	if ctx.Err() != nil {
		return
	}

	if ok {
		changed, completed := m.state.MarkReady(m.name)
		if !changed {
			return
		}
		m.logger.Info("service ready", "url", m.endpoint.URL, "after", time.Since(started).Round(time.Millisecond))
		m.opts.metrics.ServiceReady(m.name, true)
		if completed {
			m.opts.metrics.Readiness(true)
		}
		if m.opts.onReady != nil {
			m.opts.onReady(m.name, completed)
		}
		return
	}

	if ready, _ := m.state.Ready(m.name); ready {
		m.logger.Debug("probe failed after ready, keeping latch", "url", m.endpoint.URL)
		return
	}

	m.logger.Debug("service not ready yet", "url", m.endpoint.URL)
	if m.opts.warnAfter > 0 && !*warned && time.Since(started) >= m.opts.warnAfter {
		*warned = true
		m.logger.Warn("service still warming up", "url", m.endpoint.URL, "waited", time.Since(started).Round(time.Second))
	}
}

// Target names a service and its health endpoint.
type Target struct {
	Name     string
	Endpoint Endpoint
}

// TargetsFromConfig returns one target per service, in order.
func TargetsFromConfig(services []config.ServiceConfig) []Target {
	targets := make([]Target, 0, len(services))
	for _, svc := range services {
		targets = append(targets, Target{Name: svc.Name, Endpoint: EndpointFor(svc)})
	}
	return targets
}

// Group runs one Monitor per target against a shared State.
type Group struct {
	state    *State
	monitors []*Monitor
	opts     options

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewGroup creates a group and its State. Every flag starts false.
func NewGroup(targets []Target, prober Prober, opts ...Option) *Group {
	o := buildOptions(opts)

	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, t.Name)
	}
	state := NewState(names...)

	g := &Group{state: state, opts: o}
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		g.monitors = append(g.monitors, NewMonitor(t.Name, t.Endpoint, prober, state, opts...))
	}
	return g
}

// State returns the shared readiness state.
func (g *Group) State() *State {
	return g.state
}

// Start launches every monitor. Calls after the first, or after Stop, do nothing.
func (g *Group) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started || g.stopped {
		return
	}
	g.started = true

	ctx, g.cancel = context.WithCancel(ctx)
	for _, m := range g.monitors {
		g.opts.metrics.ServiceReady(m.name, false)
		g.wg.Add(1)
		go func(m *Monitor) {
			defer g.wg.Done()
			m.Run(ctx)
		}(m)
	}
	g.opts.metrics.Readiness(g.state.AllReady())
	g.opts.logger.Debug("monitors started", "count", len(g.monitors), "interval", g.opts.interval)
}

// Stop cancels every monitor and waits for them to return.
func (g *Group) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}
