// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle sequences startup and shutdown of the service stack.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wingedpig/papertalk/internal/events"
	"github.com/wingedpig/papertalk/internal/metrics"
	"github.com/wingedpig/papertalk/internal/service"
)

// State is the controller's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateLaunching
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ErrAlreadyStarted is returned by Start when the controller has left Idle.
var ErrAlreadyStarted = errors.New("lifecycle already started")

// Launcher launches and terminates the supervised services.
type Launcher interface {
	LaunchAll(ctx context.Context) []service.LaunchResult
	TerminateAll(ctx context.Context) int
}

// Monitors polls service readiness in the background.
type Monitors interface {
	Start(ctx context.Context)
	Stop()
}

// Transition records one state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

// Controller drives Idle → Launching → Running → ShuttingDown → Stopped.
// Start launches everything and returns without waiting for readiness;
// Quit terminates every owned process before reporting Stopped.
type Controller struct {
	launcher Launcher
	monitors Monitors
	bus      events.EventBus
	metrics  metrics.Collector
	logger   *slog.Logger

	mu          sync.Mutex
	state       State
	history     []Transition
	terminated  int
	launched    chan struct{}
	done        chan struct{}
	quitStarted bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithEventBus publishes lifecycle.changed events to bus.
func WithEventBus(bus events.EventBus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates an idle controller.
func NewController(launcher Launcher, monitors Monitors, opts ...Option) *Controller {
	c := &Controller{
		launcher: launcher,
		monitors: monitors,
		state:    StateIdle,
		launched: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.metrics = metrics.OrNoop(c.metrics)
	c.metrics.LifecycleState(StateIdle.String())
	return c
}

// Start launches every service and starts the readiness monitors. It
// returns once launch decisions are made, without waiting for readiness.
// The monitors run under ctx until Quit.
func (c *Controller) Start(ctx context.Context) ([]service.LaunchResult, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	tr := c.transitionLocked(StateLaunching)
	c.mu.Unlock()
	c.announce(ctx, tr)

	results := c.launcher.LaunchAll(ctx)
	for _, res := range results {
		if res.Err != nil {
			c.logger.Warn("service did not launch", "service", res.Name, "error", res.Err)
		}
	}

	c.mu.Lock()
	quitting := c.quitStarted
	if !quitting {
		tr = c.transitionLocked(StateRunning)
	}
	c.mu.Unlock()
	close(c.launched)

	// Quit arrived while launching; it owns the rest of the sequence.
	if quitting {
		return results, nil
	}
	c.announce(ctx, tr)

	c.monitors.Start(ctx)
	c.logger.Info("services launched, waiting for readiness", "services", len(results))
	return results, nil
}

// Quit stops the monitors, terminates every owned process and moves to
// Stopped. It blocks until Stopped. Calls after the first wait for the
// first to finish and do nothing else.
func (c *Controller) Quit(ctx context.Context) {
	c.mu.Lock()
	if c.quitStarted {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.quitStarted = true
	from := c.state
	tr := c.transitionLocked(StateShuttingDown)
	c.mu.Unlock()
	c.announce(ctx, tr)

	if from == StateLaunching {
		c.logger.Info("quit requested during launch, waiting for launches to finish")
		<-c.launched
	}

	c.monitors.Stop()

	n := 0
	if from != StateIdle {
		n = c.launcher.TerminateAll(ctx)
	}

	c.mu.Lock()
	c.terminated = n
	tr = c.transitionLocked(StateStopped)
	c.mu.Unlock()
	c.announce(ctx, tr)

	c.logger.Info("stopped", "terminated", n)
	close(c.done)
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the controller reaches Stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Snapshot describes the controller for the API.
type Snapshot struct {
	State       State        `json:"state"`
	Transitions []Transition `json:"transitions"`
	Terminated  int          `json:"terminated"`
}

// Snapshot returns a copy of the controller's state and history.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:       c.state,
		Transitions: append([]Transition(nil), c.history...),
		Terminated:  c.terminated,
	}
}

func (c *Controller) transitionLocked(to State) Transition {
	tr := Transition{From: c.state, To: to, At: time.Now()}
	c.state = to
	c.history = append(c.history, tr)
	c.metrics.LifecycleState(to.String())
	return tr
}

// announce runs outside c.mu so subscribers may call back into the controller.
func (c *Controller) announce(ctx context.Context, tr Transition) {
	c.logger.Debug("lifecycle transition", "from", tr.From.String(), "to", tr.To.String())
	if c.bus == nil {
		return
	}
	_ = c.bus.Publish(context.WithoutCancel(ctx), events.Event{
		Type: events.EventLifecycleChanged,
		Payload: map[string]interface{}{
			"from": tr.From.String(),
			"to":   tr.To.String(),
		},
	})
}
