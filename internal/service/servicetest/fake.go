// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package servicetest provides in-memory spawners and handles for tests.
package servicetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/service"
)

// Handle is a fake owned process. Terminate closes Done and counts calls.
type Handle struct {
	spec    config.ServiceConfig
	pid     int
	started time.Time
	onExit  service.ExitFunc

	mu         sync.Mutex
	state      service.HandleState
	exitCode   int
	done       chan struct{}
	closeOnce  sync.Once
	terminates atomic.Int32
	// TerminateErr is returned by every Terminate call when set.
	TerminateErr error
}

func (h *Handle) Name() string               { return h.spec.Name }
func (h *Handle) Spec() config.ServiceConfig { return h.spec }
func (h *Handle) PID() int                   { return h.pid }
func (h *Handle) StartedAt() time.Time       { return h.started }
func (h *Handle) Done() <-chan struct{}      { return h.done }

func (h *Handle) State() service.HandleState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Terminate records the call and marks the handle terminated.
func (h *Handle) Terminate(ctx context.Context) error {
	h.terminates.Add(1)
	h.mu.Lock()
	if h.state == service.StateRunning {
		h.state = service.StateTerminated
	}
	h.mu.Unlock()
	h.closeOnce.Do(func() { close(h.done) })
	return h.TerminateErr
}

// Terminates returns how many times Terminate was called.
func (h *Handle) Terminates() int {
	return int(h.terminates.Load())
}

// Exit simulates the process exiting on its own.
func (h *Handle) Exit(code int) {
	h.mu.Lock()
	h.state = service.StateExited
	h.exitCode = code
	h.mu.Unlock()
	h.closeOnce.Do(func() { close(h.done) })

	var err error
	if code != 0 {
		err = errors.New("exit status")
	}
	if h.onExit != nil {
		h.onExit(h, code, err)
	}
}

// Spawner records spawns and returns fake handles.
type Spawner struct {
	mu      sync.Mutex
	nextPID int
	handles []*Handle
	byName  map[string][]*Handle

	// Fail makes Spawn fail for the named services.
	Fail map[string]error
	// OnSpawn runs after a successful spawn, before Spawn returns.
	OnSpawn func(spec config.ServiceConfig)
}

// NewSpawner creates an empty fake spawner.
func NewSpawner() *Spawner {
	return &Spawner{nextPID: 1000, byName: make(map[string][]*Handle), Fail: make(map[string]error)}
}

// Spawn implements service.Spawner.
func (s *Spawner) Spawn(ctx context.Context, spec config.ServiceConfig, onExit service.ExitFunc) (service.Handle, error) {
	s.mu.Lock()
	if err, ok := s.Fail[spec.Name]; ok {
		s.mu.Unlock()
		return nil, err
	}
	s.nextPID++
	h := &Handle{
		spec:    spec,
		pid:     s.nextPID,
		started: time.Now(),
		onExit:  onExit,
		state:   service.StateRunning,
		done:    make(chan struct{}),
	}
	s.handles = append(s.handles, h)
	s.byName[spec.Name] = append(s.byName[spec.Name], h)
	hook := s.OnSpawn
	s.mu.Unlock()

	if hook != nil {
		hook(spec)
	}
	return h, nil
}

// Spawned returns how many handles were created.
func (s *Spawner) Spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// SpawnedFor returns the handles created for a service.
func (s *Spawner) SpawnedFor(name string) []*Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Handle(nil), s.byName[name]...)
}

// Terminates returns the total number of Terminate calls across all handles.
func (s *Spawner) Terminates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.handles {
		n += h.Terminates()
	}
	return n
}

// Detector is a fake already-running check keyed by service name.
type Detector struct {
	mu      sync.Mutex
	running map[string]bool
	calls   map[string]int
}

// NewDetector creates a detector reporting the named services as running.
func NewDetector(running ...string) *Detector {
	d := &Detector{running: make(map[string]bool), calls: make(map[string]int)}
	for _, name := range running {
		d.running[name] = true
	}
	return d
}

// Set changes whether a service is reported as running.
func (d *Detector) Set(name string, running bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running[name] = running
}

// Calls returns how many checks ran for a service.
func (d *Detector) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// Running implements service.Detector.
func (d *Detector) Running(ctx context.Context, spec config.ServiceConfig) (bool, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls[spec.Name]++
	if d.running[spec.Name] {
		return true, "fake detector"
	}
	return false, ""
}
