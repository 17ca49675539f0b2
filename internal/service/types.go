// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package service launches, tracks and terminates the supervised processes.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/wingedpig/papertalk/internal/config"
)

var (
	// ErrEmptyCommand is returned when a service has no command to run.
	ErrEmptyCommand = errors.New("empty command")
	// ErrUnknownService is returned for a name that is not configured.
	ErrUnknownService = errors.New("unknown service")
)

// HandleState is the lifecycle state of an owned process.
type HandleState int

const (
	StateRunning HandleState = iota
	StateTerminating
	StateTerminated
	StateExited
)

func (s HandleState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler to output the string representation.
func (s HandleState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// Handle is a process the supervisor spawned and owns.
type Handle interface {
	Name() string
	Spec() config.ServiceConfig
	PID() int
	State() HandleState
	ExitCode() int
	StartedAt() time.Time
	// Done is closed once the process has exited.
	Done() <-chan struct{}
	// Terminate stops the process. Only the first call signals it; every
	// call returns the same result.
	Terminate(ctx context.Context) error
}

// ExitFunc is called when an owned process exits without being terminated.
type ExitFunc func(h Handle, exitCode int, err error)

// Spawner starts processes.
type Spawner interface {
	Spawn(ctx context.Context, spec config.ServiceConfig, onExit ExitFunc) (Handle, error)
}

// Detector reports whether a service is already available without us.
type Detector interface {
	Running(ctx context.Context, spec config.ServiceConfig) (running bool, reason string)
}

// Ownership describes how the supervisor relates to a service.
type Ownership string

const (
	// OwnershipPending means no launch decision has been made yet.
	OwnershipPending Ownership = "pending"
	// OwnershipOwned means the supervisor spawned the process and holds its handle.
	OwnershipOwned Ownership = "owned"
	// OwnershipExternal means the service was already available and is left alone.
	OwnershipExternal Ownership = "external"
	// OwnershipFailed means the spawn failed. It is not retried.
	OwnershipFailed Ownership = "failed"
	// OwnershipUnmanaged means the service is only monitored.
	OwnershipUnmanaged Ownership = "unmanaged"
)

// LaunchResult is the outcome of one launch decision.
type LaunchResult struct {
	Name      string
	Mode      string
	Ownership Ownership
	PID       int
	Reason    string
	Err       error
}

// ServiceInfo describes a configured service and what the supervisor did with it.
type ServiceInfo struct {
	Name      string     `json:"name"`
	Mode      string     `json:"mode"`
	Ownership Ownership  `json:"ownership"`
	HealthURL string     `json:"health_url"`
	Command   []string   `json:"command,omitempty"`
	State     string     `json:"state,omitempty"`
	PID       int        `json:"pid,omitempty"`
	ExitCode  int        `json:"exit_code,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
}
