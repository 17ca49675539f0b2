// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Readiness is the readiness gate: Ready is true once every service's
// health check has succeeded at least once.
type Readiness struct {
	Ready    bool             `json:"ready"`
	Services []ReadinessEntry `json:"services"`
}

// Pending returns the names of services that are not ready yet.
func (r *Readiness) Pending() []string {
	var out []string
	for _, s := range r.Services {
		if !s.Ready {
			out = append(out, s.Name)
		}
	}
	return out
}

// ReadinessEntry is one service's readiness flag.
type ReadinessEntry struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// Service describes a supervised service.
type Service struct {
	Name string `json:"name"`

	// Mode is the launch mode: "ambient", "always" or "none".
	Mode string `json:"mode"`

	// Ownership is "owned" when papertalk spawned the process, "external"
	// when the service was already available, "failed" when the spawn
	// failed and "unmanaged" for monitor-only services.
	Ownership string `json:"ownership"`

	HealthURL string     `json:"health_url"`
	Command   []string   `json:"command,omitempty"`
	State     string     `json:"state,omitempty"` // running, terminating, terminated or exited
	PID       int        `json:"pid,omitempty"`
	ExitCode  int        `json:"exit_code,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
	Ready     bool       `json:"ready"`
}

// Lifecycle is the supervisor's state: idle, launching, running,
// shutting_down or stopped.
type Lifecycle struct {
	State       string       `json:"state"`
	Transitions []Transition `json:"transitions"`
	Terminated  int          `json:"terminated"`
}

// Transition is one lifecycle state change.
type Transition struct {
	From string    `json:"from"`
	To   string    `json:"to"`
	At   time.Time `json:"at"`
}

// Event is an entry in the event log.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"` // e.g. "service.spawned", "readiness.ready"
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Service   string                 `json:"service,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}
