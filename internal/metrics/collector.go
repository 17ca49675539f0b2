// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics records supervisor and readiness activity.
package metrics

import (
	"net/http"
	"time"
)

// Collector receives supervisor and readiness observations.
type Collector interface {
	// ProbeCompleted records one health probe.
	ProbeCompleted(service string, ok bool, duration time.Duration)

	// ServiceReady records a service's readiness flag.
	ServiceReady(service string, ready bool)

	// Readiness records the aggregated readiness gate.
	Readiness(ready bool)

	// SpawnAttempt records a spawn and its outcome.
	SpawnAttempt(service string, err error)

	// ExternalDetected records a service found already running.
	ExternalDetected(service string)

	// TerminateIssued records a terminate call at shutdown.
	TerminateIssued(service string, duration time.Duration, err error)

	// ProcessExited records an owned process exiting on its own.
	ProcessExited(service string, exitCode int)

	// LifecycleState records the controller's current state.
	LifecycleState(state string)

	// Handler serves the collected metrics, or nil if there is nothing to serve.
	Handler() http.Handler
}

type noopCollector struct{}

func (noopCollector) ProbeCompleted(string, bool, time.Duration)   {}
func (noopCollector) ServiceReady(string, bool)                    {}
func (noopCollector) Readiness(bool)                               {}
func (noopCollector) SpawnAttempt(string, error)                   {}
func (noopCollector) ExternalDetected(string)                      {}
func (noopCollector) TerminateIssued(string, time.Duration, error) {}
func (noopCollector) ProcessExited(string, int)                    {}
func (noopCollector) LifecycleState(string)                        {}
func (noopCollector) Handler() http.Handler                        { return nil }

// NewNoop returns a collector that discards everything.
func NewNoop() Collector {
	return noopCollector{}
}

// OrNoop returns c, or a no-op collector when c is nil.
func OrNoop(c Collector) Collector {
	if c == nil {
		return NewNoop()
	}
	return c
}
