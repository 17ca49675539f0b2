// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus that reports supervisor activity.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Service   string                 `json:"service,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types   []string  // Event types to match (supports wildcards)
	Service string    // Filter by service name
	Since   time.Time // Events after this time
	Until   time.Time // Events before this time
	Limit   int       // Maximum events to return (most recent)
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types published by papertalk.
const (
	// Supervisor events
	EventServiceExternal    = "service.external"     // Already running, not owned
	EventServiceSpawned     = "service.spawned"      // Spawned and owned
	EventServiceSpawnFailed = "service.spawn_failed" // Spawn error, isolated
	EventServiceExited      = "service.exited"       // Owned process exited on its own
	EventServiceTerminated  = "service.terminated"   // Terminate issued at shutdown

	// Readiness events
	EventServiceReady   = "service.ready"   // A monitor latched its flag
	EventReadinessReady = "readiness.ready" // Every flag is true

	// Lifecycle events
	EventLifecycleChanged = "lifecycle.changed"

	// Config file edited on disk
	EventConfigChanged = "config.changed"
)
