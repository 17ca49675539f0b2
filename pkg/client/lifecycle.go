// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// LifecycleClient reports the supervisor state and requests shutdown.
type LifecycleClient struct {
	c *Client
}

// Get returns the current lifecycle state and transitions.
func (l *LifecycleClient) Get(ctx context.Context) (*Lifecycle, error) {
	data, err := l.c.get(ctx, "/api/v1/lifecycle")
	if err != nil {
		return nil, err
	}

	var lc Lifecycle
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("failed to parse lifecycle: %w", err)
	}
	return &lc, nil
}

// Quit asks the server to terminate every process it spawned and exit.
// It returns once the request is accepted, not when shutdown completes.
func (l *LifecycleClient) Quit(ctx context.Context) error {
	_, err := l.c.post(ctx, "/api/v1/quit")
	return err
}
