// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultWaitInterval is how often Wait polls.
const DefaultWaitInterval = time.Second

// ReadinessClient reports the readiness gate.
//
// Access this client through [Client.Readiness]:
//
//	r, err := client.Readiness.Get(ctx)
type ReadinessClient struct {
	c *Client
}

// Get returns the current readiness flags.
func (r *ReadinessClient) Get(ctx context.Context) (*Readiness, error) {
	data, err := r.c.get(ctx, "/api/v1/readiness")
	if err != nil {
		return nil, err
	}

	var rd Readiness
	if err := json.Unmarshal(data, &rd); err != nil {
		return nil, fmt.Errorf("failed to parse readiness: %w", err)
	}
	return &rd, nil
}

// WaitOptions configures [ReadinessClient.Wait].
type WaitOptions struct {
	// Interval between polls. Defaults to [DefaultWaitInterval].
	Interval time.Duration

	// OnPending is called after every poll that found the stack not ready.
	// r is nil when the server could not be reached.
	OnPending func(r *Readiness, err error)
}

// Wait polls until every service is ready or ctx is done. Request errors
// are treated as "not ready yet" so Wait can start before the server does.
// On ctx expiry it returns the last readiness seen along with ctx.Err().
func (r *ReadinessClient) Wait(ctx context.Context, opts *WaitOptions) (*Readiness, error) {
	interval := DefaultWaitInterval
	var onPending func(*Readiness, error)
	if opts != nil {
		if opts.Interval > 0 {
			interval = opts.Interval
		}
		onPending = opts.OnPending
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *Readiness
	for {
		rd, err := r.Get(ctx)
		if err == nil {
			last = rd
			if rd.Ready {
				return rd, nil
			}
		}
		if onPending != nil {
			onPending(rd, err)
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
