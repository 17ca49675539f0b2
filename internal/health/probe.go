// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package health probes service endpoints and tracks latched readiness.
package health

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/wingedpig/papertalk/internal/config"
)

// DefaultProbeTimeout bounds a probe whose endpoint sets no timeout.
const DefaultProbeTimeout = 2 * time.Second

// Endpoint is where and how long to probe a service.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// EndpointFor builds the health endpoint for a service.
func EndpointFor(svc config.ServiceConfig) Endpoint {
	return Endpoint{URL: svc.Health.URL, Timeout: svc.HealthTimeout()}
}

// Prober performs a single health check. Implementations never return an
// error: every failure is reported as false.
type Prober interface {
	Probe(ctx context.Context, ep Endpoint) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, ep Endpoint) bool

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, ep Endpoint) bool {
	return f(ctx, ep)
}

// HTTPProber probes with a GET request; any 2xx status is healthy.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates an HTTPProber. Keep-alives are disabled so every
// probe is an independent attempt.
func NewHTTPProber() *HTTPProber {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	return &HTTPProber{client: &http.Client{Transport: transport}}
}

// Probe reports whether the endpoint answered with a 2xx status within its timeout.
func (p *HTTPProber) Probe(ctx context.Context, ep Endpoint) bool {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
