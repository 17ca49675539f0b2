// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ServiceClient lists supervised services.
//
// Access this client through [Client.Services]:
//
//	services, err := client.Services.List(ctx)
type ServiceClient struct {
	c *Client
}

// List returns every configured service in config order.
//
// Example:
//
//	services, err := client.Services.List(ctx)
//	for _, svc := range services {
//	    fmt.Printf("%s: %s ready=%v\n", svc.Name, svc.Ownership, svc.Ready)
//	}
func (s *ServiceClient) List(ctx context.Context) ([]Service, error) {
	data, err := s.c.get(ctx, "/api/v1/services")
	if err != nil {
		return nil, err
	}

	var services []Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("failed to parse services: %w", err)
	}

	return services, nil
}

// Get returns a specific service by name.
//
// Returns an *APIError with code NOT_FOUND if the service does not exist.
func (s *ServiceClient) Get(ctx context.Context, name string) (*Service, error) {
	data, err := s.c.get(ctx, "/api/v1/services/"+url.PathEscape(name))
	if err != nil {
		return nil, err
	}

	var svc Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return nil, fmt.Errorf("failed to parse service: %w", err)
	}

	return &svc, nil
}
