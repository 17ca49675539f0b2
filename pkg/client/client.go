// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the papertalk control API.
//
// papertalk launches the local model stack and reports when every service
// answers its health check. This client gives typed access to readiness,
// service, lifecycle and event endpoints.
//
// # Getting Started
//
//	c := client.New("http://127.0.0.1:8765")
//
//	// Block until the stack is ready
//	r, err := c.Readiness.Wait(ctx, nil)
//
//	// Inspect what was spawned and what was already running
//	services, err := c.Services.List(ctx)
//
//	// Shut everything down
//	err = c.Lifecycle.Quit(ctx)
//
// # API Versioning
//
// The API uses date-based versions sent in the Papertalk-Version header.
// By default the client uses [LatestVersion]; pin one with [WithVersion].
//
// # Error Handling
//
// API errors are returned as *APIError values:
//
//	svc, err := c.Services.Get(ctx, "unknown")
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
//	    ...
//	}
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a papertalk API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Readiness reports and waits on the readiness gate.
	Readiness *ReadinessClient

	// Services lists supervised services and how each was launched.
	Services *ServiceClient

	// Lifecycle reports the supervisor state and requests shutdown.
	Lifecycle *LifecycleClient

	// Events provides access to the event log.
	Events *EventClient
}

// Option configures a [Client]. Options are passed to [New] to customize
// client behavior.
type Option func(*Client)

// New creates a client for the server at baseURL (e.g. "http://127.0.0.1:8765").
// By default it uses [LatestVersion] and a 10-second HTTP timeout.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Readiness = &ReadinessClient{c: c}
	c.Services = &ServiceClient{c: c}
	c.Lifecycle = &LifecycleClient{c: c}
	c.Events = &EventClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
}

// APIError is an error response from the server. Code is one of
// NOT_FOUND, BAD_REQUEST, CONFLICT or INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// do performs an HTTP request and parses the response.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (json.RawMessage, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Try to parse as standard envelope
	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		// If we can't parse it and status is bad, return error
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		// Return raw body for non-envelope responses
		return respBody, nil
	}

	if apiResp.Error != nil {
		apiResp.Error.StatusCode = resp.StatusCode
		return nil, apiResp.Error
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Message: resp.Status, StatusCode: resp.StatusCode}
	}

	return apiResp.Data, nil
}
