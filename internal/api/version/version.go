// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version carries the date-based API version negotiated through
// the Papertalk-Version header. Requests without the header get the
// latest version.
package version

import (
	"context"
	"slices"
)

const (
	// Version20261001 is the initial API version.
	Version20261001 = "2026-10-01"
)

// LatestVersion is the current default API version.
var LatestVersion = Version20261001

// Supported lists every version the server answers.
var Supported = []string{Version20261001}

// Header is the HTTP header used to specify the API version.
const Header = "Papertalk-Version"

type contextKey string

const versionKey contextKey = "api-version"

// IsSupported reports whether v is a version the server answers.
func IsSupported(v string) bool {
	return slices.Contains(Supported, v)
}

// FromContext returns the API version from the context, or LatestVersion.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext returns a new context with the API version set.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}
