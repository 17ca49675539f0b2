// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"errors"
	"fmt"
	"path"
)

// ErrEmptyPattern is returned when compiling an empty pattern.
var ErrEmptyPattern = errors.New("empty pattern")

// PatternMatcher handles event pattern matching.
//
// Patterns are shell globs over the event type: "service.*" matches every
// service event, "*.ready" matches "service.ready" and "readiness.ready",
// and "*" matches everything.
type PatternMatcher struct{}

// NewPatternMatcher creates a new pattern matcher.
func NewPatternMatcher() *PatternMatcher {
	return &PatternMatcher{}
}

// Match checks if an event type matches a pattern. Malformed patterns never match.
func (pm *PatternMatcher) Match(eventType, pattern string) bool {
	if pattern == "" || eventType == "" {
		return false
	}
	ok, err := path.Match(pattern, eventType)
	return err == nil && ok
}

// Compile validates a pattern and returns a reusable matcher for it.
func (pm *PatternMatcher) Compile(pattern string) (CompiledPattern, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &compiledPattern{pattern: pattern, matcher: pm}, nil
}

// CompiledPattern is a validated pattern.
type CompiledPattern interface {
	Match(eventType string) bool
}

type compiledPattern struct {
	pattern string
	matcher *PatternMatcher
}

func (cp *compiledPattern) Match(eventType string) bool {
	return cp.matcher.Match(eventType, cp.pattern)
}
