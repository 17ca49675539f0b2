// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON and YAML configuration loading.
package config

import (
	"strings"
	"time"
)

// Launch modes for a service.
const (
	// LaunchAmbient checks whether the service is already available and
	// spawns it only if it is not.
	LaunchAmbient = "ambient"
	// LaunchAlways spawns the service unconditionally.
	LaunchAlways = "always"
	// LaunchNone never spawns the service; it is only monitored.
	LaunchNone = "none"
)

// Config is the root configuration structure for papertalk.
type Config struct {
	Version   string          `json:"version"`
	Project   ProjectConfig   `json:"project"`
	Server    ServerConfig    `json:"server"`
	Readiness ReadinessConfig `json:"readiness"`
	Logging   LoggingConfig   `json:"logging"`
	Events    EventsConfig    `json:"events"`
	Metrics   MetricsConfig   `json:"metrics"`
	Watch     WatchConfig     `json:"watch"`
	Services  []ServiceConfig `json:"services"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig configures the control API server.
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
	// AllowedOrigins lists browser origins (e.g. "http://localhost:3000")
	// that may call the API. Requests from any other origin are refused.
	AllowedOrigins []string `json:"allowed_origins"`
}

// ReadinessConfig configures health monitoring.
type ReadinessConfig struct {
	Interval  string `json:"interval"`   // Poll interval per service (default "1s")
	WarnAfter string `json:"warn_after"` // Log a warning if a service is not ready after this long ("" disables)
}

// LoggingConfig configures papertalk's own logging.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Namespace string `json:"namespace"`
	Disabled  bool   `json:"disabled"`
}

// WatchConfig controls the config file watcher. Edits are reported,
// never applied to the running stack.
type WatchConfig struct {
	Disabled bool   `json:"disabled"`
	Debounce string `json:"debounce"` // Quiet period before reporting a change (default "200ms")
}

// ServiceConfig defines a supervised service.
type ServiceConfig struct {
	Name        string            `json:"name"`
	Command     interface{}       `json:"command"` // string or []string
	Args        []string          `json:"args"`
	WorkDir     string            `json:"work_dir"`
	Env         map[string]string `json:"env"`
	Launch      string            `json:"launch"` // "ambient", "always", "none"
	Health      HealthConfig      `json:"health"`
	Detect      DetectConfig      `json:"detect"`
	StopSignal  string            `json:"stop_signal"`
	StopTimeout string            `json:"stop_timeout"`
	Enabled     *bool             `json:"enabled"`
	Disabled    *bool             `json:"disabled"`
}

// HealthConfig describes how a service's health is probed.
type HealthConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout"`
}

// DetectConfig extends the already-running check for ambient services.
type DetectConfig struct {
	Process string `json:"process"` // Executable name that counts as "already running"
}

// ParseDuration parses a duration string with a default fallback.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// IsEnabled returns whether the service is enabled.
func (s *ServiceConfig) IsEnabled() bool {
	if s.Disabled != nil && *s.Disabled {
		return false
	}
	if s.Enabled != nil {
		return *s.Enabled
	}
	return true
}

// LaunchMode returns the launch mode, defaulting to "always".
func (s *ServiceConfig) LaunchMode() string {
	if s.Launch == "" {
		return LaunchAlways
	}
	return strings.ToLower(s.Launch)
}

// HealthTimeout returns the per-probe timeout.
func (s *ServiceConfig) HealthTimeout() time.Duration {
	return ParseDuration(s.Health.Timeout, 2*time.Second)
}

// GetStopTimeout returns how long to wait after the stop signal before killing.
func (s *ServiceConfig) GetStopTimeout() time.Duration {
	return ParseDuration(s.StopTimeout, 10*time.Second)
}

// GetCommand returns the command as a slice of strings.
func (s *ServiceConfig) GetCommand() []string {
	switch cmd := s.Command.(type) {
	case string:
		return splitCommand(cmd)
	case []interface{}:
		result := make([]string, 0, len(cmd))
		for _, v := range cmd {
			if str, ok := v.(string); ok {
				result = append(result, str)
			}
		}
		if len(result) == 0 {
			return nil
		}
		return result
	case []string:
		return cmd
	default:
		return nil
	}
}

// Argv returns the full argument vector: command followed by args.
func (s *ServiceConfig) Argv() []string {
	cmd := s.GetCommand()
	if len(cmd) == 0 {
		return nil
	}
	argv := make([]string, 0, len(cmd)+len(s.Args))
	argv = append(argv, cmd...)
	return append(argv, s.Args...)
}

// EnabledServices returns the enabled services in declaration order.
func (c *Config) EnabledServices() []ServiceConfig {
	var out []ServiceConfig
	for _, svc := range c.Services {
		if svc.IsEnabled() {
			out = append(out, svc)
		}
	}
	return out
}

// splitCommand splits a command string on whitespace, honoring quotes.
func splitCommand(cmd string) []string {
	var result []string
	var current strings.Builder
	var inQuote rune
	var escape bool

	for _, r := range cmd {
		if escape {
			current.WriteRune(r)
			escape = false
			continue
		}

		if r == '\\' && inQuote != '\'' {
			escape = true
			continue
		}

		if inQuote != 0 {
			if r == inQuote {
				inQuote = 0
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if r == '"' || r == '\'' {
			inQuote = r
			continue
		}

		if r == ' ' || r == '\t' {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
