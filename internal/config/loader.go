// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hjson/hjson-go/v4"
	"gopkg.in/yaml.v3"
)

// DefaultServerPort is the control API port used when none is configured.
const DefaultServerPort = 8765

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
// Files ending in .yaml or .yml are parsed as YAML, everything else as HJSON.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	raw, err := decodeRaw(path, data)
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so both formats share the struct tags.
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func decodeRaw(path string, data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := hjson.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse hjson: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Version:  "1.0",
		Project:  ProjectConfig{Name: "papertalk"},
		Services: DefaultServices(),
	}
	applyDefaults(cfg)
	return cfg
}

// FindConfig searches for a config file in the current directory.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"papertalk.hjson",
		"papertalk.json",
		"papertalk.yaml",
		"papertalk.yml",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for %s)", strings.Join(candidates, ", "))
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.Readiness.Interval == "" {
		cfg.Readiness.Interval = "1s"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 1000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "papertalk"
	}

	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = "200ms"
	}

	for i := range cfg.Services {
		svc := &cfg.Services[i]
		if svc.Launch == "" {
			svc.Launch = LaunchAlways
		}
		if svc.Health.Timeout == "" {
			svc.Health.Timeout = "2s"
		}
		if svc.StopSignal == "" {
			svc.StopSignal = "SIGTERM"
		}
		if svc.StopTimeout == "" {
			svc.StopTimeout = "10s"
		}
	}
}
