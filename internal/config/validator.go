// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

var validSignals = map[string]bool{
	"SIGTERM": true,
	"SIGINT":  true,
	"SIGKILL": true,
	"SIGQUIT": true,
	"SIGHUP":  true,
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateServices(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs.Add("server.port", "must be between 0 and 65535")
	}

	for i, origin := range cfg.Server.AllowedOrigins {
		field := fmt.Sprintf("server.allowed_origins[%d]", i)
		u, err := url.Parse(origin)
		switch {
		case err != nil || u.Host == "":
			errs.Add(field, fmt.Sprintf("invalid origin '%s'", origin))
		case u.Scheme != "http" && u.Scheme != "https":
			errs.Add(field, "must use http or https")
		case (u.Path != "" && u.Path != "/") || u.RawQuery != "":
			errs.Add(field, "must be scheme://host[:port] without a path")
		}
	}
}

func (v *Validator) validateServices(cfg *Config, errs *ValidationError) {
	seenNames := make(map[string]bool)

	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)

		if svc.Name == "" {
			errs.Add(prefix+".name", "is required")
		} else if seenNames[svc.Name] {
			errs.Add(prefix+".name", fmt.Sprintf("duplicate service name '%s'", svc.Name))
		} else {
			seenNames[svc.Name] = true
		}

		mode := svc.LaunchMode()
		switch mode {
		case LaunchAmbient, LaunchAlways, LaunchNone:
		default:
			errs.Add(prefix+".launch", fmt.Sprintf("invalid launch mode '%s', must be one of: ambient, always, none", svc.Launch))
		}

		if mode != LaunchNone && len(svc.GetCommand()) == 0 {
			errs.Add(prefix+".command", "is required")
		}

		if svc.Health.URL == "" {
			errs.Add(prefix+".health.url", "is required")
		} else if u, err := url.Parse(svc.Health.URL); err != nil {
			errs.Add(prefix+".health.url", fmt.Sprintf("invalid url: %s", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs.Add(prefix+".health.url", "must use http or https")
		} else if u.Host == "" {
			errs.Add(prefix+".health.url", "must include a host")
		}

		if svc.StopSignal != "" && !validSignals[strings.ToUpper(svc.StopSignal)] {
			errs.Add(prefix+".stop_signal", fmt.Sprintf("unsupported signal '%s'", svc.StopSignal))
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[cfg.Logging.Level] {
			errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
		}
	}

	if cfg.Logging.Format != "" {
		validFormats := map[string]bool{
			"json": true,
			"text": true,
		}
		if !validFormats[cfg.Logging.Format] {
			errs.Add("logging.format", fmt.Sprintf("invalid format '%s', must be one of: json, text", cfg.Logging.Format))
		}
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	checkDuration(errs, "readiness.interval", cfg.Readiness.Interval, true)
	checkDuration(errs, "readiness.warn_after", cfg.Readiness.WarnAfter, false)
	checkDuration(errs, "events.history.max_age", cfg.Events.History.MaxAge, false)
	checkDuration(errs, "watch.debounce", cfg.Watch.Debounce, false)

	for i, svc := range cfg.Services {
		prefix := fmt.Sprintf("services[%d]", i)
		checkDuration(errs, prefix+".health.timeout", svc.Health.Timeout, true)
		checkDuration(errs, prefix+".stop_timeout", svc.StopTimeout, false)
	}
}

func checkDuration(errs *ValidationError, field, value string, nonZero bool) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration format: %s", err))
		return
	}
	if d < 0 {
		errs.Add(field, "must be positive")
	} else if nonZero && d == 0 {
		errs.Add(field, "must be greater than zero")
	}
}
