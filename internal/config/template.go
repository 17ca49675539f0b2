// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// TemplateContext holds the values available to {{ }} expansions in
// service fields.
type TemplateContext struct {
	ConfigDir string // Directory containing the config file
	Home      string // User home directory
	Project   ProjectConfig
}

// TemplateExpander handles Go text/template variable expansion in config values.
type TemplateExpander struct {
	funcMap template.FuncMap
}

// NewTemplateExpander creates a new template expander with built-in functions.
func NewTemplateExpander() *TemplateExpander {
	return &TemplateExpander{
		funcMap: template.FuncMap{
			"upper":   strings.ToUpper,
			"lower":   strings.ToLower,
			"default": defaultValue,
			"quote":   quote,
		},
	}
}

// Expand expands template variables in a string value.
func (e *TemplateExpander) Expand(value string, ctx *TemplateContext) (string, error) {
	if !strings.Contains(value, "{{") {
		return value, nil
	}

	tmpl, err := template.New("value").Funcs(e.funcMap).Option("missingkey=error").Parse(value)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", value, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("execute template %q: %w", value, err)
	}
	return buf.String(), nil
}

// ExpandServices expands templates in every service's command, args,
// work_dir, env values and health URL.
func (e *TemplateExpander) ExpandServices(cfg *Config, ctx *TemplateContext) error {
	for i := range cfg.Services {
		svc := &cfg.Services[i]
		prefix := fmt.Sprintf("services[%d]", i)

		switch cmd := svc.Command.(type) {
		case string:
			out, err := e.Expand(cmd, ctx)
			if err != nil {
				return fmt.Errorf("%s.command: %w", prefix, err)
			}
			svc.Command = out
		case []interface{}:
			for j, v := range cmd {
				s, ok := v.(string)
				if !ok {
					continue
				}
				out, err := e.Expand(s, ctx)
				if err != nil {
					return fmt.Errorf("%s.command[%d]: %w", prefix, j, err)
				}
				cmd[j] = out
			}
		}

		for j, arg := range svc.Args {
			out, err := e.Expand(arg, ctx)
			if err != nil {
				return fmt.Errorf("%s.args[%d]: %w", prefix, j, err)
			}
			svc.Args[j] = out
		}

		out, err := e.Expand(svc.WorkDir, ctx)
		if err != nil {
			return fmt.Errorf("%s.work_dir: %w", prefix, err)
		}
		svc.WorkDir = out

		for k, v := range svc.Env {
			out, err := e.Expand(v, ctx)
			if err != nil {
				return fmt.Errorf("%s.env.%s: %w", prefix, k, err)
			}
			svc.Env[k] = out
		}

		out, err = e.Expand(svc.Health.URL, ctx)
		if err != nil {
			return fmt.Errorf("%s.health.url: %w", prefix, err)
		}
		svc.Health.URL = out
	}
	return nil
}

func defaultValue(def, val interface{}) interface{} {
	if val == nil {
		return def
	}
	if s, ok := val.(string); ok && s == "" {
		return def
	}
	return val
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
