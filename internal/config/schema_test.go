// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("", 5*time.Second))
	assert.Equal(t, 250*time.Millisecond, ParseDuration("250ms", time.Second))
	assert.Equal(t, time.Second, ParseDuration("bogus", time.Second))
}

func TestServiceConfig_GetCommand(t *testing.T) {
	tests := []struct {
		name    string
		command interface{}
		want    []string
	}{
		{"string", "ollama serve", []string{"ollama", "serve"}},
		{"quoted string", `sh -c "echo hi there"`, []string{"sh", "-c", "echo hi there"}},
		{"escaped space", `run my\ file`, []string{"run", "my file"}},
		{"interface slice", []interface{}{"uvicorn", "app:app"}, []string{"uvicorn", "app:app"}},
		{"string slice", []string{"llama", "stack"}, []string{"llama", "stack"}},
		{"empty interface slice", []interface{}{}, nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := ServiceConfig{Command: tt.command}
			assert.Equal(t, tt.want, svc.GetCommand())
		})
	}
}

func TestServiceConfig_IsEnabled(t *testing.T) {
	yes, no := true, false

	assert.True(t, (&ServiceConfig{}).IsEnabled())
	assert.False(t, (&ServiceConfig{Enabled: &no}).IsEnabled())
	assert.False(t, (&ServiceConfig{Enabled: &yes, Disabled: &yes}).IsEnabled())
	assert.True(t, (&ServiceConfig{Disabled: &no}).IsEnabled())
}

func TestServiceConfig_LaunchMode(t *testing.T) {
	assert.Equal(t, LaunchAlways, (&ServiceConfig{}).LaunchMode())
	assert.Equal(t, LaunchAmbient, (&ServiceConfig{Launch: "Ambient"}).LaunchMode())
	assert.Equal(t, LaunchNone, (&ServiceConfig{Launch: "none"}).LaunchMode())
}

func TestConfig_EnabledServices(t *testing.T) {
	off := true
	cfg := &Config{Services: []ServiceConfig{
		{Name: "a"},
		{Name: "b", Disabled: &off},
		{Name: "c"},
	}}

	got := cfg.EnabledServices()
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "c", got[1].Name)
}

func TestTemplateExpander_ExpandServices(t *testing.T) {
	cfg := &Config{Services: []ServiceConfig{
		{
			Name:    "backend",
			Command: []interface{}{"{{.ConfigDir}}/venv/bin/uvicorn", "app:app"},
			Args:    []string{"--root", "{{.Home}}"},
			WorkDir: "{{.ConfigDir}}",
			Env:     map[string]string{"APP_NAME": "{{.Project.Name | upper}}"},
			Health:  HealthConfig{URL: "http://localhost:8000/healthz"},
		},
	}}
	ctx := &TemplateContext{
		ConfigDir: "/opt/papertalk",
		Home:      "/home/user",
		Project:   ProjectConfig{Name: "papertalk"},
	}

	err := NewTemplateExpander().ExpandServices(cfg, ctx)
	assert.NoError(t, err)

	svc := cfg.Services[0]
	assert.Equal(t, []string{"/opt/papertalk/venv/bin/uvicorn", "app:app"}, svc.GetCommand())
	assert.Equal(t, []string{"--root", "/home/user"}, svc.Args)
	assert.Equal(t, "/opt/papertalk", svc.WorkDir)
	assert.Equal(t, "PAPERTALK", svc.Env["APP_NAME"])
	assert.Equal(t, "http://localhost:8000/healthz", svc.Health.URL)
}

func TestTemplateExpander_Errors(t *testing.T) {
	e := NewTemplateExpander()

	_, err := e.Expand("{{.ConfigDir", &TemplateContext{})
	assert.Error(t, err)

	_, err = e.Expand("{{.Nope}}", &TemplateContext{})
	assert.Error(t, err)

	out, err := e.Expand("{{.Project.Description | default \"none\"}}", &TemplateContext{})
	assert.NoError(t, err)
	assert.Equal(t, "none", out)
}
