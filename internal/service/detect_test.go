// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"os"
	"testing"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/health"
)

type fakeProc struct {
	pid int
	exe string
}

func (p fakeProc) Pid() int           { return p.pid }
func (p fakeProc) PPid() int          { return 1 }
func (p fakeProc) Executable() string { return p.exe }

func procList(procs ...ps.Process) func() ([]ps.Process, error) {
	return func() ([]ps.Process, error) { return procs, nil }
}

func TestAmbientDetector(t *testing.T) {
	up := health.ProberFunc(func(context.Context, health.Endpoint) bool { return true })
	down := health.ProberFunc(func(context.Context, health.Endpoint) bool { return false })

	spec := config.ServiceConfig{
		Name:   "ollama",
		Health: config.HealthConfig{URL: "http://localhost:11434/api/tags"},
		Detect: config.DetectConfig{Process: "ollama"},
	}

	tests := []struct {
		name      string
		prober    health.Prober
		processes func() ([]ps.Process, error)
		spec      config.ServiceConfig
		want      bool
	}{
		{"probe succeeds", up, procList(), spec, true},
		{"process present", down, procList(fakeProc{4242, "ollama"}), spec, true},
		{"no process", down, procList(fakeProc{4242, "python3"}), spec, false},
		{"own process ignored", down, procList(fakeProc{os.Getpid(), "ollama"}), spec, false},
		{"process listing fails", down, func() ([]ps.Process, error) { return nil, errors.New("no /proc") }, spec, false},
		{"no process name configured", down, procList(fakeProc{4242, "ollama"}), config.ServiceConfig{Name: "ollama"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &AmbientDetector{prober: tt.prober, processes: tt.processes}
			running, reason := d.Running(context.Background(), tt.spec)
			assert.Equal(t, tt.want, running)
			if tt.want {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
