// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	ps "github.com/mitchellh/go-ps"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/health"
)

// AmbientDetector treats a service as already running when its health
// probe succeeds, or when a process with the configured executable name
// is present.
type AmbientDetector struct {
	prober    health.Prober
	processes func() ([]ps.Process, error)
}

// NewAmbientDetector creates a detector backed by prober and the OS process table.
func NewAmbientDetector(prober health.Prober) *AmbientDetector {
	return &AmbientDetector{prober: prober, processes: ps.Processes}
}

// Running runs the already-running check once.
func (d *AmbientDetector) Running(ctx context.Context, spec config.ServiceConfig) (bool, string) {
	if d.prober.Probe(ctx, health.EndpointFor(spec)) {
		return true, "health probe succeeded"
	}

	name := spec.Detect.Process
	if name == "" || d.processes == nil {
		return false, ""
	}

	procs, err := d.processes()
	if err != nil {
		return false, ""
	}
	self := os.Getpid()
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		if p.Executable() == name || filepath.Base(p.Executable()) == name {
			return true, fmt.Sprintf("process %s (pid %d) present", name, p.Pid())
		}
	}
	return false, ""
}
