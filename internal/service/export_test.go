// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service

import (
	ps "github.com/mitchellh/go-ps"

	"github.com/wingedpig/papertalk/internal/health"
)

// NewDetectorWithProcesses returns a detector whose process table holds
// the given executables.
func NewDetectorWithProcesses(prober health.Prober, exes ...string) *AmbientDetector {
	procs := make([]ps.Process, 0, len(exes))
	for i, exe := range exes {
		procs = append(procs, fakeProc{pid: 4242 + i, exe: exe})
	}
	return &AmbientDetector{prober: prober, processes: procList(procs...)}
}
