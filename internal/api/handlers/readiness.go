// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/papertalk/internal/health"
)

// ReadinessSource exposes the readiness flags.
type ReadinessSource interface {
	Snapshot() []health.Entry
}

// Readiness is the readiness gate as seen by clients.
type Readiness struct {
	Ready    bool           `json:"ready"`
	Services []health.Entry `json:"services"`
}

// ReadinessHandler answers "is the stack ready?".
type ReadinessHandler struct {
	src ReadinessSource
}

// NewReadinessHandler creates a new readiness handler.
func NewReadinessHandler(src ReadinessSource) *ReadinessHandler {
	return &ReadinessHandler{src: src}
}

// Get returns the aggregate flag and every per-service flag. The response
// is 200 whether or not the stack is ready; clients poll it while warming up.
func (h *ReadinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	entries := h.src.Snapshot()
	WriteJSON(w, http.StatusOK, Readiness{
		Ready:    health.AllReady(entries),
		Services: entries,
	})
}
