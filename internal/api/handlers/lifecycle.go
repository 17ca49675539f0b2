// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/papertalk/internal/api/version"
	"github.com/wingedpig/papertalk/internal/lifecycle"
)

// LifecycleSource reports the controller state.
type LifecycleSource interface {
	Snapshot() lifecycle.Snapshot
}

// LifecycleHandler reports the lifecycle state and accepts quit requests.
type LifecycleHandler struct {
	src  LifecycleSource
	quit func()
}

// NewLifecycleHandler creates a new lifecycle handler. quit must not block.
func NewLifecycleHandler(src LifecycleSource, quit func()) *LifecycleHandler {
	return &LifecycleHandler{src: src, quit: quit}
}

// Get returns the current state and the transitions so far.
func (h *LifecycleHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.src.Snapshot())
}

// Quit starts shutdown and returns immediately with 202. Repeated
// requests are accepted and do nothing further. The request must carry the
// version header, which a browser cannot send cross-origin without a
// preflight.
func (h *LifecycleHandler) Quit(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(version.Header) == "" {
		WriteError(w, http.StatusForbidden, ErrForbidden, "quit requires the "+version.Header+" header")
		return
	}
	if h.quit == nil {
		WriteError(w, http.StatusConflict, ErrConflict, "quit is not available")
		return
	}
	h.quit()
	WriteJSON(w, http.StatusAccepted, h.src.Snapshot())
}
