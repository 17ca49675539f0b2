// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/papertalk/internal/health"
	"github.com/wingedpig/papertalk/internal/service"
)

// ServiceSource lists what the supervisor knows about each service.
type ServiceSource interface {
	Services() []service.ServiceInfo
	Service(name string) (service.ServiceInfo, error)
}

// ServiceView is a service's supervision record plus its readiness flag.
type ServiceView struct {
	service.ServiceInfo
	Ready bool `json:"ready"`
}

// ServiceHandler handles service-related API requests.
type ServiceHandler struct {
	src   ServiceSource
	ready ReadinessSource
}

// NewServiceHandler creates a new service handler.
func NewServiceHandler(src ServiceSource, ready ReadinessSource) *ServiceHandler {
	return &ServiceHandler{src: src, ready: ready}
}

// List returns all services.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	flags := h.flags()
	infos := h.src.Services()
	views := make([]ServiceView, 0, len(infos))
	for _, info := range infos {
		views = append(views, ServiceView{ServiceInfo: info, Ready: flags[info.Name]})
	}
	WriteJSON(w, http.StatusOK, views)
}

// Get returns a single service by name.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	info, err := h.src.Service(name)
	if errors.Is(err, service.ErrUnknownService) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "service not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, ServiceView{ServiceInfo: info, Ready: h.flags()[name]})
}

func (h *ServiceHandler) flags() map[string]bool {
	flags := make(map[string]bool)
	if h.ready == nil {
		return flags
	}
	for _, e := range h.ready.Snapshot() {
		flags[e.Name] = e.Ready
	}
	return flags
}

var _ ReadinessSource = (*health.State)(nil)
