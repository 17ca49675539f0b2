// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/papertalk/internal/api/middleware"
	"github.com/wingedpig/papertalk/internal/events"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	wsBuffer   = 100
)

// EventHandler handles event-related API requests.
type EventHandler struct {
	bus      events.EventBus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewEventHandler creates a new event handler. The websocket stream
// accepts the same origins as the rest of the API.
func NewEventHandler(bus events.EventBus, logger *slog.Logger, allowedOrigins []string) *EventHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventHandler{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(r, allowedOrigins)
			},
		},
	}
}

// History returns recorded events, filtered by type, service, time and limit.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := events.EventFilter{
		Types:   query["type"],
		Service: query.Get("service"),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"since", &filter.Since}, {"until", &filter.Until}} {
		if v := query.Get(p.key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				WriteError(w, http.StatusBadRequest, ErrBadRequest, p.key+" must be an RFC3339 timestamp")
				return
			}
			*p.dst = t
		}
	}

	eventList, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if eventList == nil {
		eventList = []events.Event{}
	}

	WriteJSON(w, http.StatusOK, eventList)
}

// WebSocket streams live events matching the "pattern" query parameter.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	if _, err := events.NewPatternMatcher().Compile(pattern); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	eventCh := make(chan events.Event, wsBuffer)
	done := make(chan struct{})

	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		select {
		case eventCh <- event:
		case <-done:
		default:
			h.logger.Debug("websocket client too slow, dropping event", "type", event.Type)
		}
		return nil
	}, wsBuffer)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer func() { _ = h.bus.Unsubscribe(subID) }()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	// Reads only detect the client going away.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}
