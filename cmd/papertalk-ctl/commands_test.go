// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu    sync.Mutex
	ready bool
	state string
	quits int

	eventQuery string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	envelope := func(w http.ResponseWriter, status int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}

	mux.HandleFunc("/api/v1/readiness", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		envelope(w, http.StatusOK, map[string]interface{}{
			"ready": f.ready,
			"services": []map[string]interface{}{
				{"name": "ollama", "ready": true},
				{"name": "backend", "ready": f.ready},
			},
		})
	})
	mux.HandleFunc("/api/v1/lifecycle", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		envelope(w, http.StatusOK, map[string]interface{}{"state": f.state, "terminated": 0})
	})
	mux.HandleFunc("/api/v1/quit", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.quits++
		f.state = "stopped"
		envelope(w, http.StatusAccepted, map[string]string{"status": "shutting_down"})
	})
	mux.HandleFunc("/api/v1/services", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, http.StatusOK, []map[string]interface{}{
			{"name": "ollama", "mode": "ambient", "ownership": "external", "ready": true, "reason": "already serving"},
			{"name": "backend", "mode": "always", "ownership": "owned", "state": "running", "pid": 4242},
		})
	})
	mux.HandleFunc("/api/v1/services/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"code": "NOT_FOUND", "message": "service not found: missing"},
		})
	})
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.eventQuery = r.URL.RawQuery
		f.mu.Unlock()
		envelope(w, http.StatusOK, []map[string]interface{}{
			{"id": "1", "type": "service.spawned", "service": "backend", "timestamp": "2026-10-16T10:00:00Z", "payload": map[string]interface{}{"pid": 4242}},
		})
	})
	return mux
}

func runCtl(t *testing.T, f *fakeServer, args ...string) (string, error) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestStatus(t *testing.T) {
	out, err := runCtl(t, &fakeServer{state: "running"}, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: running")
	assert.Contains(t, out, "warming up (backend)")

	out, err = runCtl(t, &fakeServer{state: "running", ready: true}, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Ready: yes")
}

func TestServices(t *testing.T) {
	out, err := runCtl(t, &fakeServer{}, "services")
	require.NoError(t, err)
	assert.Contains(t, out, "OWNERSHIP")
	assert.Contains(t, out, "external")
	assert.Contains(t, out, "already serving")
	assert.Contains(t, out, "4242")

	_, err = runCtl(t, &fakeServer{}, "services", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestServices_JSON(t *testing.T) {
	out, err := runCtl(t, &fakeServer{}, "--json", "services")
	require.NoError(t, err)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got, 2)
}

func TestWait(t *testing.T) {
	out, err := runCtl(t, &fakeServer{ready: true}, "wait", "--timeout", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "ready")

	out, err = runCtl(t, &fakeServer{}, "wait", "--timeout", "100ms", "--interval", "20ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready after 100ms")
	assert.Contains(t, out, "warming up... (backend)")
}

func TestQuit(t *testing.T) {
	f := &fakeServer{state: "running"}
	out, err := runCtl(t, f, "quit", "--wait")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped")
	assert.Equal(t, 1, f.quits)
}

func TestEvents(t *testing.T) {
	f := &fakeServer{}
	out, err := runCtl(t, f, "events", "--service", "backend")
	require.NoError(t, err)
	assert.Contains(t, f.eventQuery, "service=backend")
	assert.Contains(t, out, "service.spawned")
	assert.Contains(t, out, "pid=4242")
}

func TestVersion(t *testing.T) {
	out, err := runCtl(t, &fakeServer{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "papertalk-ctl "+version)
}
