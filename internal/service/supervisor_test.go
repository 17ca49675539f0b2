// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/papertalk/internal/config"
	"github.com/wingedpig/papertalk/internal/events"
	"github.com/wingedpig/papertalk/internal/health"
	"github.com/wingedpig/papertalk/internal/service"
	"github.com/wingedpig/papertalk/internal/service/servicetest"
)

func spec(name, mode string) config.ServiceConfig {
	return config.ServiceConfig{
		Name:    name,
		Command: []interface{}{name, "serve"},
		Launch:  mode,
		Health:  config.HealthConfig{URL: "http://localhost/" + name},
	}
}

func newTestBus(t *testing.T) *events.MemoryEventBus {
	t.Helper()
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{})
	t.Cleanup(func() { bus.Close() })
	return bus
}

func historyTypes(t *testing.T, bus events.EventBus, service string) []string {
	t.Helper()
	evs, err := bus.History(events.EventFilter{Service: service})
	require.NoError(t, err)
	var out []string
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

func TestSupervisor_AmbientAlreadyRunning(t *testing.T) {
	spawner := servicetest.NewSpawner()
	detector := servicetest.NewDetector("ollama")
	bus := newTestBus(t)

	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(detector), service.WithEventBus(bus))

	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))

	assert.Equal(t, service.OwnershipExternal, res.Ownership)
	assert.Equal(t, 0, spawner.Spawned())
	assert.Equal(t, 1, detector.Calls("ollama"))
	assert.Empty(t, sup.Handles())
	assert.Equal(t, []string{events.EventServiceExternal}, historyTypes(t, bus, "ollama"))

	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
}

func TestSupervisor_AmbientNotRunning(t *testing.T) {
	spawner := servicetest.NewSpawner()
	detector := servicetest.NewDetector()

	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(detector))

	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))

	assert.Equal(t, service.OwnershipOwned, res.Ownership)
	assert.NotZero(t, res.PID)
	assert.Equal(t, 1, spawner.Spawned())
	require.Len(t, sup.Handles(), 1)

	// A second launch reuses the recorded outcome.
	again := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))
	assert.Equal(t, res, again)
	assert.Equal(t, 1, spawner.Spawned())
	assert.Equal(t, 1, detector.Calls("ollama"))
}

func TestSupervisor_AlwaysSpawnsWithoutCheck(t *testing.T) {
	spawner := servicetest.NewSpawner()
	detector := servicetest.NewDetector("backend")

	sup := service.NewSupervisor([]config.ServiceConfig{spec("backend", config.LaunchAlways)},
		service.WithSpawner(spawner), service.WithDetector(detector))

	res := sup.Launch(context.Background(), spec("backend", config.LaunchAlways))

	assert.Equal(t, service.OwnershipOwned, res.Ownership)
	assert.Equal(t, 1, spawner.Spawned())
	assert.Equal(t, 0, detector.Calls("backend"))
}

func TestSupervisor_LaunchNone(t *testing.T) {
	spawner := servicetest.NewSpawner()
	sup := service.NewSupervisor([]config.ServiceConfig{spec("remote", config.LaunchNone)},
		service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()))

	res := sup.LaunchAll(context.Background())

	require.Len(t, res, 1)
	assert.Equal(t, service.OwnershipUnmanaged, res[0].Ownership)
	assert.Equal(t, 0, spawner.Spawned())
}

func TestSupervisor_UnknownService(t *testing.T) {
	sup := service.NewSupervisor(nil, service.WithSpawner(servicetest.NewSpawner()))

	res := sup.Launch(context.Background(), spec("ghost", config.LaunchAlways))
	assert.ErrorIs(t, res.Err, service.ErrUnknownService)

	_, err := sup.Service("ghost")
	assert.ErrorIs(t, err, service.ErrUnknownService)
}

func TestSupervisor_SpawnFailureIsIsolated(t *testing.T) {
	spawner := servicetest.NewSpawner()
	spawner.Fail["llama-stack"] = errors.New("exec: \"llama\": executable file not found in $PATH")
	bus := newTestBus(t)

	specs := []config.ServiceConfig{
		spec("ollama", config.LaunchAmbient),
		spec("llama-stack", config.LaunchAlways),
		spec("backend", config.LaunchAlways),
	}
	sup := service.NewSupervisor(specs,
		service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()), service.WithEventBus(bus))

	results := sup.LaunchAll(context.Background())

	require.Len(t, results, 3)
	assert.Equal(t, service.OwnershipOwned, results[0].Ownership)
	assert.Equal(t, service.OwnershipFailed, results[1].Ownership)
	assert.Error(t, results[1].Err)
	assert.Equal(t, service.OwnershipOwned, results[2].Ownership)
	assert.Equal(t, 2, spawner.Spawned())
	assert.Equal(t, []string{events.EventServiceSpawnFailed}, historyTypes(t, bus, "llama-stack"))

	info, err := sup.Service("llama-stack")
	require.NoError(t, err)
	assert.Contains(t, info.Error, "executable file not found")

	assert.Equal(t, 2, sup.TerminateAll(context.Background()))
}

func TestSupervisor_AmbientSpawnFailsButServiceAppeared(t *testing.T) {
	spawner := servicetest.NewSpawner()
	spawner.Fail["ollama"] = errors.New("address already in use")
	detector := servicetest.NewDetector()

	// Another actor starts the service between our check and our spawn.
	racing := &racingDetector{Detector: detector, after: func() { detector.Set("ollama", true) }}
	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(racing))

	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))

	assert.Equal(t, service.OwnershipExternal, res.Ownership)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, detector.Calls("ollama"))
	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
}

func TestSupervisor_DefaultAmbientIgnoresStrayProcess(t *testing.T) {
	spawner := servicetest.NewSpawner()
	down := health.ProberFunc(func(context.Context, health.Endpoint) bool { return false })
	detector := service.NewDetectorWithProcesses(down, "ollama")

	ollama := config.DefaultServices()[0]
	require.Equal(t, "ollama", ollama.Name)

	sup := service.NewSupervisor([]config.ServiceConfig{ollama},
		service.WithSpawner(spawner), service.WithDetector(detector))
	res := sup.Launch(context.Background(), ollama)

	assert.Equal(t, service.OwnershipOwned, res.Ownership)
	assert.Empty(t, res.Reason)
	assert.Equal(t, 1, spawner.Spawned())
}

func TestSupervisor_AmbientProcessCheckIsOptIn(t *testing.T) {
	spawner := servicetest.NewSpawner()
	down := health.ProberFunc(func(context.Context, health.Endpoint) bool { return false })
	detector := service.NewDetectorWithProcesses(down, "ollama")

	ollama := config.DefaultServices()[0]
	ollama.Detect.Process = "ollama"

	sup := service.NewSupervisor([]config.ServiceConfig{ollama},
		service.WithSpawner(spawner), service.WithDetector(detector))
	res := sup.Launch(context.Background(), ollama)

	assert.Equal(t, service.OwnershipExternal, res.Ownership)
	assert.Contains(t, res.Reason, "process ollama")
	assert.Equal(t, 0, spawner.Spawned())
}

func TestSupervisor_AmbientExitBeforeHandleRecorded(t *testing.T) {
	spawner := servicetest.NewSpawner()
	detector := servicetest.NewDetector()
	spawner.OnSpawn = func(spec config.ServiceConfig) {
		// Lost the race: another instance took the port and ours exits
		// before Spawn returns.
		detector.Set(spec.Name, true)
		spawner.SpawnedFor(spec.Name)[0].Exit(1)
	}

	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(detector))
	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))

	assert.Equal(t, service.OwnershipExternal, res.Ownership)
	assert.Equal(t, "fake detector", res.Reason)

	info, err := sup.Service("ollama")
	require.NoError(t, err)
	assert.Equal(t, service.OwnershipExternal, info.Ownership)
	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
}

func TestSupervisor_AmbientSpawnFailsAndStillDown(t *testing.T) {
	spawner := servicetest.NewSpawner()
	spawner.Fail["ollama"] = errors.New("exec: \"ollama\": executable file not found in $PATH")
	detector := servicetest.NewDetector()

	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(detector))

	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))

	assert.Equal(t, service.OwnershipFailed, res.Ownership)
	assert.Error(t, res.Err)
	assert.Equal(t, 2, detector.Calls("ollama"))
}

func TestSupervisor_AmbientExitWhileAnotherInstanceServes(t *testing.T) {
	spawner := servicetest.NewSpawner()
	detector := servicetest.NewDetector()
	bus := newTestBus(t)

	sup := service.NewSupervisor([]config.ServiceConfig{spec("ollama", config.LaunchAmbient)},
		service.WithSpawner(spawner), service.WithDetector(detector), service.WithEventBus(bus))

	res := sup.Launch(context.Background(), spec("ollama", config.LaunchAmbient))
	require.Equal(t, service.OwnershipOwned, res.Ownership)

	detector.Set("ollama", true)
	spawner.SpawnedFor("ollama")[0].Exit(1)

	info, err := sup.Service("ollama")
	require.NoError(t, err)
	assert.Equal(t, service.OwnershipExternal, info.Ownership)
	assert.Equal(t, "exited", info.State)
	assert.Contains(t, historyTypes(t, bus, "ollama"), events.EventServiceExited)

	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
	assert.Equal(t, 0, spawner.Terminates())
}

func TestSupervisor_ExitIsReportedNotRetried(t *testing.T) {
	spawner := servicetest.NewSpawner()
	bus := newTestBus(t)

	sup := service.NewSupervisor([]config.ServiceConfig{spec("backend", config.LaunchAlways)},
		service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()), service.WithEventBus(bus))
	sup.LaunchAll(context.Background())

	spawner.SpawnedFor("backend")[0].Exit(2)

	info, err := sup.Service("backend")
	require.NoError(t, err)
	assert.Equal(t, service.OwnershipOwned, info.Ownership)
	assert.Equal(t, "exited", info.State)
	assert.Equal(t, 2, info.ExitCode)
	assert.Equal(t, 1, spawner.Spawned())
	assert.Equal(t, []string{events.EventServiceSpawned, events.EventServiceExited}, historyTypes(t, bus, "backend"))
}

func TestSupervisor_LaunchAllOrdersAmbientFirst(t *testing.T) {
	spawner := servicetest.NewSpawner()
	var mu sync.Mutex
	var order []string
	spawner.OnSpawn = func(s config.ServiceConfig) {
		mu.Lock()
		order = append(order, s.Name)
		mu.Unlock()
	}

	specs := []config.ServiceConfig{
		spec("backend", config.LaunchAlways),
		spec("ollama", config.LaunchAmbient),
		spec("llama-stack", config.LaunchAlways),
	}
	sup := service.NewSupervisor(specs, service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()))

	results := sup.LaunchAll(context.Background())

	require.Len(t, results, 3)
	assert.Equal(t, "backend", results[0].Name)
	require.Len(t, order, 3)
	assert.Equal(t, "ollama", order[0])
	assert.ElementsMatch(t, []string{"backend", "llama-stack"}, order[1:])
}

func TestSupervisor_TerminateAllOncePerHandle(t *testing.T) {
	spawner := servicetest.NewSpawner()
	specs := []config.ServiceConfig{
		spec("ollama", config.LaunchAmbient),
		spec("llama-stack", config.LaunchAlways),
		spec("backend", config.LaunchAlways),
	}
	sup := service.NewSupervisor(specs, service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()))
	sup.LaunchAll(context.Background())

	assert.Equal(t, 3, sup.TerminateAll(context.Background()))
	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
	assert.Equal(t, 3, spawner.Terminates())
	for _, name := range []string{"ollama", "llama-stack", "backend"} {
		assert.Equal(t, 1, spawner.SpawnedFor(name)[0].Terminates(), name)
	}
}

func TestSupervisor_TerminateFailureIsIgnored(t *testing.T) {
	spawner := servicetest.NewSpawner()
	specs := []config.ServiceConfig{spec("a", config.LaunchAlways), spec("b", config.LaunchAlways)}
	sup := service.NewSupervisor(specs, service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()))
	sup.LaunchAll(context.Background())

	spawner.SpawnedFor("a")[0].TerminateErr = errors.New("operation not permitted")

	assert.Equal(t, 2, sup.TerminateAll(context.Background()))
	assert.Equal(t, 1, spawner.SpawnedFor("b")[0].Terminates())
}

func TestSupervisor_SpawnAfterTerminateAllIsStopped(t *testing.T) {
	spawner := servicetest.NewSpawner()
	sup := service.NewSupervisor([]config.ServiceConfig{spec("backend", config.LaunchAlways)},
		service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector()))

	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
	sup.LaunchAll(context.Background())

	assert.Equal(t, 1, spawner.SpawnedFor("backend")[0].Terminates())
	assert.Equal(t, 0, sup.TerminateAll(context.Background()))
}

func TestSupervisor_Services(t *testing.T) {
	spawner := servicetest.NewSpawner()
	specs := []config.ServiceConfig{spec("ollama", config.LaunchAmbient), spec("backend", config.LaunchAlways)}
	sup := service.NewSupervisor(specs, service.WithSpawner(spawner), service.WithDetector(servicetest.NewDetector("ollama")))

	before := sup.Services()
	require.Len(t, before, 2)
	assert.Equal(t, service.OwnershipPending, before[0].Ownership)

	sup.LaunchAll(context.Background())
	infos := sup.Services()

	assert.Equal(t, "ollama", infos[0].Name)
	assert.Equal(t, service.OwnershipExternal, infos[0].Ownership)
	assert.Zero(t, infos[0].PID)
	assert.Equal(t, "backend", infos[1].Name)
	assert.Equal(t, service.OwnershipOwned, infos[1].Ownership)
	assert.Equal(t, "running", infos[1].State)
	assert.NotNil(t, infos[1].StartedAt)
	assert.Equal(t, []string{"backend", "serve"}, infos[1].Command)
}

// racingDetector calls after each time a check has answered.
type racingDetector struct {
	*servicetest.Detector
	after func()
}

func (d *racingDetector) Running(ctx context.Context, spec config.ServiceConfig) (bool, string) {
	running, reason := d.Detector.Running(ctx, spec)
	d.after()
	return running, reason
}
