// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LifecycleStates lists the values reported by the lifecycle_state gauge.
var LifecycleStates = []string{"idle", "launching", "running", "shutting_down", "stopped"}

// Prometheus implements Collector on a private registry.
type Prometheus struct {
	probes         *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	serviceReady   *prometheus.GaugeVec
	ready          prometheus.Gauge
	spawns         *prometheus.CounterVec
	external       *prometheus.CounterVec
	terminates     *prometheus.CounterVec
	terminateTime  *prometheus.HistogramVec
	exits          *prometheus.CounterVec
	lifecycleState *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewPrometheus creates a Prometheus collector. Go runtime and process
// collectors are registered alongside.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "papertalk"
	}

	p := &Prometheus{registry: prometheus.NewRegistry()}

	p.probes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_probes_total",
		Help:      "Health probes by service and result",
	}, []string{"service", "result"})

	p.probeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "health_probe_duration_seconds",
		Help:      "Duration of health probes",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"service"})

	p.serviceReady = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "service_ready",
		Help:      "1 once the service's health probe has succeeded",
	}, []string{"service"})

	p.ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ready",
		Help:      "1 once every service is ready",
	})

	p.spawns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "spawns_total",
		Help:      "Spawn attempts by service and result",
	}, []string{"service", "result"})

	p.external = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "external_services_total",
		Help:      "Services found already running and left unowned",
	}, []string{"service"})

	p.terminates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "terminates_total",
		Help:      "Terminate calls issued at shutdown by service and result",
	}, []string{"service", "result"})

	p.terminateTime = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "terminate_duration_seconds",
		Help:      "Time from terminate call to process exit",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"service"})

	p.exits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "process_exits_total",
		Help:      "Owned processes that exited on their own",
	}, []string{"service", "code"})

	p.lifecycleState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "lifecycle_state",
		Help:      "1 for the controller's current lifecycle state",
	}, []string{"state"})

	p.registry.MustRegister(
		p.probes,
		p.probeDuration,
		p.serviceReady,
		p.ready,
		p.spawns,
		p.external,
		p.terminates,
		p.terminateTime,
		p.exits,
		p.lifecycleState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return p
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) ProbeCompleted(service string, ok bool, duration time.Duration) {
	p.probes.WithLabelValues(service, result(ok)).Inc()
	p.probeDuration.WithLabelValues(service).Observe(duration.Seconds())
}

func (p *Prometheus) ServiceReady(service string, ready bool) {
	p.serviceReady.WithLabelValues(service).Set(boolToFloat(ready))
}

func (p *Prometheus) Readiness(ready bool) {
	p.ready.Set(boolToFloat(ready))
}

func (p *Prometheus) SpawnAttempt(service string, err error) {
	p.spawns.WithLabelValues(service, result(err == nil)).Inc()
}

func (p *Prometheus) ExternalDetected(service string) {
	p.external.WithLabelValues(service).Inc()
}

func (p *Prometheus) TerminateIssued(service string, duration time.Duration, err error) {
	p.terminates.WithLabelValues(service, result(err == nil)).Inc()
	p.terminateTime.WithLabelValues(service).Observe(duration.Seconds())
}

func (p *Prometheus) ProcessExited(service string, exitCode int) {
	p.exits.WithLabelValues(service, strconv.Itoa(exitCode)).Inc()
}

func (p *Prometheus) LifecycleState(state string) {
	for _, s := range LifecycleStates {
		p.lifecycleState.WithLabelValues(s).Set(boolToFloat(s == state))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
