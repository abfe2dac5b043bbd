// Package metrics wraps the Prometheus instrumentation nwsd exposes on its
// web port, grounded on marmos91-dittofs's pkg/metrics/prometheus pairing
// of promauto-registered vectors with a dedicated prometheus.Registry (the
// teacher itself has no HTTP-facing instrumentation to adapt).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every counter/gauge nwsd updates as it serves clients. A
// nil *Metrics is valid and every method is a no-op on it, so callers that
// run without -web-port don't need to branch at every call site.
type Metrics struct {
	registry *prometheus.Registry

	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	commandsTotal     *prometheus.CounterVec
	commandErrors     *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	blockedWaiters    prometheus.Gauge
	workspaces        prometheus.Gauge
	variables         prometheus.Gauge
	storedBytes       prometheus.Counter
}

// New builds a Metrics instance backed by its own registry, isolated from
// the default global one so nwsd can be embedded without polluting a host
// process's /metrics output.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	return &Metrics{
		registry: reg,
		connectionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "nws_connections_total",
			Help: "Total client connections accepted.",
		}),
		connectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nws_connections_active",
			Help: "Client connections currently open.",
		}),
		commandsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nws_commands_total",
			Help: "Commands dispatched, by verb.",
		}, []string{"verb"}),
		commandErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "nws_command_errors_total",
			Help: "Commands that completed with a non-success status, by verb and status.",
		}, []string{"verb", "status"}),
		commandDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nws_command_duration_seconds",
			Help:    "Time from receiving a command to writing its reply, by verb.",
			Buckets: prometheus.DefBuckets,
		}, []string{"verb"}),
		blockedWaiters: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nws_blocked_waiters",
			Help: "Connections currently parked on a blocking fetch/find/ifetch/ifind.",
		}),
		workspaces: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nws_workspaces",
			Help: "Workspaces currently registered.",
		}),
		variables: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "nws_variables",
			Help: "Variables currently declared across all workspaces.",
		}),
		storedBytes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "nws_stored_bytes_total",
			Help: "Total bytes accepted by store across all variables.",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *Metrics) CommandServed(verb string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(verb).Inc()
	m.commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
	if status != 0 {
		m.commandErrors.WithLabelValues(verb, statusLabel(status)).Inc()
	}
}

func (m *Metrics) WaiterParked() {
	if m == nil {
		return
	}
	m.blockedWaiters.Inc()
}

func (m *Metrics) WaiterResolved() {
	if m == nil {
		return
	}
	m.blockedWaiters.Dec()
}

func (m *Metrics) SetWorkspaceCount(n int) {
	if m == nil {
		return
	}
	m.workspaces.Set(float64(n))
}

func (m *Metrics) SetVariableCount(n int) {
	if m == nil {
		return
	}
	m.variables.Set(float64(n))
}

func (m *Metrics) BytesStored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.storedBytes.Add(float64(n))
}

func statusLabel(status int) string {
	switch status {
	case 100:
		return "0100"
	case 2000:
		return "2000"
	case 2001:
		return "2001"
	default:
		return "0001"
	}
}
