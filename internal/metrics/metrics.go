package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HeartbeatsReceived tracks valid heartbeats processed by the monitor
	HeartbeatsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_heartbeats_received_total",
			Help: "Total number of heartbeats received",
		},
	)

	// HeartbeatsMissed tracks watchdog timeouts plus unparseable messages
	HeartbeatsMissed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_heartbeats_missed_total",
			Help: "Total number of missed or unparseable heartbeats",
		},
	)

	// WatchdogTimeouts tracks watchdog ticks that exceeded the silence threshold
	WatchdogTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_watchdog_timeouts_total",
			Help: "Total number of heartbeat timeouts detected by the watchdog",
		},
	)

	// ParseErrors tracks skipped fields and fully rejected messages
	ParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_parse_errors_total",
			Help: "Total number of heartbeat parse errors",
		},
	)

	// SendFailures tracks emitter write failures
	SendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_send_failures_total",
			Help: "Total number of failed heartbeat sends",
		},
	)

	// Reconnects tracks emitter reconnect attempts
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lanewatch_reconnects_total",
			Help: "Total number of emitter reconnect attempts",
		},
		[]string{"result"},
	)

	// FallbackActivations tracks escalation handler activation edges
	FallbackActivations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lanewatch_fallback_activations_total",
			Help: "Total number of fallback activation edges",
		},
	)

	// EmergencyMode indicates whether emergency mode has been entered (sticky)
	EmergencyMode = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lanewatch_emergency_mode",
			Help: "1 if emergency mode has been entered, 0 otherwise",
		},
	)

	// ComponentCPU tracks the latest reported CPU usage per component
	ComponentCPU = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanewatch_component_cpu_percent",
			Help: "Latest reported CPU usage per component",
		},
		[]string{"component"},
	)

	// ComponentMem tracks the latest reported memory usage per component
	ComponentMem = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanewatch_component_mem_percent",
			Help: "Latest reported memory usage per component",
		},
		[]string{"component"},
	)

	// ComponentErrors tracks the latest reported error count per component
	ComponentErrors = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lanewatch_component_errors",
			Help: "Latest reported error count per component",
		},
		[]string{"component"},
	)
)
