// Package telemetry holds the process-wide prometheus collectors.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestTotal counts submitted records by outcome (accepted, invalid)
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegisnet_ingest_total",
			Help: "Metric records submitted to the ingestion pipeline",
		},
		[]string{"result"},
	)

	// AlertsTotal counts logged alerts by type
	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegisnet_alerts_total",
			Help: "Alerts raised by the detector set",
		},
		[]string{"type"},
	)

	// ActionsTotal counts remediation actions by name and status
	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegisnet_actions_total",
			Help: "Remediation actions attempted",
		},
		[]string{"action", "status"},
	)

	// DetectorDuration observes per-detector evaluation latency
	DetectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegisnet_detector_duration_seconds",
			Help:    "Time spent evaluating a single detector",
			Buckets: []float64{.00005, .0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"detector"},
	)

	// TrackedAgents is the number of agents with a historical series
	TrackedAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegisnet_tracked_agents",
			Help: "Agents that have submitted at least one record",
		},
	)

	// WebSocketConnections is the number of connected dashboard clients
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aegisnet_websocket_connections",
			Help: "Active WebSocket clients",
		},
	)

	// JournalDropped counts alerts and actions that never reached the archive
	JournalDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegisnet_journal_dropped_total",
			Help: "Journal entries dropped because the archive writer fell behind or was closed",
		},
		[]string{"kind"},
	)

	// WindowsTotal counts closed monitoring windows by verdict
	WindowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegisnet_windows_total",
			Help: "Monitoring windows evaluated",
		},
		[]string{"attack"},
	)
)
