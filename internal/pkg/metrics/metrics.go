// Package metrics provides Prometheus metrics for the rollback controller
// (RED for the API surface plus probe/decision/rollback counters).
// Scrapeable at /metrics; dashboards and alerts can rely on these names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rollback"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// ProbeTotal counts health probes by service and result.
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total number of health probes by service and result.",
		},
		[]string{"service", "result"},
	)

	// WindowErrorRate is the current error rate of an active monitoring window.
	WindowErrorRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_error_rate",
			Help:      "Integer error rate (percent) of the active monitoring window.",
		},
		[]string{"service"},
	)

	// WindowConsecutiveFailures is the current failure streak of an active window.
	WindowConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_consecutive_failures",
			Help:      "Consecutive probe failures in the active monitoring window.",
		},
		[]string{"service"},
	)

	// TriggerTotal counts threshold breaches by service.
	TriggerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Total number of rollback triggers by service.",
		},
		[]string{"service"},
	)

	// RollbackTotal counts rollback executions by strategy and result.
	RollbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Total number of rollback executions by strategy and result.",
		},
		[]string{"strategy", "result"},
	)

	// RollbackDurationSeconds is rollback execution latency by strategy.
	RollbackDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rollback_duration_seconds",
			Help:      "Rollback execution duration in seconds by strategy.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~256s; waits cap at 300s
		},
		[]string{"strategy"},
	)

	// OrchestratorCallsTotal counts outbound orchestrator calls by method and result.
	OrchestratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orchestrator_calls_total",
			Help:      "Total number of orchestrator API calls by method and result.",
		},
		[]string{"method", "result"},
	)

	// WebSocketConnectionsActive is current number of event-stream clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)
)
