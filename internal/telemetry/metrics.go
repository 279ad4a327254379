package telemetry

import "github.com/prometheus/client_golang/prometheus"

// HTTPRequestDuration records HTTP request latency by method/route/status.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "switchyard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
	[]string{"method", "route", "status"},
)

// PipelineStagesTotal counts pipeline stage completions by stage name and outcome.
var PipelineStagesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "pipeline",
		Name:      "stages_total",
		Help:      "Total number of pipeline stage completions by stage and status.",
	},
	[]string{"stage", "status"},
)

// PipelineExecutionsTotal counts terminal pipeline executions by final status.
var PipelineExecutionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "pipeline",
		Name:      "executions_total",
		Help:      "Total number of pipeline executions by terminal status.",
	},
	[]string{"status", "strategy"},
)

// RouterDispatchTotal counts message routing dispatches by strategy and outcome.
var RouterDispatchTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "router",
		Name:      "dispatch_total",
		Help:      "Total number of router dispatches by strategy and outcome.",
	},
	[]string{"strategy", "outcome"},
)

// DeliveryAttemptsTotal counts delivery attempts by outcome (success, retry, dlq).
var DeliveryAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "delivery",
		Name:      "attempts_total",
		Help:      "Total number of delivery attempts by outcome.",
	},
	[]string{"outcome"},
)

// DLQMovesTotal counts messages moved to dead-letter topics.
var DLQMovesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "dlq",
		Name:      "moves_total",
		Help:      "Total number of messages moved to a dead-letter topic.",
	},
	[]string{"topic"},
)

// AckTimeoutsRequeuedTotal counts messages requeued after their ack deadline expired.
var AckTimeoutsRequeuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "broker",
		Name:      "ack_timeouts_requeued_total",
		Help:      "Total number of messages requeued after ack-deadline expiry.",
	},
)

// BrokerHealthStatus is a gauge: 0=Unknown, 1=Healthy, 2=Degraded, 3=Unhealthy.
var BrokerHealthStatus = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "switchyard",
		Subsystem: "broker",
		Name:      "health_status",
		Help:      "Current broker health status (0=Unknown,1=Healthy,2=Degraded,3=Unhealthy).",
	},
)

// StabilizationChecksTotal counts stabilization poll outcomes.
var StabilizationChecksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "stabilization",
		Name:      "checks_total",
		Help:      "Total number of stabilization checks by outcome (stable, unstable).",
	},
	[]string{"outcome"},
)

// NotificationsTotal counts outbound operator notifications by channel and kind.
var NotificationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "switchyard",
		Subsystem: "notify",
		Name:      "sent_total",
		Help:      "Total number of operator notifications sent by provider and kind.",
	},
	[]string{"provider", "kind"},
)

// All returns every Switchyard-specific metric collector for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		PipelineStagesTotal,
		PipelineExecutionsTotal,
		RouterDispatchTotal,
		DeliveryAttemptsTotal,
		DLQMovesTotal,
		AckTimeoutsRequeuedTotal,
		BrokerHealthStatus,
		StabilizationChecksTotal,
		NotificationsTotal,
	}
}
