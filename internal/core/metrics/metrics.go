package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationAttempts tracks resilient operation attempts by outcome
	OperationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiller_operation_attempts_total",
			Help: "Total number of resilient operation attempts",
		},
		[]string{"operation", "outcome"},
	)

	// BreakerState exposes the current circuit state per operation class
	// (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tiller_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"operation"},
	)

	// OperationDuration tracks end-to-end resilient operation latency
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tiller_operation_duration_seconds",
			Help:    "Resilient operation duration in seconds, all attempts included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// HostsValidated tracks completed per-host validation pipelines
	HostsValidated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiller_hosts_validated_total",
			Help: "Total number of hosts that completed the validation pipeline",
		},
		[]string{"status"},
	)

	// CommandRetries tracks subprocess retries per command class
	CommandRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiller_command_retries_total",
			Help: "Total number of subprocess command retries",
		},
		[]string{"command"},
	)
)
