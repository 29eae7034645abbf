package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingested events by outcome
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textdesk",
			Subsystem: "sync",
			Name:      "ingested_events_total",
			Help:      "Total SMS events filed, by outcome",
		},
		[]string{"source", "outcome"},
	)

	RelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textdesk",
			Subsystem: "relay",
			Name:      "attachments_total",
			Help:      "Total attachment relay attempts, by resulting status",
		},
		[]string{"status"},
	)

	RelayBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "textdesk",
			Subsystem: "relay",
			Name:      "bytes_total",
			Help:      "Total attachment bytes written to durable storage",
		},
	)

	MigrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "textdesk",
			Subsystem: "sync",
			Name:      "migrations_total",
			Help:      "Messages moved between conversations",
		},
	)

	RepairActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "textdesk",
			Subsystem: "jobs",
			Name:      "repair_actions_total",
			Help:      "Corrections applied by repair jobs",
		},
		[]string{"job", "action"},
	)

	ProviderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "textdesk",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "SMS provider API call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation", "status"},
	)
)
