// Package metrics provides Prometheus metrics for the indexer service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsTotal tracks reconciled notifications by type and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "reconcile",
			Name:      "notifications_total",
			Help:      "Total number of notifications reconciled by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// ReconcileDuration tracks end-to-end reconcile duration in seconds
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hr_indexer",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of notification reconciliation in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"type"},
	)

	// DuplicatesTotal tracks notifications skipped by idempotency key conflict
	DuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "reconcile",
			Name:      "duplicates_total",
			Help:      "Total number of notifications skipped as duplicates",
		},
	)

	// QuarantinesTotal tracks notifications quarantined by reason
	QuarantinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "reconcile",
			Name:      "quarantines_total",
			Help:      "Total number of notifications sent to quarantine",
		},
		[]string{"reason"},
	)

	// NotificationsInFlight tracks notifications currently being reconciled
	NotificationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hr_indexer",
			Subsystem: "reconcile",
			Name:      "notifications_in_flight",
			Help:      "Number of notifications currently being reconciled",
		},
	)

	// LedgerRequestsTotal tracks outbound ledger gateway requests
	LedgerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "ledger",
			Name:      "requests_total",
			Help:      "Total number of ledger gateway requests",
		},
		[]string{"operation", "status"},
	)

	// LedgerRequestDuration tracks ledger gateway request duration
	LedgerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hr_indexer",
			Subsystem: "ledger",
			Name:      "request_duration_seconds",
			Help:      "Duration of ledger gateway requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// ReplayBatchesTotal tracks replay batches fetched during catch-up
	ReplayBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "feed",
			Name:      "replay_batches_total",
			Help:      "Total number of replay batches fetched from the gateway",
		},
		[]string{"status"},
	)

	// FeedMessagesTotal tracks live feed messages by topic and status
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of live feed messages consumed",
		},
		[]string{"topic", "status"},
	)

	// PublishesTotal tracks party channel publishes by status
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hr_indexer",
			Subsystem: "publish",
			Name:      "messages_total",
			Help:      "Total number of party channel publishes",
		},
		[]string{"status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hr_indexer",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordReconcile records the outcome of a single notification reconciliation
func RecordReconcile(notificationType, outcome string, durationSeconds float64) {
	NotificationsTotal.WithLabelValues(notificationType, outcome).Inc()
	ReconcileDuration.WithLabelValues(notificationType).Observe(durationSeconds)
}

// RecordDuplicate records a notification skipped as a duplicate
func RecordDuplicate() {
	DuplicatesTotal.Inc()
}

// RecordQuarantine records a notification sent to quarantine
func RecordQuarantine(reason string) {
	QuarantinesTotal.WithLabelValues(reason).Inc()
}

// RecordLedgerRequest records an outbound ledger gateway request
func RecordLedgerRequest(operation, status string, durationSeconds float64) {
	LedgerRequestsTotal.WithLabelValues(operation, status).Inc()
	LedgerRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordPublish records a party channel publish attempt
func RecordPublish(status string) {
	PublishesTotal.WithLabelValues(status).Inc()
}
