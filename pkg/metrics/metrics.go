// Package metrics exposes Prometheus metrics for the sync path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the consistency layer.
type Metrics struct {
	QueueDepth         prometheus.Gauge
	DrainSuccess       prometheus.Counter
	DrainFailure       prometheus.Counter
	DeadLettered       prometheus.Counter
	DuplicatesRejected prometheus.Counter
	SyncStatus         prometheus.Gauge // 0=offline 1=saving 2=synced
	TrustScoreComputed prometheus.Histogram
}

// New creates and registers all collectors. A nil registerer targets the
// default registry; tests pass their own to avoid cross-test collisions.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mindcase_outbox_queue_depth",
			Help: "Number of mutations currently persisted in the outbox",
		}),
		DrainSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "mindcase_outbox_drain_success_total",
			Help: "Total mutations replayed successfully",
		}),
		DrainFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "mindcase_outbox_drain_failure_total",
			Help: "Total per-mutation replay failures (retried or dead-lettered)",
		}),
		DeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "mindcase_outbox_dead_lettered_total",
			Help: "Total mutations dropped after exceeding the retry budget",
		}),
		DuplicatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "mindcase_documents_duplicates_rejected_total",
			Help: "Total uploads rejected by the content dedup guard",
		}),
		SyncStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mindcase_sync_status",
			Help: "Current sync status (0=offline, 1=saving, 2=synced)",
		}),
		TrustScoreComputed: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "mindcase_trust_score",
			Help:    "Distribution of computed trust scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}
