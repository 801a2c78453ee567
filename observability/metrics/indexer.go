package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexerMetrics tracks the SQLite event index.
type IndexerMetrics struct {
	indexed  *prometheus.CounterVec
	failures *prometheus.CounterVec
	lastSeq  prometheus.Gauge
}

var (
	indexerOnce     sync.Once
	indexerRegistry *IndexerMetrics
)

func Indexer() *IndexerMetrics {
	indexerOnce.Do(func() {
		indexerRegistry = &IndexerMetrics{
			indexed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rfq_indexer_events_indexed_total",
				Help: "Count of events written to the index by type.",
			}, []string{"type"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rfq_indexer_failures_total",
				Help: "Count of events the index failed to persist by type.",
			}, []string{"type"}),
			lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rfq_indexer_last_sequence",
				Help: "Sequence number of the most recently indexed event.",
			}),
		}
		prometheus.MustRegister(
			indexerRegistry.indexed,
			indexerRegistry.failures,
			indexerRegistry.lastSeq,
		)
	})
	return indexerRegistry
}

func (m *IndexerMetrics) RecordIndexed(eventType string) {
	if m == nil {
		return
	}
	m.indexed.WithLabelValues(eventType).Inc()
}

func (m *IndexerMetrics) RecordFailure(eventType string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(eventType).Inc()
}

func (m *IndexerMetrics) SetLastSequence(seq uint64) {
	if m == nil {
		return
	}
	m.lastSeq.Set(float64(seq))
}
