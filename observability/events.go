package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rfqsettle/core/events"
)

type eventMetrics struct {
	transfers *prometheus.CounterVec
	volume    *prometheus.CounterVec
	emitted   *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking ledger and settlement events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of ledger transfers segmented by asset.",
			}, []string{"asset"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "events",
				Name:      "transfer_volume_total",
				Help:      "Sum of ledger transfer amounts segmented by asset.",
			}, []string{"asset"}),
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.transfers, eventRegistry.volume, eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordTransfer increments the transfer counters for the supplied asset.
func (m *eventMetrics) RecordTransfer(asset string, amount uint64) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToLower(asset))
	if normalized == "" {
		normalized = "unknown"
	}
	m.transfers.WithLabelValues(normalized).Inc()
	m.volume.WithLabelValues(normalized).Add(float64(amount))
}

// Emit implements events.Emitter so the registry can sit in an emitter
// fanout.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
	if transfer, ok := evt.(events.Transfer); ok {
		m.RecordTransfer(transfer.Asset.Hex(), transfer.Amount)
	}
}
