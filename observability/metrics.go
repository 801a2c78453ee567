package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	rfqMetricsOnce sync.Once
	rfqRegistry    *RFQMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rfq",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC request. code is the JSON-RPC
// error code, zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RFQMetrics captures settlement engine activity. It satisfies the engine's
// metrics sink.
type RFQMetrics struct {
	actions *prometheus.CounterVec
	slashed prometheus.Counter
	slashes prometheus.Counter
	fees    *prometheus.CounterVec
}

// RFQ returns the lazily-initialised settlement metrics registry.
func RFQ() *RFQMetrics {
	rfqMetricsOnce.Do(func() {
		rfqRegistry = &RFQMetrics{
			actions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "engine",
				Name:      "actions_total",
				Help:      "Settlement engine actions segmented by action and outcome.",
			}, []string{"action", "outcome"}),
			slashed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "engine",
				Name:      "slashed_bonds_total",
				Help:      "Total bond amount seized by the treasury.",
			}),
			slashes: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "engine",
				Name:      "slashing_seizures_total",
				Help:      "Number of slashing resolutions that seized bonds.",
			}),
			fees: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rfq",
				Subsystem: "engine",
				Name:      "fees_total",
				Help:      "Settlement fees collected segmented by recipient.",
			}, []string{"recipient"}),
		}
		prometheus.MustRegister(
			rfqRegistry.actions,
			rfqRegistry.slashed,
			rfqRegistry.slashes,
			rfqRegistry.fees,
		)
	})
	return rfqRegistry
}

// ObserveAction counts an engine action by outcome.
func (m *RFQMetrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// ObserveSlash records bonds seized by a slashing resolution.
func (m *RFQMetrics) ObserveSlash(amount uint64) {
	if m == nil {
		return
	}
	m.slashes.Inc()
	m.slashed.Add(float64(amount))
}

// ObserveFees records the split of a settlement fee.
func (m *RFQMetrics) ObserveFees(treasury, facilitator uint64) {
	if m == nil {
		return
	}
	m.fees.WithLabelValues("treasury").Add(float64(treasury))
	m.fees.WithLabelValues("facilitator").Add(float64(facilitator))
}
