// Package metrics exposes Prometheus collectors for the query and ingestion paths.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "regrag"

// Metrics groups every collector the service records.
type Metrics struct {
	queries           *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	queryIntents      *prometheus.CounterVec
	discoveryFailures *prometheus.CounterVec
	discoveredURLs    *prometheus.CounterVec
	documents         *prometheus.CounterVec
	upsertFailures    prometheus.Counter
	rerankFallbacks   prometheus.Counter
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Answered questions by mode and outcome (answer, refusal, error).",
		}, []string{"mode", "outcome"}),
		queryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"mode"}),
		queryIntents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_intents_total",
			Help:      "Detected question intents by enhancement type (intent_based, generic) and intent.",
		}, []string{"enhancement", "intent"}),
		discoveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_backend_failures_total",
			Help:      "Search backend failures during discovery by backend and kind (fatal, rate_limited, error).",
		}, []string{"backend", "kind"}),
		discoveredURLs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovered_urls_total",
			Help:      "URLs surviving discovery filters by stage.",
		}, []string{"stage"}),
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents seen by ingestion by result (indexed, skipped, failed).",
		}, []string{"result"}),
		upsertFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upsert_batch_failures_total",
			Help:      "Vector upsert batches that failed and were skipped.",
		}),
		rerankFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rerank_fallbacks_total",
			Help:      "Rerank calls that fell back to the original ordering.",
		}),
	}
}

// ObserveQuery records one answered question.
func (m *Metrics) ObserveQuery(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(mode, outcome).Inc()
	m.queryDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// QueryIntents records the intents detected on one question, or "none".
func (m *Metrics) QueryIntents(enhancement string, intents []string) {
	if m == nil {
		return
	}
	if len(intents) == 0 {
		m.queryIntents.WithLabelValues(enhancement, "none").Inc()
		return
	}
	for _, in := range intents {
		m.queryIntents.WithLabelValues(enhancement, in).Inc()
	}
}

// DiscoveryFailure records a failed backend call.
func (m *Metrics) DiscoveryFailure(backend, kind string) {
	if m == nil {
		return
	}
	m.discoveryFailures.WithLabelValues(backend, kind).Inc()
}

// DiscoveredURLs records URLs kept by a discovery stage.
func (m *Metrics) DiscoveredURLs(stage string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.discoveredURLs.WithLabelValues(stage).Add(float64(n))
}

// Document records the ingestion result for one document.
func (m *Metrics) Document(result string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(result).Inc()
}

// UpsertBatchFailed records one skipped upsert batch.
func (m *Metrics) UpsertBatchFailed() {
	if m == nil {
		return
	}
	m.upsertFailures.Inc()
}

// RerankFallback records a rerank call that returned the input order.
func (m *Metrics) RerankFallback() {
	if m == nil {
		return
	}
	m.rerankFallbacks.Inc()
}
