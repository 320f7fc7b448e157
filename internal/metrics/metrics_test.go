package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuery("retrieval", "answer", 120*time.Millisecond)
	m.ObserveQuery("retrieval", "refusal", 80*time.Millisecond)
	m.DiscoveryFailure("cse", "fatal")
	m.DiscoveredURLs("primary", 3)
	m.Document("indexed")
	m.UpsertBatchFailed()
	m.RerankFallback()
	m.QueryIntents("intent_based", []string{"materials", "approval"})
	m.QueryIntents("generic", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queries.WithLabelValues("retrieval", "answer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.discoveryFailures.WithLabelValues("cse", "fatal")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.discoveredURLs.WithLabelValues("primary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upsertFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryIntents.WithLabelValues("intent_based", "approval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryIntents.WithLabelValues("generic", "none")))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveQuery("retrieval", "answer", time.Second)
		m.DiscoveryFailure("cse", "fatal")
		m.DiscoveredURLs("primary", 1)
		m.Document("skipped")
		m.UpsertBatchFailed()
		m.RerankFallback()
		m.QueryIntents("generic", nil)
	})
}
