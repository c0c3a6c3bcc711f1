package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.QueryOutcome("answered")
	m.QueryOutcome("answered")
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.ObserveStage("embedding", 20*time.Millisecond)
	m.IngestRun(true, 50)
	m.SetReady(true)
	m.HTTPRequest("POST", "/api/chat", 503)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.queries.WithLabelValues("answered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 50.0, testutil.ToFloat64(m.indexedArticle))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ready))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/chat", "5xx")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Coalesced()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "newsdesk_coalesced_queries_total 1")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QueryOutcome("x")
		m.ObserveStage("x", time.Second)
		m.CacheLookup(true)
		m.Coalesced()
		m.IngestRun(false, 0)
		m.SetReady(true)
		m.HTTPRequest("GET", "/", 200)
	})
}
