package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCountsMutationsByOutcome(t *testing.T) {
	m := NewMetricsService()
	m.RecordDiscussionMutation("reply", "success")
	m.RecordDiscussionMutation("reply", "success")
	m.RecordDiscussionMutation("edit", "permission_denied")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.mutations.WithLabelValues("reply", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("edit", "permission_denied")))
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()
	assert.Equal(t, 0.0, m.cacheHitRatio())

	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.InDelta(t, 0.75, m.cacheHitRatio(), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
}

func TestMetricsServiceExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/topics/:id/entries", http.StatusCreated, 10*time.Millisecond)
	m.ObserveDBQuery("entry_create", 2*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `discussion_api_http_requests_total{method="POST",route="/api/v1/topics/:id/entries",status="201"} 1`)
	assert.Contains(t, body, `discussion_api_db_query_duration_seconds_count{query="entry_create"} 1`)
	assert.Contains(t, body, "discussion_api_thread_cache_hit_ratio")
}

func TestNilMetricsServiceIsNoop(t *testing.T) {
	var m *MetricsService
	m.RecordDiscussionMutation("reply", "success")
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveDBQuery("q", time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
