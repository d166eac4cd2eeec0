package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrapeMetrics(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/courses", http.StatusOK, 10*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 0.666, snap.CacheHitRatio, 0.01)
	assert.Positive(t, snap.Goroutines)
}

func TestMetricsServiceDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordEnrollmentOperation(EnrollmentOpCreate, nil)
	m.RecordEnrollmentOperation(EnrollmentOpCreate, errors.New("boom"))
	m.RecordActivityDropped()
	m.RecordActivityWrite(activitySinkDB, nil)

	body := scrapeMetrics(t, m)
	assert.Contains(t, body, `enrollment_operations_total{operation="create",result="success"} 1`)
	assert.Contains(t, body, `enrollment_operations_total{operation="create",result="failure"} 1`)
	assert.Contains(t, body, "activity_events_dropped_total 1")
	assert.Contains(t, body, `activity_events_written_total{result="success",sink="postgres"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	assert.NotPanics(t, func() {
		m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RecordCacheOperation(true, time.Millisecond)
		m.RecordEnrollmentOperation(EnrollmentOpDelete, nil)
		m.RecordActivityDropped()
	})
	assert.Equal(t, MetricsSnapshot{}, m.Snapshot())
}
