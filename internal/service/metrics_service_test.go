package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-progress-api/internal/models"
)

func scrape(t *testing.T, m *MetricsService) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsServiceCountsWorkflowEvents(t *testing.T) {
	m := NewMetricsService()

	m.RecordTransition(models.EnrollmentStatusCompleted, "progress")
	m.RecordTransition(models.EnrollmentStatusCompleted, "progress")
	m.RecordProgressUpdate(operationTrack, nil)
	m.RecordProgressUpdate(operationTrack, errors.New("boom"))
	m.RecordEvent(models.EventEnrollmentCreated, errors.New("broker down"))
	m.ObserveSweep(3, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `course_progress_enrollment_transitions_total{to="COMPLETED",trigger="progress"} 2`)
	assert.Contains(t, body, `course_progress_lecture_progress_updates_total{operation="track",result="error"} 1`)
	assert.Contains(t, body, `course_progress_events_published_total{result="error",type="enrollment.created"} 1`)
	assert.Contains(t, body, `course_progress_expiration_sweep_expired_total 3`)
}

func TestMetricsServiceCacheHitRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "cache_hit_ratio 0.75")
	assert.Contains(t, body, `cache_lookups_total{result="miss"} 1`)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollments", http.StatusOK, 10*time.Millisecond)
	assert.Contains(t, scrape(t, m), `http_requests_total{method="GET",path="/api/v1/enrollments",status="200"} 1`)

	var missing *MetricsService
	rec := httptest.NewRecorder()
	missing.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	missing.RecordCertificate("issued")
	assert.Nil(t, missing.Registry())
}
