package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

func TestMetricsServiceRecordsGeneration(t *testing.T) {
	m := NewMetricsService()

	m.ObserveGeneration("10", 120*time.Millisecond, []timetable.Violation{
		{Type: timetable.ViolationMorningRatioBelowTarget, Severity: timetable.SeverityMedium},
		{Type: timetable.ViolationMorningRatioBelowTarget, Severity: timetable.SeverityMedium},
		{Type: timetable.ViolationNoQualifiedTeacher, Severity: timetable.SeverityCritical},
	})
	m.ObserveGeneration("11", 80*time.Millisecond, nil)
	m.RecordGenerationFailure()
	m.AddSavedSlots(864)
	m.RecordJob("COMPLETED")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.violations.WithLabelValues("MorningRatioBelowTarget", "MEDIUM")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.generationTotal.WithLabelValues("clean")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.generationTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(864), testutil.ToFloat64(m.savedSlots))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsTotal.WithLabelValues("COMPLETED")))
}

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)

	assert.InDelta(t, 0.5, testutil.ToFloat64(m.cacheHitRatio), 0.0001)
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/timetables/generate", http.StatusOK, 30*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveGeneration("10", time.Second, nil)
	m.RecordCacheOperation(true, time.Second)
	m.AddSavedSlots(1)
	m.RecordJob("FAILED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
