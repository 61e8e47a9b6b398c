package service

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/course-progress-api/internal/models"
)

const metricsNamespace = "course_progress"

// MetricsService owns the Prometheus registry for HTTP traffic, cache usage and
// the enrollment workflows.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Histogram
	cacheHitRatio   prometheus.Gauge
	cacheLookups    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	progressUpdates *prometheus.CounterVec
	quizSubmissions *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	sweepExpired    prometheus.Counter
	certificates    *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by outcome",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enrollment_transitions_total",
			Help:      "Committed enrollment status transitions",
		}, []string{"to", "trigger"}),
		progressUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lecture_progress_updates_total",
			Help:      "Lecture progress operations by outcome",
		}, []string{"operation", "result"}),
		quizSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quiz_submissions_total",
			Help:      "Graded quiz submissions",
		}, []string{"passing"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "expiration_sweep_duration_seconds",
			Help:      "Duration of expiration sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "expiration_sweep_expired_total",
			Help:      "Enrollments transitioned to Expired by the sweep",
		}),
		certificates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "certificates_total",
			Help:      "Certificate issuance attempts by outcome",
		}, []string{"result"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Lifecycle events handed to the broker",
		}, []string{"type", "result"}),
	}

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheHitRatio, m.cacheLookups,
		m.transitions, m.progressUpdates, m.quizSubmissions,
		m.sweepDuration, m.sweepExpired, m.certificates, m.eventsPublished,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// RecordTransition counts a committed enrollment transition.
func (m *MetricsService) RecordTransition(to models.EnrollmentStatus, trigger string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to), trigger).Inc()
}

// RecordProgressUpdate counts a coordinator operation by outcome.
func (m *MetricsService) RecordProgressUpdate(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.progressUpdates.WithLabelValues(operation, result).Inc()
}

// RecordQuizSubmission counts a graded submission.
func (m *MetricsService) RecordQuizSubmission(passing bool) {
	if m == nil {
		return
	}
	m.quizSubmissions.WithLabelValues(strconv.FormatBool(passing)).Inc()
}

// ObserveSweep records an expiration sweep run.
func (m *MetricsService) ObserveSweep(expired int, duration time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.sweepExpired.Add(float64(expired))
}

// RecordCertificate counts an issuance attempt.
func (m *MetricsService) RecordCertificate(result string) {
	if m == nil {
		return
	}
	m.certificates.WithLabelValues(result).Inc()
}

// RecordEvent counts a publish attempt.
func (m *MetricsService) RecordEvent(eventType models.EventType, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsPublished.WithLabelValues(string(eventType), result).Inc()
}
