package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and lightweight counters for the summary endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	admissions      *prometheus.CounterVec
	suspicious      *prometheus.CounterVec
	photoJobs       *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec

	admitCount      uint64
	rejectCount     uint64
	escalationCount uint64
	suspiciousCount uint64
	cacheHitCount   uint64
	cacheMissCount  uint64
	requestCount    uint64
}

// MetricsSnapshot is the JSON summary of admission activity since start-up.
type MetricsSnapshot struct {
	Admitted      uint64    `json:"admitted"`
	Rejected      uint64    `json:"rejected"`
	Escalated     uint64    `json:"escalated"`
	Suspicious    uint64    `json:"suspicious"`
	CacheHitRatio float64   `json:"cacheHitRatio"`
	RequestsTotal uint64    `json:"requestsTotal"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_admission_decisions_total",
		Help: "Verification outcomes by action, outcome and reason",
	}, []string{"action", "outcome", "reason"})

	suspicious := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_suspicious_reports_total",
		Help: "Reports flagged for human review",
	}, []string{"action"})

	photoJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_photo_jobs_total",
		Help: "Thumbnail jobs by result",
	}, []string{"result"})

	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "attendance_report_duration_seconds",
		Help:    "Time spent building attendance reports",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		admissions, suspicious, photoJobs, reportDuration, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		admissions:      admissions,
		suspicious:      suspicious,
		photoJobs:       photoJobs,
		reportDuration:  reportDuration,
	}
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks cache write latency.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordDecision counts a verification verdict.
func (m *MetricsService) RecordDecision(action string, decision Decision) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(action, string(decision.Outcome), string(decision.Reason)).Inc()
	switch decision.Outcome {
	case OutcomeAdmit:
		atomic.AddUint64(&m.admitCount, 1)
	case OutcomeReject:
		atomic.AddUint64(&m.rejectCount, 1)
	case OutcomeRequireSecondaryVerification:
		atomic.AddUint64(&m.escalationCount, 1)
	}
	if decision.Suspicious {
		m.suspicious.WithLabelValues(action).Inc()
		atomic.AddUint64(&m.suspiciousCount, 1)
	}
}

// RecordPhotoJob counts a thumbnail job result.
func (m *MetricsService) RecordPhotoJob(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.photoJobs.WithLabelValues(result).Inc()
}

// ObserveReport records report build latency.
func (m *MetricsService) ObserveReport(mode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// Snapshot returns the admission counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if hits+misses > 0 {
		ratio = float64(hits) / float64(hits+misses)
	}
	return MetricsSnapshot{
		Admitted:      atomic.LoadUint64(&m.admitCount),
		Rejected:      atomic.LoadUint64(&m.rejectCount),
		Escalated:     atomic.LoadUint64(&m.escalationCount),
		Suspicious:    atomic.LoadUint64(&m.suspiciousCount),
		CacheHitRatio: ratio,
		RequestsTotal: atomic.LoadUint64(&m.requestCount),
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
