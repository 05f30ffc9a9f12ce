package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medwatch/emias-tracker-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cycleDuration   prometheus.Observer
	cyclesTotal     prometheus.Counter
	recordsChecked  prometheus.Counter
	fetchFailures   prometheus.Counter
	notifications   prometheus.Counter
	bookings        *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	cycleCount           uint64
	cycleDurationTotal   uint64
	recordCheckCount     uint64
	fetchFailureCount    uint64
	notificationCount    uint64
	bookingSuccessCount  uint64
	bookingFailureCount  uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	cycleDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_cycle_duration_seconds",
		Help:    "Duration of full tracking passes",
		Buckets: prometheus.DefBuckets,
	})

	cyclesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_cycles_total",
		Help: "Total number of tracking passes",
	})

	recordsChecked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_records_checked_total",
		Help: "Total number of tracking records processed",
	})

	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_fetch_failures_total",
		Help: "Total number of failed schedule fetches",
	})

	notifications := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tracker_notifications_sent_total",
		Help: "Total number of notifications sent to users",
	})

	bookings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_bookings_total",
		Help: "Total number of booking attempts by kind and outcome",
	}, []string{"kind", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, cycleDuration, cyclesTotal, recordsChecked, fetchFailures,
		notifications, bookings, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cycleDuration:   cycleDuration,
		cyclesTotal:     cyclesTotal,
		recordsChecked:  recordsChecked,
		fetchFailures:   fetchFailures,
		notifications:   notifications,
		bookings:        bookings,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCycle records a completed tracking pass.
func (m *MetricsService) ObserveCycle(recordsChecked int, duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(duration.Seconds())
	m.cyclesTotal.Inc()
	m.recordsChecked.Add(float64(recordsChecked))
	atomic.AddUint64(&m.cycleCount, 1)
	atomic.AddUint64(&m.cycleDurationTotal, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&m.recordCheckCount, uint64(recordsChecked))
}

// RecordFetchFailure counts a failed schedule fetch.
func (m *MetricsService) RecordFetchFailure() {
	if m == nil {
		return
	}
	m.fetchFailures.Inc()
	atomic.AddUint64(&m.fetchFailureCount, 1)
}

// RecordNotification counts a delivered notification.
func (m *MetricsService) RecordNotification() {
	if m == nil {
		return
	}
	m.notifications.Inc()
	atomic.AddUint64(&m.notificationCount, 1)
}

// RecordBooking counts a booking attempt by kind ("create"/"shift") and outcome.
func (m *MetricsService) RecordBooking(kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
		atomic.AddUint64(&m.bookingSuccessCount, 1)
	} else {
		atomic.AddUint64(&m.bookingFailureCount, 1)
	}
	m.bookings.WithLabelValues(kind, outcome).Inc()
}

// Snapshot returns aggregated metrics suitable for the ops endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	cycles := atomic.LoadUint64(&m.cycleCount)
	cycleDuration := atomic.LoadUint64(&m.cycleDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgCycleMs float64
	if cycles > 0 {
		avgCycleMs = float64(cycleDuration) / float64(cycles) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CyclesTotal:              cycles,
		RecordsChecked:           atomic.LoadUint64(&m.recordCheckCount),
		FetchFailures:            atomic.LoadUint64(&m.fetchFailureCount),
		NotificationsSent:        atomic.LoadUint64(&m.notificationCount),
		BookingsSucceeded:        atomic.LoadUint64(&m.bookingSuccessCount),
		BookingsFailed:           atomic.LoadUint64(&m.bookingFailureCount),
		AverageCycleDurationMs:   avgCycleMs,
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
