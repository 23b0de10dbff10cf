package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService owns the Prometheus registry and the collectors for HTTP,
// cache and planner activity. All methods are safe on a nil receiver so
// callers never need to guard for a disabled metrics setup.
type MetricsService struct {
	registry *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec

	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	seriesCreated       prometheus.Counter
	seriesDatesSkipped  prometheus.Counter
	expiredLinksCleaned prometheus.Counter
	plansArchived       prometheus.Counter
}

// NewMetricsService constructs the registry and registers every collector.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	s := &MetricsService{
		registry: registry,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses.",
		}),
		seriesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_series_created_total",
			Help: "Total number of recurring series created.",
		}),
		seriesDatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_series_dates_skipped_total",
			Help: "Total number of series dates skipped due to full days.",
		}),
		expiredLinksCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_expired_links_cleaned_total",
			Help: "Total number of expired scheduling links cleared.",
		}),
		plansArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planner_plans_archived_total",
			Help: "Total number of plans archived.",
		}),
	}

	registry.MustRegister(
		s.httpDuration,
		s.httpRequests,
		s.cacheHits,
		s.cacheMisses,
		s.seriesCreated,
		s.seriesDatesSkipped,
		s.expiredLinksCleaned,
		s.plansArchived,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "goroutines_count",
			Help: "Current number of goroutines.",
		}, func() float64 { return float64(runtime.NumGoroutine()) }),
	)

	return s
}

// Handler exposes the registry over HTTP.
func (s *MetricsService) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records one completed HTTP request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if s == nil {
		return
	}
	labels := []string{method, path, strconv.Itoa(status)}
	s.httpDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.httpRequests.WithLabelValues(labels...).Inc()
}

// RecordCacheHit increments the cache hit counter.
func (s *MetricsService) RecordCacheHit() {
	if s == nil {
		return
	}
	s.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func (s *MetricsService) RecordCacheMiss() {
	if s == nil {
		return
	}
	s.cacheMisses.Inc()
}

// RecordSeriesCreated counts one created series.
func (s *MetricsService) RecordSeriesCreated() {
	if s == nil {
		return
	}
	s.seriesCreated.Inc()
}

// RecordSeriesDatesSkipped counts dates a series could not occupy.
func (s *MetricsService) RecordSeriesDatesSkipped(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.seriesDatesSkipped.Add(float64(n))
}

// RecordExpiredLinksCleaned counts links cleared by a cleanup pass.
func (s *MetricsService) RecordExpiredLinksCleaned(n int) {
	if s == nil || n <= 0 {
		return
	}
	s.expiredLinksCleaned.Add(float64(n))
}

// RecordPlanArchived counts one archived plan.
func (s *MetricsService) RecordPlanArchived() {
	if s == nil {
		return
	}
	s.plansArchived.Inc()
}
