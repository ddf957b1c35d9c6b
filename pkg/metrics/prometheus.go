package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricHTTPRequestsTotal   = "http_requests_total"
	MetricHTTPRequestDuration = "http_request_duration_seconds"

	MetricLibraryScansTotal   = "library_scans_total"
	MetricLibraryTracksTotal  = "library_tracks_total"
	MetricLibrarySkippedTotal = "library_skipped_tokens_total"
	MetricLibraryCacheHits    = "library_cache_hits_total"

	MetricSwapQuotesTotal = "swap_quotes_total"
	MetricSwapRelaysTotal = "swap_relays_total"

	MetricMintsCreatedTotal = "mints_created_total"
)

const namespace = "tunegate"

// HTTPMetrics observes served requests by route pattern.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricHTTPRequestsTotal,
			Help:      "Number of HTTP requests served, by route and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricHTTPRequestDuration,
			Help:      "Latency of HTTP requests, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	reg.MustRegister(m.requests, m.duration)

	return m
}

func (m *HTTPMetrics) Observe(route, method, code string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(route, method, code).Inc()
	m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the metrics collected by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Name returns a fully qualified metric name.
func Name(metric string) string {
	return prometheus.BuildFQName(namespace, "", metric)
}
