package library

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tunegate/tunegate-server/pkg/metrics"
)

type serviceMetrics struct {
	scans     prometheus.Counter
	tracks    prometheus.Counter
	skipped   *prometheus.CounterVec
	cacheHits *prometheus.CounterVec
}

func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &serviceMetrics{
		scans: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricLibraryScansTotal),
			Help: "Number of wallet library scans.",
		}),
		tracks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricLibraryTracksTotal),
			Help: "Number of tracks returned by library scans.",
		}),
		skipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricLibrarySkippedTotal),
			Help: "Number of held tokens skipped during library scans, by reason.",
		}, []string{"reason"}),
		cacheHits: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: metrics.Name(metrics.MetricLibraryCacheHits),
			Help: "Number of library cache hits, by cache.",
		}, []string{"cache"}),
	}
}
