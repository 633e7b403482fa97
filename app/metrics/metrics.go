package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carfast", Name: "fetch_requests_total", Help: "Outbound fetch attempts by outcome."},
		[]string{"status"}, // ok|rejected|network_error
	)
	FetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "carfast", Name: "fetch_request_duration_seconds",
			Help:    "Outbound fetch attempt duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	RateLimitWaits = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "carfast", Name: "rate_limit_waits_total", Help: "Fetches held back by the sliding window."},
	)
	Harvests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carfast", Name: "harvests_total", Help: "Harvest calls by outcome."},
		[]string{"outcome"},
	)
	SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carfast", Name: "source_failures_total", Help: "Sources skipped during a harvest."},
		[]string{"source"},
	)
	ReviewsSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "carfast", Name: "reviews_saved_total", Help: "Review rows inserted."},
		[]string{"source"},
	)
	IntegrityPurged = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "carfast", Name: "integrity_purged_total", Help: "Rows removed by integrity verification."},
	)
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(FetchRequests, FetchLatency, RateLimitWaits, Harvests, SourceFailures, ReviewsSaved, IntegrityPurged)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveFetch(status string, dur time.Duration) {
	FetchRequests.WithLabelValues(status).Inc()
	FetchLatency.WithLabelValues(status).Observe(dur.Seconds())
}

func ObserveHarvest(outcome string) {
	Harvests.WithLabelValues(outcome).Inc()
}

func ObserveSourceFailure(source string) {
	SourceFailures.WithLabelValues(source).Inc()
}

func ObserveSaved(source string, inserted int) {
	if inserted > 0 {
		ReviewsSaved.WithLabelValues(source).Add(float64(inserted))
	}
}

func ObservePurged(purged int) {
	if purged > 0 {
		IntegrityPurged.Add(float64(purged))
	}
}
