package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "podcastr",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)

	PodcastsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "podcasts_created_total",
			Help:      "Podcasts created, by plan",
		},
		[]string{"plan"},
	)

	QuotaDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "quota_denials_total",
			Help:      "Podcast creations rejected by the plan quota",
		},
		[]string{"plan"},
	)

	VoiceDowngrades = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "voice_downgrades_total",
			Help:      "Creations whose voice was replaced by the default for non-subscribers",
		},
	)

	ViewIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "view_increments_total",
			Help:      "View increment calls, by result",
		},
		[]string{"result"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter decisions, by rule and outcome",
		},
		[]string{"rule", "outcome"},
	)

	BlobDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "podcastr",
			Name:      "blob_deletions_total",
			Help:      "Blob deletions, by status",
		},
		[]string{"status"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordRateLimit records a limiter outcome: allowed, denied or error.
func RecordRateLimit(rule, outcome string) {
	RateLimitDecisions.WithLabelValues(rule, outcome).Inc()
}

// RecordBlobDeletion records a blob delete: deleted, orphaned or retried.
func RecordBlobDeletion(status string) {
	BlobDeletions.WithLabelValues(status).Inc()
}
