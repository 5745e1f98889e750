// Package observability holds the Prometheus metrics exported by faceid serve.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "faceid"

var (
	EncodeRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "encode_runs_total",
		Help:      "Encode runs by result",
	}, []string{"result"})

	ImagesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_processed_total",
		Help:      "Images passed to the face embedding backend",
	})

	FacesFound = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "faces_found_total",
		Help:      "Images in which a face was found",
	})

	MatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_outcomes_total",
		Help:      "Match and identify outcomes",
	}, []string{"operation", "outcome"})

	ExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extract_duration_seconds",
		Help:      "Duration of a single face embedding call",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Encode results.
const (
	ResultSuccess = "success"
	ResultNoFaces = "no_faces"
	ResultError   = "error"
)

// ObserveExtract records one embedding call.
func ObserveExtract(start time.Time, found bool) {
	ExtractDuration.Observe(time.Since(start).Seconds())
	ImagesProcessed.Inc()
	if found {
		FacesFound.Inc()
	}
}

// ObserveRequest records one HTTP request. route should be a pattern, not a raw path.
func ObserveRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
