package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transition outcomes
const (
	OutcomeApplied   = "applied"
	OutcomeForbidden = "forbidden"
	OutcomeInvalid   = "invalid"
	OutcomeConflict  = "conflict"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refuel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refuel_request_transitions_total",
			Help: "Refueling request status transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint string, statusCode int, durationSeconds float64) {
	status := "unknown"
	switch {
	case statusCode >= 500:
		status = "5xx"
	case statusCode >= 400:
		status = "4xx"
	case statusCode >= 300:
		status = "3xx"
	case statusCode >= 200:
		status = "2xx"
	}

	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordTransition counts one attempted status transition.
func RecordTransition(action, outcome string) {
	transitionsTotal.WithLabelValues(action, outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
