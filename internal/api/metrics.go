package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exposuregraph_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "exposuregraph_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	rolesUpserted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exposuregraph_roles_upserted_total",
		Help: "Roles processed by identity graph upserts.",
	})

	unknownRoles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exposuregraph_usage_unknown_roles_total",
		Help: "Usage annotations skipped because the role is not in the graph.",
	})

	scoringPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exposuregraph_scoring_passes_total",
		Help: "Scoring passes by outcome.",
	}, []string{"status"})

	rolesScored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "exposuregraph_roles_scored_total",
		Help: "Roles scored and emitted to the metrics sink.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration, rolesUpserted, unknownRoles, scoringPasses, rolesScored)
}

// MetricsHandler returns the Prometheus metrics HTTP handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// metricsMiddleware records request metrics.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rr, r)

		dur := time.Since(start).Seconds()
		status := strconv.Itoa(rr.statusCode)
		requestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(dur)
	})
}
