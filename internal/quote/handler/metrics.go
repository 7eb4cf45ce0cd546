package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	qfRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteforge_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	qfRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quoteforge_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	qfTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteforge_transitions_total",
		Help: "Total lifecycle transitions by event and outcome.",
	}, []string{"event", "outcome"})

	qfOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteforge_operations_total",
		Help: "Total conflict-resolved operations by fate.",
	}, []string{"fate"})

	qfChainVerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quoteforge_chain_verifications_total",
		Help: "Total chain verifications by result.",
	}, []string{"result"})
)

// CountTransition records one lifecycle transition attempt.
func CountTransition(event, outcome string) {
	qfTransitionsTotal.WithLabelValues(event, outcome).Inc()
}

// CountOperations records resolved operation fates for a batch.
func CountOperations(applied, overridden, rejected int) {
	qfOperationsTotal.WithLabelValues("applied").Add(float64(applied))
	qfOperationsTotal.WithLabelValues("overridden").Add(float64(overridden))
	qfOperationsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// CountChainVerification records one verification outcome.
func CountChainVerification(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	qfChainVerifyTotal.WithLabelValues(result).Inc()
}

// PrometheusMiddleware returns a gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		qfRequestsTotal.WithLabelValues(method, path, status).Inc()
		qfRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
