package middleware

// Prometheus instrumentation for the API. The "route" label is always the
// registered gin route (c.FullPath()), never the raw URL: document ids would
// otherwise make the label set unbounded. Unmatched requests share "unmatched".

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// Upper buckets cover AI generation, which routinely takes tens of seconds.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lumina",
			Name:      "http_requests_inflight",
			Help:      "Requests currently being served.",
		},
	)

	// Uploads and hydrated documents carry whole PDFs, hence the MiB tail.
	sizeBuckets = []float64{
		1 << 10, 16 << 10, 128 << 10,
		1 << 20, 5 << 20, 10 << 20, 25 << 20, 50 << 20,
	}

	httpReqSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Name:      "http_request_size_bytes",
			Help:      "Declared request body size.",
			Buckets:   sizeBuckets,
		},
		[]string{"method", "route"},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lumina",
			Name:      "http_response_size_bytes",
			Help:      "Response body size.",
			Buckets:   sizeBuckets,
		},
		[]string{"method", "route"},
	)

	httpRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumina",
			Name:      "http_rejected_total",
			Help:      "Requests refused before reaching a service, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpReqSize, httpRespSize, httpRejected)
}

// rejectReason names statuses produced by the guard middleware; "" for the rest.
func rejectReason(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	return ""
}

func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}

// Metrics instruments every request. Mount /metrics with promhttp.Handler().
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := routeLabel(c)
		method := c.Request.Method
		status := c.Writer.Status()

		httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if n := c.Request.ContentLength; n > 0 {
			httpReqSize.WithLabelValues(method, route).Observe(float64(n))
		}
		// -1 when nothing was written
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}
		if reason := rejectReason(status); reason != "" {
			httpRejected.WithLabelValues(reason).Inc()
		}
	}
}
