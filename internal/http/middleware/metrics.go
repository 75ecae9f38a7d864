// Package middleware contains the Gin middleware of the relay API.
//
// Metrics exported by this file:
//
//	http_requests_total{method,route,status,caller}
//	http_request_duration_seconds{method,route}
//	http_requests_inflight
//	http_response_size_bytes{route}
//	http_idempotent_replays_total{route}
//	http_rate_limited_total{limiter}
//
// route is the registered Gin pattern ("/api/v1/profile/:userId"), or
// "unmatched" for 404s so that scanners cannot blow up cardinality.
// caller is "token", "header" or "anonymous" depending on how the user id
// was supplied.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

// Caller kinds.
const (
	CallerToken     = "token"
	CallerHeader    = "header"
	CallerAnonymous = "anonymous"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route, status and caller kind.",
		},
		[]string{"method", "route", "status", "caller"},
	)

	// Chat requests wait on the LLM, so the buckets reach a minute.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served.",
		},
	)

	// Replies are capped at a few KiB; history pages are the large ones.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 2, 12), // 128B..256KiB
		},
		[]string{"route"},
	)

	idemReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_idempotent_replays_total",
			Help: "Requests answered from a remembered Idempotency-Key.",
		},
		[]string{"route"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"limiter"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, idemReplays, rateLimited)
}

// CallerKind reports how the request identified its user. It must run after
// Authenticate and Identity.
func CallerKind(c *gin.Context) string {
	if _, ok := AuthenticatedUserID(c); ok {
		return CallerToken
	}
	if UserID(c) != "" {
		return CallerHeader
	}
	return CallerAnonymous
}

// Metrics records Prometheus request metrics. Register it after Identity so
// the caller label is known, and before IdempotencyValidator so replays are
// counted.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := c.Request.Method

		httpReqs.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status()), CallerKind(c)).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(route).Observe(float64(size))
		}
		if IsReplay(c) {
			idemReplays.WithLabelValues(route).Inc()
		}
	}
}
