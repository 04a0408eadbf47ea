package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "hardban",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route group, method and status code.",
		},
		[]string{"route", "method", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec( //nolint:gochecknoglobals
		prometheus.HistogramOpts{
			Namespace: "hardban",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route group and method.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	corsDenials = promauto.NewCounter( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "hardban",
			Subsystem: "cors",
			Name:      "denials_total",
			Help:      "Requests rejected by the CORS policy gate.",
		},
	)

	authFailures = promauto.NewCounterVec( //nolint:gochecknoglobals
		prometheus.CounterOpts{
			Namespace: "hardban",
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Authentication and authorization failures by reason.",
		},
		[]string{"reason"},
	)
)

// Metrics creates a middleware that records request counts and latency.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrapResponseWriter(w)

			next.ServeHTTP(rw, r)

			route := RouteGroup(r.URL.Path)
			httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}

// RouteGroup reduces a request path to a bounded metric label: the resource
// collection for API paths, the channel-free prefix for webhooks, the path itself
// for health endpoints and "other" for anything else.
//
//	/api/v1/rights/abc-123 -> /api/v1/rights
//	/webhooks/spotify      -> /webhooks
func RouteGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		segments := strings.SplitN(strings.TrimPrefix(path, "/api/v1/"), "/", 3)
		if segments[0] == "admin" && len(segments) > 1 {
			return "/api/v1/admin/" + segments[1]
		}

		return "/api/v1/" + segments[0]
	case strings.HasPrefix(path, "/webhooks/"):
		return "/webhooks"
	case path == "/ping", path == "/ready", path == "/health", path == "/metrics":
		return path
	default:
		return "other"
	}
}
