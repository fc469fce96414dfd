// Package metrics exposes the Prometheus instruments of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "complaintdesk_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "complaintdesk_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// ComplaintsCreated counts accepted complaints by category.
	ComplaintsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_complaints_created_total",
		Help: "Complaints created, by category.",
	}, []string{"category"})

	// Transitions counts committed status transitions.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_status_transitions_total",
		Help: "Committed status transitions, by old and new status.",
	}, []string{"from", "to"})

	// TransitionFailures counts rejected or rolled back transitions by error kind.
	TransitionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_status_transition_failures_total",
		Help: "Failed status transitions, by error kind.",
	}, []string{"kind"})

	// Notifications counts delivery attempts by kind and outcome (sent, retry, failed).
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "complaintdesk_notifications_total",
		Help: "Notification delivery attempts, by kind and outcome.",
	}, []string{"kind", "outcome"})

	// FeedSubscribers tracks live change feed subscribers.
	FeedSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "complaintdesk_changefeed_subscribers",
		Help: "Connected change feed subscribers.",
	})

	// FeedDropped counts subscribers dropped for falling behind.
	FeedDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "complaintdesk_changefeed_dropped_total",
		Help: "Change feed subscribers dropped because their buffer was full.",
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count, latency and in-flight requests per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		httpInFlight.Dec()
	}
}
