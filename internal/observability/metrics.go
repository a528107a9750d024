package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabubble_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dabubble_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dabubble_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabubble_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	storeSnapshotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabubble_store_snapshots_total",
			Help: "Total number of collection snapshots delivered by the document store.",
		},
		[]string{"collection"},
	)
	storeListenerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabubble_store_listener_errors_total",
			Help: "Total number of realtime listener refresh failures.",
		},
		[]string{"collection"},
	)
	messagesPostedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dabubble_messages_posted_total",
			Help: "Total number of posts written, by conversation kind.",
		},
		[]string{"kind"},
	)
	sessionExpiriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dabubble_session_expiries_total",
			Help: "Total number of sessions cleared by the idle timeout.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dabubble_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		storeSnapshotsTotal,
		storeListenerErrorsTotal,
		messagesPostedTotal,
		sessionExpiriesTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

func IncStoreSnapshot(collection string) {
	storeSnapshotsTotal.WithLabelValues(collection).Inc()
}

func IncStoreListenerError(collection string) {
	storeListenerErrorsTotal.WithLabelValues(collection).Inc()
}

func IncMessagePosted(kind string) {
	messagesPostedTotal.WithLabelValues(kind).Inc()
}

func IncSessionExpiry() {
	sessionExpiriesTotal.Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
