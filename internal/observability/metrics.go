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
			Name: "sync_http_requests_total",
			Help: "Total number of HTTP requests processed by the sync service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_ws_active_connections",
			Help: "Number of active websocket snapshot subscribers.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_fetch_total",
			Help: "Total number of history fetches by mode and result.",
		},
		[]string{"mode", "result"},
	)
	sendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_send_total",
			Help: "Total number of send dispatches by result.",
		},
		[]string{"result"},
	)
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_reconcile_total",
			Help: "Total number of realtime feed events by feed and outcome.",
		},
		[]string{"feed", "outcome"},
	)
	pendingSends = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_pending_sends",
			Help: "Number of optimistic sends awaiting acknowledgement.",
		},
	)
	feedEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_feed_events_total",
			Help: "Total number of AMQP feed deliveries by routing key and result.",
		},
		[]string{"feed", "result"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_amqp_publish_errors_total",
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
		fetchTotal,
		sendTotal,
		reconcileTotal,
		pendingSends,
		feedEventsTotal,
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

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncFetch(mode, result string) {
	fetchTotal.WithLabelValues(mode, result).Inc()
}

func IncSend(result string) {
	sendTotal.WithLabelValues(result).Inc()
}

func IncReconcile(feed, outcome string) {
	reconcileTotal.WithLabelValues(feed, outcome).Inc()
}

func SetPendingSends(n float64) {
	pendingSends.Set(n)
}

func IncFeedEvent(feed, result string) {
	feedEventsTotal.WithLabelValues(feed, result).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
