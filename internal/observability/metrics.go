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
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_published_total",
			Help: "Total number of message events published to the log.",
		},
	)
	publishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_publish_errors_total",
			Help: "Total number of failed publishes to the log.",
		},
		[]string{"exchange"},
	)
	messagesPersistedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of messages durably stored.",
		},
	)
	duplicateMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_duplicate_total",
			Help: "Total number of redelivered message events skipped by the idempotency check.",
		},
	)
	readReceiptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_read_receipts_total",
			Help: "Total number of read-receipt events processed, by outcome.",
		},
		[]string{"outcome"},
	)
	consumerRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_consumer_retries_total",
			Help: "Total number of consumer handler retries.",
		},
		[]string{"queue"},
	)
	deadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_dead_lettered_total",
			Help: "Total number of events parked on the dead-letter exchange.",
		},
		[]string{"queue"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Total number of sends rejected by the per-user rate limit.",
		},
	)
	fanoutDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fanout_delivered_total",
			Help: "Total number of payloads relayed from the fanout bus to local clients.",
		},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket lifecycle events.",
		},
		[]string{"event"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesPublishedTotal,
		publishErrorsTotal,
		messagesPersistedTotal,
		duplicateMessagesTotal,
		readReceiptsTotal,
		consumerRetriesTotal,
		deadLetteredTotal,
		rateLimitedTotal,
		fanoutDeliveredTotal,
		wsActiveConnections,
		wsEventsTotal,
	)
}

// HTTPMetricsMiddleware records request counts and latencies per route.
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

func IncMessagePublished() {
	messagesPublishedTotal.Inc()
}

func IncPublishError(exchange string) {
	publishErrorsTotal.WithLabelValues(exchange).Inc()
}

func IncMessagePersisted() {
	messagesPersistedTotal.Inc()
}

func IncDuplicateMessage() {
	duplicateMessagesTotal.Inc()
}

func IncReadReceipt(outcome string) {
	readReceiptsTotal.WithLabelValues(outcome).Inc()
}

func IncConsumerRetry(queue string) {
	consumerRetriesTotal.WithLabelValues(queue).Inc()
}

func IncDeadLettered(queue string) {
	deadLetteredTotal.WithLabelValues(queue).Inc()
}

func IncRateLimited() {
	rateLimitedTotal.Inc()
}

func IncFanoutDelivered() {
	fanoutDeliveredTotal.Inc()
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
