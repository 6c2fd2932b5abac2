package obs

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	messagesHandled  *prometheus.CounterVec
	messageDuration  *prometheus.HistogramVec
	outboxPublished  *prometheus.CounterVec
	catalogProcessed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		messagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_chat_bus_messages_total",
			Help: "Commands and queries handled, by outcome kind.",
		}, []string{"bus", "key", "outcome"}),
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_chat_bus_message_duration_seconds",
			Help:    "Command and query handling latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"bus", "key"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_chat_outbox_events_total",
			Help: "Outbox events relayed to the broker, by result.",
		}, []string{"event", "result"}),
		catalogProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_chat_catalog_events_total",
			Help: "Catalog events applied to the product projection, by result.",
		}, []string{"type", "result"}),
	}
	m.registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.messagesHandled,
		m.messageDuration,
		m.outboxPublished,
		m.catalogProcessed,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// ObserveMessage records a bus dispatch; an empty kind means success.
func (m *Metrics) ObserveMessage(bus, key string, elapsed time.Duration, kind string) {
	outcome := kind
	if outcome == "" {
		outcome = "ok"
	}
	m.messagesHandled.WithLabelValues(bus, key, outcome).Inc()
	m.messageDuration.WithLabelValues(bus, key).Observe(elapsed.Seconds())
}

func (m *Metrics) OutboxRelayed(event string, err error) {
	m.outboxPublished.WithLabelValues(event, result(err)).Inc()
}

func (m *Metrics) CatalogEvent(eventType string, err error) {
	m.catalogProcessed.WithLabelValues(eventType, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
