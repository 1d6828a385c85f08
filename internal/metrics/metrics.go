package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the router exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsProcessedTotal   *prometheus.CounterVec
	EventsBlockedTotal     *prometheus.CounterVec
	MessagesPublishedTotal *prometheus.CounterVec
	MessagesDroppedTotal   *prometheus.CounterVec
	DecodeFailuresTotal    *prometheus.CounterVec
	DeliveriesTotal        *prometheus.CounterVec
	DeliveryDuration       *prometheus.HistogramVec
	KafkaMessagesTotal     *prometheus.CounterVec
	HTTPRequestsTotal      *prometheus.CounterVec
	WebSocketClients       prometheus.Gauge
}

// New registers all collectors on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsProcessedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_events_processed_total",
				Help: "Total number of events run through the filter chain",
			},
			[]string{"type", "state"},
		),
		EventsBlockedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_events_blocked_total",
				Help: "Events suppressed, by the filter that blocked them",
			},
			[]string{"filter"},
		),
		MessagesPublishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_messages_published_total",
				Help: "Messages enqueued for a gateway",
			},
			[]string{"queue"},
		),
		MessagesDroppedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_messages_dropped_total",
				Help: "Messages dropped because they could not be encoded",
			},
			[]string{"queue"},
		),
		DecodeFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_queue_decode_failures_total",
				Help: "Queue items skipped because they could not be decoded",
			},
			[]string{"queue"},
		),
		DeliveriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_deliveries_total",
				Help: "Delivery attempts by medium and outcome",
			},
			[]string{"medium", "outcome"},
		),
		DeliveryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alert_router_delivery_duration_seconds",
				Help:    "Time spent in a transport delivering one message",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"medium"},
		),
		KafkaMessagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_kafka_messages_total",
				Help: "Kafka records consumed, by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_router_http_requests_total",
				Help: "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		WebSocketClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "alert_router_websocket_clients",
				Help: "Connected web notification clients",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordEvent(eventType, state string) {
	if m == nil {
		return
	}
	m.EventsProcessedTotal.WithLabelValues(eventType, state).Inc()
}

func (m *Metrics) RecordBlocked(filter string) {
	if m == nil {
		return
	}
	m.EventsBlockedTotal.WithLabelValues(filter).Inc()
}

func (m *Metrics) RecordPublished(queue string) {
	if m == nil {
		return
	}
	m.MessagesPublishedTotal.WithLabelValues(queue).Inc()
}

func (m *Metrics) RecordDropped(queue string) {
	if m == nil {
		return
	}
	m.MessagesDroppedTotal.WithLabelValues(queue).Inc()
}

func (m *Metrics) RecordDecodeFailure(queue string) {
	if m == nil {
		return
	}
	m.DecodeFailuresTotal.WithLabelValues(queue).Inc()
}

// RecordDelivery counts one delivery attempt and its duration.
func (m *Metrics) RecordDelivery(medium string, err error, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.DeliveriesTotal.WithLabelValues(medium, outcome).Inc()
	m.DeliveryDuration.WithLabelValues(medium).Observe(took.Seconds())
}

func (m *Metrics) RecordKafka(outcome string) {
	if m == nil {
		return
	}
	m.KafkaMessagesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(n))
}
