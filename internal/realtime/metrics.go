package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "taskboard"

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	Connections         prometheus.Gauge
	EventsDispatched    *prometheus.CounterVec
	DeliveriesDropped   prometheus.Counter
	HandshakeRejections *prometheus.CounterVec
	InboundDropped      *prometheus.CounterVec
	JobsDropped         prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open authenticated WebSocket connections.",
		}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "events_dispatched_total",
			Help:      "Events dispatched by type and delivery mode.",
		}, []string{"type", "mode"}),
		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "deliveries_dropped_total",
			Help:      "Per-connection deliveries refused because the connection was closed or its buffer was full.",
		}),
		HandshakeRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "handshake_rejections_total",
			Help:      "Rejected socket handshakes by reason.",
		}, []string{"reason"}),
		InboundDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "realtime",
			Name:      "inbound_dropped_total",
			Help:      "Inbound frames discarded by reason.",
		}, []string{"reason"}),
		JobsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "fanout",
			Name:      "jobs_dropped_total",
			Help:      "Fan-out jobs dropped because the queue was full.",
		}),
	}
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

func (m *Metrics) dispatched(kind Kind, mode string) {
	if m != nil {
		m.EventsDispatched.WithLabelValues(string(kind), mode).Inc()
	}
}

func (m *Metrics) deliveryDropped() {
	if m != nil {
		m.DeliveriesDropped.Inc()
	}
}

func (m *Metrics) rejected(reason Reason) {
	if m != nil {
		m.HandshakeRejections.WithLabelValues(string(reason)).Inc()
	}
}

func (m *Metrics) inboundDropped(reason string) {
	if m != nil {
		m.InboundDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) jobDropped() {
	if m != nil {
		m.JobsDropped.Inc()
	}
}
