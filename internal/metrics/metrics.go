package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Forward and acknowledgment outcomes
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds all Prometheus metrics for the relay
type Metrics struct {
	registry *prometheus.Registry

	// Intake
	MessagesReceivedTotal *prometheus.CounterVec
	MessagesIgnoredTotal  *prometheus.CounterVec

	// Outcomes
	ForwardsTotal        *prometheus.CounterVec
	AcknowledgmentsTotal *prometheus.CounterVec

	// Platform calls
	TransportCallDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_messages_received_total",
				Help: "Total number of inbound messages delivered by the transport",
			},
			[]string{"transport"},
		),
		MessagesIgnoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_messages_ignored_total",
				Help: "Total number of inbound messages that were not forwarded",
			},
			[]string{"reason"},
		),
		ForwardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_forwards_total",
				Help: "Total number of forward attempts",
			},
			[]string{"status"},
		),
		AcknowledgmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triagebot_acknowledgments_total",
				Help: "Total number of acknowledgment events handled",
			},
			[]string{"status"},
		),
		TransportCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triagebot_transport_call_duration_seconds",
				Help:    "Duration of outbound platform calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.MessagesReceivedTotal)
	m.registry.MustRegister(m.MessagesIgnoredTotal)
	m.registry.MustRegister(m.ForwardsTotal)
	m.registry.MustRegister(m.AcknowledgmentsTotal)
	m.registry.MustRegister(m.TransportCallDuration)
}

// RecordReceived counts one inbound message
func (m *Metrics) RecordReceived(transport string) {
	m.MessagesReceivedTotal.WithLabelValues(transport).Inc()
}

// RecordIgnored counts one message the filter dropped
func (m *Metrics) RecordIgnored(reason string) {
	m.MessagesIgnoredTotal.WithLabelValues(reason).Inc()
}

// RecordForward counts a forward attempt and its duration
func (m *Metrics) RecordForward(err error, d time.Duration) {
	m.ForwardsTotal.WithLabelValues(status(err)).Inc()
	m.TransportCallDuration.WithLabelValues("forward").Observe(d.Seconds())
}

// RecordAcknowledgment counts an acknowledgment and its duration
func (m *Metrics) RecordAcknowledgment(err error, d time.Duration) {
	m.AcknowledgmentsTotal.WithLabelValues(status(err)).Inc()
	m.TransportCallDuration.WithLabelValues("acknowledge").Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
