// Package metrics wires the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so multiple server instances (tests) never
// collide on collector registration.
type Metrics struct {
	registry *prometheus.Registry

	// WSConnections tracks currently open WebSocket observers.
	WSConnections prometheus.Gauge

	// MessagesSent counts WebSocket messages delivered, by message type.
	MessagesSent *prometheus.CounterVec

	// SendFailures counts failed observer sends (each one prunes the
	// observer from the registry).
	SendFailures prometheus.Counter

	// HTTPRequests counts API requests by method and status.
	HTTPRequests *prometheus.CounterVec

	// ScansTotal counts receipt scan attempts by outcome.
	ScansTotal *prometheus.CounterVec
}

// New creates the collector set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tabsplit_websocket_connections",
			Help: "Currently open WebSocket observer connections.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabsplit_websocket_messages_sent_total",
			Help: "WebSocket messages delivered to observers.",
		}, []string{"type"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tabsplit_websocket_send_failures_total",
			Help: "Failed observer sends; each prunes the observer.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabsplit_http_requests_total",
			Help: "API requests by method and status code.",
		}, []string{"method", "status"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabsplit_receipt_scans_total",
			Help: "Receipt scan attempts by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.WSConnections, m.MessagesSent, m.SendFailures, m.HTTPRequests, m.ScansTotal)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
