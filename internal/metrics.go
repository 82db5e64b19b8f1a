package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks what the server is doing.  A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	SessionsAccepted prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsClosed   *prometheus.CounterVec
	Commands         *prometheus.CounterVec
	Locations        prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		SessionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locations",
			Subsystem: "sessions",
			Name:      "accepted_total",
			Help:      "Total number of client connections accepted",
		}),

		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locations",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of client sessions currently being served",
		}),

		SessionsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "locations",
				Subsystem: "sessions",
				Name:      "closed_total",
				Help:      "Total number of client sessions closed, by reason",
			},
			[]string{"reason"},
		),

		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "locations",
				Subsystem: "commands",
				Name:      "total",
				Help:      "Total number of commands executed, by verb and outcome",
			},
			[]string{"verb", "outcome"},
		),

		Locations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locations",
			Subsystem: "registry",
			Name:      "points",
			Help:      "Number of points currently stored",
		}),
	}

	m.registry.MustRegister(
		m.SessionsAccepted,
		m.SessionsActive,
		m.SessionsClosed,
		m.Commands,
		m.Locations,
	)

	return m
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsAccepted.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsClosed.WithLabelValues(reason).Inc()
}

func (m *Metrics) CommandExecuted(verb, outcome string, points int) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(verb, outcome).Inc()
	m.Locations.Set(float64(points))
}
