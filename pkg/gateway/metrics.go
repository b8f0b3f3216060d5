package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway counters on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	rewrites  prometheus.Counter
	published prometheus.Counter
	failures  prometheus.Counter
	downloads *prometheus.CounterVec
}

// NewMetrics registers the gateway counters on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rewrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_rewrites_total",
			Help: "Documents rewritten through POST /rewrite.",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_published_total",
			Help: "Resource URLs replaced with published links.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "securelink_rewrite_failures_total",
			Help: "Rewrite requests that failed.",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "securelink_downloads_total",
			Help: "Signed link downloads by outcome.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		m.rewrites,
		m.published,
		m.failures,
		m.downloads,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
