package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ec2emulator/state"
)

const subsystem = "ec2emulator"

var descStoredResources = prometheus.NewDesc(
	prometheus.BuildFQName("", subsystem, "stored_resources"),
	"Number of records currently stored per resource kind.",
	[]string{"kind"}, nil,
)

// Metrics holds the request metrics of one server and the registry exposing them.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics builds a registry with request metrics, a per kind gauge over store and
// the Go runtime collectors.
func NewMetrics(store *state.Store) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      "requests_total",
				Help:      "Count of API requests by action and response code.",
			},
			[]string{"action", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      "request_duration_seconds",
				Help:      "Latency of API requests by action.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"action"},
		),
	}
	m.registry.MustRegister(m.requests, m.latency)
	m.registry.MustRegister(newStoreCollector(store))
	m.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest counts one finished request.
func (m *Metrics) RecordRequest(action, code string, elapsed time.Duration) {
	m.requests.WithLabelValues(action, code).Inc()
	m.latency.WithLabelValues(action).Observe(elapsed.Seconds())
}

type storeCollector struct {
	store *state.Store
}

var _ prometheus.Collector = &storeCollector{}

func newStoreCollector(store *state.Store) prometheus.Collector {
	return &storeCollector{store: store}
}

// Describe implements the prometheus.Collector interface.
func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descStoredResources
}

// Collect implements the prometheus.Collector interface.
func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	var counts map[state.Kind]int
	_ = c.store.View(func() error {
		counts = c.store.Counts()
		return nil
	})
	for _, kind := range state.Kinds() {
		ch <- prometheus.MustNewConstMetric(descStoredResources, prometheus.GaugeValue, float64(counts[kind]), string(kind))
	}
}
