// Package metrics exposes a small helper for building a
// prometheus.Collector that gathers gauges at scrape time rather than
// maintaining pre-registered metric objects, matching the approach in
// flowpbx-flowpbx's internal/metrics package.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gauge is one named metric sampled at scrape time.
type Gauge struct {
	Name  string
	Help  string
	Value float64
	Labels prometheus.Labels
}

// Source supplies the current set of gauges for a process. Each
// process (tap, fgw, sgw) implements this over its own session
// tables rather than exposing them directly to the prometheus package.
type Source interface {
	Gauges() []Gauge
}

// collector adapts a Source to prometheus.Collector.
type collector struct {
	source Source
}

// NewHandler builds an http.Handler serving Prometheus text exposition
// for the given Source, for mounting at GET /metrics.
func NewHandler(source Source) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(&collector{source: source})
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	// Dynamic set of gauges: descriptors are generated in Collect, so
	// Describe intentionally sends nothing (unchecked collector).
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, g := range c.source.Gauges() {
		labelNames := make([]string, 0, len(g.Labels))
		labelValues := make([]string, 0, len(g.Labels))
		for k, v := range g.Labels {
			labelNames = append(labelNames, k)
			labelValues = append(labelValues, v)
		}
		desc := prometheus.NewDesc(g.Name, g.Help, labelNames, nil)
		m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, g.Value, labelValues...)
		if err != nil {
			continue
		}
		ch <- m
	}
}
