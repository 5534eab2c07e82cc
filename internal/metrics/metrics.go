// Package metrics exposes Prometheus counters and histograms for the
// extraction pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for ObserveExtraction.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the pipeline collectors and the registry they live in. A
// nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	extractions *prometheus.CounterVec
	fetchSource *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	dropped     *prometheus.CounterVec
}

// New registers the pipeline collectors, plus the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_extractions_total",
			Help: "Extractions by record kind and outcome.",
		}, []string{"kind", "outcome"}),
		fetchSource: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_fetch_source_total",
			Help: "Successful page fetches by content source.",
		}, []string{"source"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_extraction_duration_seconds",
			Help:    "End-to-end extraction latency.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"kind"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_fields_dropped_total",
			Help: "Fields discarded during schema lifting or sanitization.",
		}, []string{"kind"}),
	}
}

// ObserveExtraction counts one extraction and records its latency.
func (m *Metrics) ObserveExtraction(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// FetchSource counts a successful fetch from the named source.
func (m *Metrics) FetchSource(source string) {
	if m == nil {
		return
	}
	m.fetchSource.WithLabelValues(source).Inc()
}

// FieldsDropped adds n discarded fields for kind.
func (m *Metrics) FieldsDropped(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dropped.WithLabelValues(kind).Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
