// Package metrics holds the Prometheus collectors describing one tracecmp pipeline run.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Side labels for RowsMatched.
const (
	SideReport = "report"
	SideBase   = "base"
	SideHead   = "head"
)

// Metrics bundles the pipeline collectors with the registry they live in.
type Metrics struct {
	Registry *prometheus.Registry

	// TracesFetched counts traces returned by the Trace Source.
	TracesFetched prometheus.Counter
	// FetchFailures counts transport and decode failures.
	FetchFailures prometheus.Counter
	// RowsExtracted counts feature rows, one per root span.
	RowsExtracted prometheus.Counter
	// RowsMatched counts rows passing the selector and status filters.
	RowsMatched *prometheus.CounterVec
	// FetchDuration observes the wall time of a single fetch.
	FetchDuration prometheus.Histogram
}

// New creates collectors registered in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TracesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracecmp_traces_fetched_total",
			Help: "Total traces returned by the Jaeger query API.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracecmp_fetch_failures_total",
			Help: "Total failed trace fetches (transport or decode).",
		}),
		RowsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracecmp_rows_extracted_total",
			Help: "Total root-span feature rows extracted from fetched traces.",
		}),
		RowsMatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracecmp_rows_matched_total",
			Help: "Total rows matching the selector and status filter.",
		}, []string{"side"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracecmp_fetch_duration_seconds",
			Help:    "Duration of trace fetches from Jaeger.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.Registry.MustRegister(
		m.TracesFetched,
		m.FetchFailures,
		m.RowsExtracted,
		m.RowsMatched,
		m.FetchDuration,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
