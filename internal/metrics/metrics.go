// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics records harvest and retrieval counters on a Prometheus
// registry. Batch runs write the registry to a node-exporter textfile.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/scholar-harvest/pkg/types"
)

// Request kinds.
const (
	KindDirect  = "direct"
	KindMirror  = "mirror"
	KindChained = "chained"
)

// Metrics holds the collectors for one run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	BytesDownloaded prometheus.Counter
	InFlight        prometheus.Gauge
	Citations       *prometheus.CounterVec
	References      prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_harvest_requests_total",
			Help: "Retrieval requests by kind and outcome",
		}, []string{"kind", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scholar_harvest_request_duration_seconds",
			Help:    "Duration of retrieval requests including body transfer",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "scholar_harvest_downloaded_bytes_total",
			Help: "Bytes written to PDF files",
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "scholar_harvest_requests_in_flight",
			Help: "Requests currently executing",
		}),
		Citations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scholar_harvest_citations_total",
			Help: "Citations by final download status",
		}, []string{"status"}),
		References: f.NewCounter(prometheus.CounterOpts{
			Name: "scholar_harvest_references_total",
			Help: "Formatted references retrieved",
		}),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records a finished request. Call with time.Now() at the
// start of the request.
func (m *Metrics) ObserveRequest(kind, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(kind, outcome).Inc()
	m.RequestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// AddBytes records bytes written to disk.
func (m *Metrics) AddBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesDownloaded.Add(float64(n))
}

// TaskStarted and TaskFinished track the in-flight gauge.
func (m *Metrics) TaskStarted() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) TaskFinished() {
	if m != nil {
		m.InFlight.Dec()
	}
}

// RecordCitations counts citations by status.
func (m *Metrics) RecordCitations(citations []*types.Citation) {
	if m == nil {
		return
	}
	for _, c := range citations {
		m.Citations.WithLabelValues(string(c.Status)).Inc()
	}
}

// AddReferences counts retrieved references.
func (m *Metrics) AddReferences(n int) {
	if m != nil && n > 0 {
		m.References.Add(float64(n))
	}
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
