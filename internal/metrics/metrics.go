// Package metrics exposes Prometheus instrumentation for simplification runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Merge outcomes recorded under the status label
const (
	StatusMerged   = "merged"
	StatusRejected = "rejected"
)

// Registry holds all metrics for the simplifier
type Registry struct {
	MatchesTotal     *prometheus.CounterVec
	MergesTotal      *prometheus.CounterVec
	StageDuration    *prometheus.HistogramVec
	PendingDecisions prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{registry: reg}

	r.MatchesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydronet_matches_total",
			Help: "Total number of pattern matches found",
		},
		[]string{"kind"},
	)

	r.MergesTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydronet_merges_total",
			Help: "Total number of aggregate constructions by outcome",
		},
		[]string{"kind", "status"}, // merged, rejected
	)

	r.StageDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hydronet_stage_duration_seconds",
			Help:    "Duration of one pipeline stage in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"kind"},
	)

	r.PendingDecisions = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "hydronet_pending_decisions",
			Help: "Number of decisions waiting for an answer",
		},
	)

	return r
}

// RecordStage records one pipeline stage
func (r *Registry) RecordStage(kind string, matches int, duration time.Duration) {
	r.MatchesTotal.WithLabelValues(kind).Add(float64(matches))
	r.StageDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordMerge records the outcome of constructing and merging one match
func (r *Registry) RecordMerge(kind, status string) {
	r.MergesTotal.WithLabelValues(kind, status).Inc()
}

// SetPending sets the outstanding decision count
func (r *Registry) SetPending(n int) {
	r.PendingDecisions.Set(float64(n))
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
