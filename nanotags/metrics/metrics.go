// Package metrics collects filter evaluation statistics with Prometheus
// collectors kept in a private registry. A CLI run exports them in the
// node-exporter textfile format.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nanotags"

// Filter holds the collectors for filter evaluations. It implements
// filter.Observer.
type Filter struct {
	registry    *prometheus.Registry
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	results     *prometheus.HistogramVec
}

// NewFilter creates the filter collectors in a fresh registry
func NewFilter() *Filter {
	m, err := NewFilterWith(prometheus.NewRegistry())
	if err != nil {
		// a fresh registry cannot hold conflicting collectors
		panic(err)
	}
	return m
}

// NewFilterWith registers the collectors with reg, reusing collectors that
// are already registered there
func NewFilterWith(reg *prometheus.Registry) (*Filter, error) {
	m := &Filter{
		registry: reg,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "evaluations_total",
			Help:      "Filter phases evaluated, by phase.",
		}, []string{"phase"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "duration_seconds",
			Help:      "Time spent evaluating a filter phase.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"phase"}),
		results: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "filter",
			Name:      "results",
			Help:      "Number of scans selected by a filter phase.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"phase"}),
	}
	if err := registerOrReuse(reg, &m.evaluations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.results); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			existing, ok := are.ExistingCollector.(T)
			if !ok {
				return fmt.Errorf("metrics: collector already registered with incompatible type: %T", are.ExistingCollector)
			}
			*c = existing
			return nil
		}
		return fmt.Errorf("metrics: register collector: %w", err)
	}
	return nil
}

// ObservePhase records one evaluated phase
func (m *Filter) ObservePhase(phase string, elapsed time.Duration, results int) {
	m.evaluations.WithLabelValues(phase).Inc()
	m.duration.WithLabelValues(phase).Observe(elapsed.Seconds())
	m.results.WithLabelValues(phase).Observe(float64(results))
}

// Registry returns the registry holding the collectors
func (m *Filter) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes the current values to path in the textfile
// collector format
func (m *Filter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
