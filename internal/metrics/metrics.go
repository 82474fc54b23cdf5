// Package metrics holds the prometheus collectors recorded by a crawl pass.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is a set of collectors on a dedicated registry.
// A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// CareersTotal counts career outcomes by status
	CareersTotal *prometheus.CounterVec
	// RecoveryTotal counts recovery outcomes (primary, rescue, or a failure reason)
	RecoveryTotal *prometheus.CounterVec
	// FetchDuration tracks fetch latency per career
	FetchDuration *prometheus.HistogramVec
	// LastPassTimestamp is the completion time of the last pass
	LastPassTimestamp prometheus.Gauge
	// LastPassFailures is the number of careers that failed in the last pass
	LastPassFailures prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CareersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "course_crawler_careers_total",
				Help: "Total number of career outcomes by status",
			},
			[]string{"career", "status"},
		),
		RecoveryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "course_crawler_recovery_total",
				Help: "Total number of recovery attempts by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "course_crawler_fetch_duration_seconds",
				Help:    "Course listing fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"career"},
		),
		LastPassTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "course_crawler_last_pass_timestamp_seconds",
			Help: "Unix time the last crawl pass finished",
		}),
		LastPassFailures: factory.NewGauge(prometheus.GaugeOpts{
			Name: "course_crawler_last_pass_failures",
			Help: "Number of careers that failed in the last crawl pass",
		}),
	}
}

// ObserveCareer records the final status of a career.
func (m *Metrics) ObserveCareer(career, status string) {
	if m == nil {
		return
	}
	m.CareersTotal.WithLabelValues(career, status).Inc()
}

// ObserveRecovery records a recovery outcome.
func (m *Metrics) ObserveRecovery(outcome string) {
	if m == nil {
		return
	}
	m.RecoveryTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records how long a fetch took.
func (m *Metrics) ObserveFetch(career string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(career).Observe(d.Seconds())
}

// ObservePass records the completion of a pass.
func (m *Metrics) ObservePass(finished time.Time, failures int) {
	if m == nil {
		return
	}
	m.LastPassTimestamp.Set(float64(finished.Unix()))
	m.LastPassFailures.Set(float64(failures))
}

// WriteTextfile writes the registry in the text exposition format, for a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics file %s: %w", path, err)
	}
	return nil
}
