// Package metrics exposes the directive metrics of acctmgr. Metrics are
// written to a node exporter textfile collector file at exit.
package metrics

import (
	"fmt"
	"time"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/diag"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "acctmgr"

// Transaction outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeDiscarded = "discarded"
	OutcomeFailed    = "failed"
	OutcomeNoop      = "noop"
)

// Metrics of one acctmgr invocation. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	inFlight         prometheus.Gauge
	mutationDuration *prometheus.HistogramVec
	drafted          *prometheus.CounterVec
	transactions     *prometheus.CounterVec
	errors           *prometheus.CounterVec
	lastRun          prometheus.Gauge
}

// New returns Metrics registered on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mutation_in_flight",
			Help:      "Whether a mutating storage operation is in flight (1) or not (0)",
		}),
		mutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mutation_duration_seconds",
				Help:      "Duration of mutating storage operations in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8), // 1ms to ~16s
			},
			[]string{"directive"},
		),
		drafted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "drafted_records_total",
				Help:      "Total number of records drafted by provisioning by kind",
			},
			[]string{"kind"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total number of directives by outcome",
			},
			[]string{"directive", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of reported errors by kind",
			},
			[]string{"kind"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last acctmgr run",
		}),
	}

	m.registry.MustRegister(m.inFlight, m.mutationDuration, m.drafted, m.transactions, m.errors, m.lastRun)

	// Export every error kind even when nothing was reported
	for _, kind := range diag.Kinds() {
		m.errors.WithLabelValues(kind.String())
	}

	return m
}

// Registry returns the registry of the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MutationStarted marks a mutation in flight.
func (m *Metrics) MutationStarted() {
	if m == nil {
		return
	}

	m.inFlight.Set(1)
}

// MutationFinished clears the in flight mark and records the duration.
func (m *Metrics) MutationFinished(directive string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.inFlight.Set(0)
	m.mutationDuration.WithLabelValues(directive).Observe(elapsed.Seconds())
}

// Drafted records n drafted records of kind.
func (m *Metrics) Drafted(kind string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.drafted.WithLabelValues(kind).Add(float64(n))
}

// Transaction records the outcome of a directive.
func (m *Metrics) Transaction(directive, outcome string) {
	if m == nil {
		return
	}

	m.transactions.WithLabelValues(directive, outcome).Inc()
}

// ObserveError counts a reported error. It is meant to be registered as
// diagnostics observer.
func (m *Metrics) ObserveError(kind diag.Kind) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(kind.String()).Inc()
}

// WriteTextfile writes the metrics to path in text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}

	m.lastRun.Set(float64(time.Now().Unix()))

	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}

	return nil
}
