// Package metrics instruments the mutation pipeline with Prometheus
// collectors.
//
// A nil *Metrics is valid and records nothing, so components take metrics as
// an optional dependency.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Command outcomes used as the outcome label.
const (
	OutcomeOK         = "ok"
	OutcomeReplayed   = "replayed"
	OutcomeValidation = "validation"
	OutcomeNotFound   = "not_found"
	OutcomeExternal   = "external"
	OutcomeConflict   = "conflict"
)

// Kinds of swept records used as the kind label.
const (
	KindIdempotency = "idempotency"
	KindAudit       = "audit"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	AdvisorFailures prometheus.Counter
	SweptTotal      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpgate_commands_total",
				Help: "Commands executed by the mutation workflow, by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "erpgate_command_duration_seconds",
				Help:    "Wall time of one workflow execution.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		AdvisorFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "erpgate_advisor_failures_total",
				Help: "Advisor reviews that failed or timed out.",
			},
		),
		SweptTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "erpgate_swept_records_total",
				Help: "Records removed by the retention sweeper, by kind.",
			},
			[]string{"kind"},
		),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.CommandsTotal, m.CommandDuration, m.AdvisorFailures, m.SweptTotal} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveCommand counts one finished command and its duration.
func (m *Metrics) ObserveCommand(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(operation, outcome).Inc()
	m.CommandDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// AdvisorFailed counts one failed advisor review.
func (m *Metrics) AdvisorFailed() {
	if m == nil {
		return
	}
	m.AdvisorFailures.Inc()
}

// Swept counts records removed by the sweeper.
func (m *Metrics) Swept(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweptTotal.WithLabelValues(kind).Add(float64(n))
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
