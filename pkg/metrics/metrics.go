// Package metrics records run statistics in a Prometheus registry. The
// tool is a short-lived batch job, so the registry is exported as a
// node_exporter textfile rather than served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/entrhq/wisplogin/pkg/login"
)

const namespace = "wisplogin"

// Collector implements login.Observer and records batch totals.
type Collector struct {
	registry *prometheus.Registry

	attempts    prometheus.Counter
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec

	accounts    prometheus.Gauge
	succeeded   prometheus.Gauge
	duration    prometheus.Gauge
	lastRunTime prometheus.Gauge
}

var _ login.Observer = (*Collector)(nil)

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts started, across all accounts.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Login state machine transitions by target state.",
		}, []string{"state"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_outcomes_total",
			Help:      "Per-account login outcomes.",
		}, []string{"result"}),
		accounts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_accounts",
			Help:      "Accounts dispatched in the last run.",
		}),
		succeeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_succeeded_accounts",
			Help:      "Accounts logged in successfully in the last run.",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
		lastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}

	c.registry.MustRegister(
		c.attempts,
		c.transitions,
		c.outcomes,
		c.accounts,
		c.succeeded,
		c.duration,
		c.lastRunTime,
	)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Transition counts state machine transitions. Accounts are not used as
// labels.
func (c *Collector) Transition(_ string, _, to login.State) {
	c.transitions.WithLabelValues(to.String()).Inc()
	if to == login.StateNavigating {
		c.attempts.Inc()
	}
}

// RecordBatch records the outcomes of a finished run.
func (c *Collector) RecordBatch(outcomes []login.Outcome, start, end time.Time) {
	var ok int
	for _, o := range outcomes {
		if o.Success {
			ok++
			c.outcomes.WithLabelValues("success").Inc()
		} else {
			c.outcomes.WithLabelValues("failure").Inc()
		}
	}

	c.accounts.Set(float64(len(outcomes)))
	c.succeeded.Set(float64(ok))
	c.duration.Set(end.Sub(start).Seconds())
	c.lastRunTime.Set(float64(end.Unix()))
}

// WriteTextfile atomically writes the registry in the text exposition
// format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
