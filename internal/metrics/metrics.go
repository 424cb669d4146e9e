// Package metrics exposes evaluation counters through a prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for fixture verdicts.
const (
	OutcomePassed = "passed"
	OutcomeFailed = "failed"
	OutcomeError  = "error"
)

// Recorder collects evaluation metrics. A nil *Recorder records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	fixtures        *prometheus.CounterVec
	fixtureErrors   *prometheus.CounterVec
	batches         *prometheus.CounterVec
	fixtureDuration prometheus.Histogram
	batchDuration   prometheus.Histogram
}

// New builds a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fixtures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqljudge",
			Name:      "fixtures_total",
			Help:      "Fixtures evaluated, by outcome.",
		}, []string{"outcome"}),
		fixtureErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqljudge",
			Name:      "fixture_errors_total",
			Help:      "Fixture-level failures, by stage and store error class.",
		}, []string{"stage", "class"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqljudge",
			Name:      "batches_total",
			Help:      "Evaluation batches, by result.",
		}, []string{"result"}),
		fixtureDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqljudge",
			Name:      "fixture_duration_seconds",
			Help:      "Wall time of one fixture evaluation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sqljudge",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one evaluation batch.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 4, 8),
		}),
	}
	r.registry.MustRegister(r.fixtures, r.fixtureErrors, r.batches, r.fixtureDuration, r.batchDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveFixture records one verdict.
func (r *Recorder) ObserveFixture(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.fixtures.WithLabelValues(outcome).Inc()
	r.fixtureDuration.Observe(elapsed.Seconds())
}

// ObserveFixtureError records the stage and class of a fixture failure.
func (r *Recorder) ObserveFixtureError(stage string, class string) {
	if r == nil {
		return
	}
	r.fixtureErrors.WithLabelValues(stage, class).Inc()
}

// ObserveBatch records a finished batch.
func (r *Recorder) ObserveBatch(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.batches.WithLabelValues(result).Inc()
	r.batchDuration.Observe(elapsed.Seconds())
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
