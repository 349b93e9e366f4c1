package observability

import (
	"context"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "apptrail"

// Metrics collects step and expectation metrics.
type Metrics struct {
	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	skipped      *prometheus.CounterVec
	expectations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Executed steps by type and outcome.",
			},
			[]string{"step_type", "outcome"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Round trip time of step requests by endpoint.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_skipped_total",
				Help:      "Steps skipped by the form policy.",
			},
			[]string{"step_type"},
		),
		expectations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expectations_total",
				Help:      "Evaluated expectations by type and result.",
			},
			[]string{"expectation_type", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.steps, m.stepDuration, m.skipped, m.expectations)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepDone: func(_ context.Context, e *domain.StepEvent) {
			outcome := "ok"
			if e.Err != nil {
				outcome = "error"
			}
			m.steps.WithLabelValues(e.StepType, outcome).Inc()
			m.stepDuration.WithLabelValues(e.Endpoint).Observe(e.Duration.Seconds())
		},
		OnStepSkipped: func(_ context.Context, e *domain.StepEvent) {
			m.skipped.WithLabelValues(e.StepType).Inc()
		},
		OnExpectation: func(_ context.Context, e *domain.ExpectationEvent) {
			result := "passed"
			switch {
			case e.Passed:
			case isFailure(e.Err):
				result = "failed"
			default:
				result = "error"
			}
			m.expectations.WithLabelValues(e.ExpectationType, result).Inc()
		},
	}
}
