package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepStart   EventType = "step_start"
	EventStepDone    EventType = "step_done"
	EventStepSkipped EventType = "step_skipped"
	EventExpectation EventType = "expectation"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// StepEvent describes one executed (or skipped) leaf step.
type StepEvent struct {
	EventBase
	StepType string        `json:"step_type"`
	Endpoint string        `json:"endpoint,omitempty"`
	Text     string        `json:"text"`
	Screen   string        `json:"screen,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// ExpectationEvent describes one evaluated expectation.
type ExpectationEvent struct {
	EventBase
	ExpectationType string `json:"expectation_type"`
	Text            string `json:"text"`
	Passed          bool   `json:"passed"`
	Err             error  `json:"-"`
}

// LifecycleHooks defines callbacks for runner observability.
type LifecycleHooks struct {
	OnStepStart   func(context.Context, *StepEvent)
	OnStepDone    func(context.Context, *StepEvent)
	OnStepSkipped func(context.Context, *StepEvent)
	OnExpectation func(context.Context, *ExpectationEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepStart:   chainStep(h.OnStepStart, other.OnStepStart),
		OnStepDone:    chainStep(h.OnStepDone, other.OnStepDone),
		OnStepSkipped: chainStep(h.OnStepSkipped, other.OnStepSkipped),
		OnExpectation: chainExpectation(h.OnExpectation, other.OnExpectation),
	}
}

func chainStep(a, b func(context.Context, *StepEvent)) func(context.Context, *StepEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *StepEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainExpectation(a, b func(context.Context, *ExpectationEvent)) func(context.Context, *ExpectationEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *ExpectationEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
