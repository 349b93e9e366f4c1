package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/apptrail/pkg/domain"
)

// LogHooks returns lifecycle hooks that log every event to logger.
// Successful steps are logged at debug level, failures at warn.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_start",
				"run_id", e.RunID,
				"step_type", e.StepType,
				"endpoint", e.Endpoint,
			)
		},
		OnStepDone: func(ctx context.Context, e *domain.StepEvent) {
			if e.Err != nil {
				logger.WarnContext(ctx, "step_failed",
					"run_id", e.RunID,
					"step", e.Text,
					"err", e.Err,
				)
				return
			}
			logger.DebugContext(ctx, "step_done",
				"run_id", e.RunID,
				"step", e.Text,
				"screen", e.Screen,
				"duration", e.Duration,
			)
		},
		OnStepSkipped: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_skipped", "run_id", e.RunID, "step", e.Text)
		},
		OnExpectation: func(ctx context.Context, e *domain.ExpectationEvent) {
			level := slog.LevelDebug
			if !e.Passed {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "expectation",
				"run_id", e.RunID,
				"expectation", e.Text,
				"passed", e.Passed,
				"err", e.Err,
			)
		},
	}
}

func isFailure(err error) bool {
	return errors.Is(err, domain.ErrExpectationFailed)
}
