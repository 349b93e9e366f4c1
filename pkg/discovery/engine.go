package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"
	"github.com/aretw0/apptrail/pkg/workflow"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDepth bounds explorations of applications whose navigation cycles.
const DefaultMaxDepth = 25

// Engine discovers workflows by breadth-first exploration.
type Engine struct {
	runner      *runner.Runner
	logger      *slog.Logger
	parallelism int
	maxDepth    int
	now         func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithRunner sets the runner that executes explored steps.
func WithRunner(r *runner.Runner) Option {
	return func(e *Engine) {
		e.runner = r
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithParallelism bounds how many explorations advance concurrently within
// a round. Values below 1 mean sequential.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		e.parallelism = n
	}
}

// WithMaxDepth bounds the number of steps in a discovered workflow.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithClock sets the clock used for date answers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:      logging.NewNop(),
		parallelism: 1,
		maxDepth:    DefaultMaxDepth,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runner == nil {
		e.runner = runner.New(runner.WithLogger(e.logger))
	}
	if e.parallelism < 1 {
		e.parallelism = 1
	}
	return e
}

type exploration struct {
	sess  *session.Session
	steps []workflow.Entry
}

// advance is what one round did to an exploration.
type advance struct {
	done    *workflow.Workflow
	forward []*exploration
}

// Discover opens the application on sess and returns every workflow reachable
// from its root menu. sess is left on the root menu; explorations run on
// copies of it.
func (e *Engine) Discover(ctx context.Context, sess *session.Session) ([]workflow.Workflow, error) {
	var found []workflow.Workflow
	err := e.runner.Scope(ctx, sess, func(ctx context.Context) error {
		if err := e.runner.Start(ctx, sess); err != nil {
			return err
		}

		active := []*exploration{{sess: sess.Clone()}}
		for round := 1; len(active) > 0; round++ {
			e.logger.Debug("Discovery round", "round", round, "active", len(active))
			results, err := e.round(ctx, active)
			if err != nil {
				return err
			}
			active = active[:0:0]
			for _, r := range results {
				if r.done != nil {
					found = append(found, *r.done)
				}
				active = append(active, r.forward...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Discovery finished", "workflows", len(found))
	return found, nil
}

func (e *Engine) round(ctx context.Context, active []*exploration) ([]advance, error) {
	results := make([]advance, len(active))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, x := range active {
		g.Go(func() error {
			r, err := e.step(ctx, x)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) step(ctx context.Context, x *exploration) (advance, error) {
	branches, err := e.Branches(x.sess)
	if err != nil {
		return advance{}, fmt.Errorf("branches after %d steps: %w", len(x.steps), err)
	}
	if len(branches) == 0 {
		if len(x.steps) == 0 {
			return advance{}, nil
		}
		wf := workflow.New(x.steps...)
		return advance{done: &wf}, nil
	}
	if len(x.steps) >= e.maxDepth {
		e.logger.Warn("Exploration reached max depth", "depth", e.maxDepth, "pending", len(branches))
		wf := workflow.New(x.steps...)
		return advance{done: &wf}, nil
	}

	// Forks copy the session before the first branch moves it.
	sessions := make([]*session.Session, len(branches))
	sessions[0] = x.sess
	for i := 1; i < len(branches); i++ {
		sessions[i] = x.sess.Clone()
	}

	var out advance
	for i, b := range branches {
		if err := e.runner.ExecuteStep(ctx, sessions[i], b); err != nil {
			return advance{}, fmt.Errorf("explore %q: %w", dsl.Text(b), err)
		}
		steps := append(append([]workflow.Entry(nil), x.steps...), b)
		out.forward = append(out.forward, &exploration{sess: sessions[i], steps: steps})
	}
	return out, nil
}
