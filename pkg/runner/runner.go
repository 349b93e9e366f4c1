package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/session"
	"github.com/aretw0/apptrail/pkg/workflow"
	"github.com/google/uuid"
)

// startText is the log text of the synthetic first step.
const startText = "Open application"

// Runner executes workflows against a session, one entry at a time.
// A Runner is safe for concurrent use; each session is not.
type Runner struct {
	// Logger is used for debug logging of every exchange.
	Logger *slog.Logger

	// Hooks observe step execution (metrics, tracing).
	Hooks domain.LifecycleHooks

	// FormPolicy gates form-scoped steps. Defaults to FormsFull.
	FormPolicy FormPolicy

	// Sync sends a sync-db request before opening the application.
	Sync bool

	locker  ports.DistributedLocker
	lockTTL time.Duration
	locks   *session.Manager
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		Logger:     logging.NewNop(),
		FormPolicy: FormsFull,
		lockTTL:    session.DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	mopts := []session.Option{session.WithLogger(r.Logger), session.WithLockTTL(r.lockTTL)}
	if r.locker != nil {
		mopts = append(mopts, session.WithLocker(r.locker))
	}
	r.locks = session.NewManager(mopts...)
	return r
}

type runIDKey struct{}

// Run opens the application and executes every entry of wf in order.
// The first failing entry aborts the run.
func (r *Runner) Run(ctx context.Context, sess *session.Session, wf workflow.Workflow) error {
	return r.Scope(ctx, sess, func(ctx context.Context) error {
		logger := r.Logger.With("run_id", RunID(ctx), "user", sess.LockKey())
		logger.Debug("Run started", "entries", len(wf.Steps))
		if err := r.Start(ctx, sess); err != nil {
			return err
		}
		for _, e := range wf.Steps {
			if err := r.ExecuteStep(ctx, sess, e); err != nil {
				logger.Debug("Run aborted", "err", err)
				return err
			}
		}
		logger.Debug("Run finished")
		return nil
	})
}

// Scope locks the user of sess and acquires its channel for the duration of fn.
// Both are released on every exit path. fn receives a context carrying a new
// run id.
func (r *Runner) Scope(ctx context.Context, sess *session.Session, fn func(ctx context.Context) error) error {
	ctx = context.WithValue(ctx, runIDKey{}, uuid.NewString())
	return r.locks.WithLock(ctx, sess.LockKey(), func(ctx context.Context) (err error) {
		release, err := acquire(ctx, sess.Channel())
		if err != nil {
			return err
		}
		defer func() {
			if cerr := release(); cerr != nil {
				r.Logger.Warn("Failed to release channel", "err", cerr)
				if err == nil {
					err = cerr
				}
			}
		}()
		return fn(ctx)
	})
}

// RunID returns the id of the run ctx belongs to, or "".
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func acquire(ctx context.Context, ch ports.Channel) (func() error, error) {
	o, ok := ch.(ports.Opener)
	if !ok {
		return func() error { return nil }, nil
	}
	if err := o.Open(ctx); err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return o.Close, nil
}

// Start optionally syncs data and then opens the application, leaving sess on
// the root menu.
func (r *Runner) Start(ctx context.Context, sess *session.Session) error {
	if r.Sync {
		if _, err := sess.Send(ctx, workflow.EndpointSync, sess.SyncData()); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		sess.Logf("Sync data")
	}
	req := workflow.Request{Endpoint: workflow.EndpointNavigateStart, Data: sess.StartData()}
	return r.send(ctx, sess, startText, "start", req)
}

// ExecuteStep runs one entry: containers run their children in order, leaves
// send one request and replace the screen, expectations are evaluated.
func (r *Runner) ExecuteStep(ctx context.Context, sess *session.Session, e workflow.Entry) error {
	return r.execute(ctx, sess, e, false)
}

func (r *Runner) execute(ctx context.Context, sess *session.Session, e workflow.Entry, inForm bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := dsl.Text(e)

	if r.skipped(e, inForm) {
		sess.Logf("%s [skipped]", text)
		if r.Hooks.OnStepSkipped != nil {
			r.Hooks.OnStepSkipped(ctx, &domain.StepEvent{
				EventBase: r.event(ctx, domain.EventStepSkipped),
				StepType:  e.Type(),
				Text:      text,
			})
		}
		return nil
	}

	switch v := e.(type) {
	case workflow.Expectation:
		return r.evaluate(ctx, sess, v, text)
	case workflow.Step:
		leaf, children := workflow.Expand(v)
		if children != nil {
			_, isForm := v.(workflow.FormStep)
			for _, child := range children {
				if err := r.execute(ctx, sess, child, inForm || isForm); err != nil {
					return err
				}
			}
			return nil
		}
		if leaf == nil {
			return nil
		}
		req, err := leaf.Request(sess)
		if err != nil {
			return err
		}
		return r.send(ctx, sess, text, leaf.Type(), req)
	default:
		return fmt.Errorf("unsupported entry %T", e)
	}
}

func (r *Runner) skipped(e workflow.Entry, inForm bool) bool {
	switch r.FormPolicy {
	case FormsIgnore:
		if _, isForm := e.(workflow.FormStep); isForm {
			return false
		}
		return inForm || workflow.IsFormScoped(e)
	case FormsNoSubmit:
		_, isSubmit := e.(workflow.SubmitFormStep)
		return isSubmit
	}
	return false
}

func (r *Runner) send(ctx context.Context, sess *session.Session, text, stepType string, req workflow.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := &domain.StepEvent{
		EventBase: r.event(ctx, domain.EventStepStart),
		StepType:  stepType,
		Endpoint:  req.Endpoint,
		Text:      text,
	}
	if r.Hooks.OnStepStart != nil {
		r.Hooks.OnStepStart(ctx, ev)
	}
	r.Logger.Debug("Sending request", "endpoint", req.Endpoint, "step", text)

	started := time.Now()
	_, err := sess.Execute(ctx, req)
	var kind string
	if err == nil {
		k, kerr := sess.Kind()
		kind, err = string(k), kerr
	}

	done := *ev
	done.EventBase = r.event(ctx, domain.EventStepDone)
	done.Screen = kind
	done.Duration = time.Since(started)
	done.Err = err
	if r.Hooks.OnStepDone != nil {
		r.Hooks.OnStepDone(ctx, &done)
	}
	if err != nil {
		return err
	}
	sess.Logf("%s -> %s", text, kind)
	r.Logger.Debug("Step done", "step", text, "screen", kind, "duration", done.Duration)
	return nil
}

func (r *Runner) evaluate(ctx context.Context, sess *session.Session, exp workflow.Expectation, text string) error {
	passed, err := exp.Evaluate(ctx, sess)
	if err == nil && !passed {
		err = domain.ErrExpectationFailed
	}
	if r.Hooks.OnExpectation != nil {
		r.Hooks.OnExpectation(ctx, &domain.ExpectationEvent{
			EventBase:       r.event(ctx, domain.EventExpectation),
			ExpectationType: exp.Type(),
			Text:            text,
			Passed:          passed && err == nil,
			Err:             err,
		})
	}
	if err != nil {
		status := "failed"
		if !errors.Is(err, domain.ErrExpectationFailed) {
			status = "error"
		}
		sess.Logf("%s [%s]", text, status)
		return &domain.ExpectationError{Expectation: text, Err: err}
	}
	sess.Logf("%s [passed]", text)
	return nil
}

func (r *Runner) event(ctx context.Context, t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, RunID: RunID(ctx)}
}
