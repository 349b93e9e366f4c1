package apptrail

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/discovery"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/dsl"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"
	"github.com/aretw0/apptrail/pkg/workflow"
)

// Client is the high-level entry point of the library.
// It runs and discovers workflows against one remote application.
type Client struct {
	channel ports.Channel
	cfg     session.Config
	logger  *slog.Logger

	runnerOpts    []runner.Option
	discoveryOpts []discovery.Option

	runner    *runner.Runner
	discovery *discovery.Engine
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHooks registers observability hooks for every run.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Client) {
		c.runnerOpts = append(c.runnerOpts, runner.WithHooks(hooks))
	}
}

// WithFormPolicy controls whether form answers and submissions are sent.
func WithFormPolicy(p runner.FormPolicy) Option {
	return func(c *Client) {
		c.runnerOpts = append(c.runnerOpts, runner.WithFormPolicy(p))
	}
}

// WithLocker serializes runs of the same user across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(c *Client) {
		c.runnerOpts = append(c.runnerOpts, runner.WithLocker(locker))
		if ttl > 0 {
			c.runnerOpts = append(c.runnerOpts, runner.WithLockTTL(ttl))
		}
	}
}

// WithSync syncs user data before each run opens the application.
func WithSync(sync bool) Option {
	return func(c *Client) {
		c.runnerOpts = append(c.runnerOpts, runner.WithSync(sync))
	}
}

// WithSessionConfig sets the domain, application and user of new sessions.
func WithSessionConfig(cfg session.Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithDiscoveryParallelism bounds concurrent exploration during Discover.
func WithDiscoveryParallelism(n int) Option {
	return func(c *Client) {
		c.discoveryOpts = append(c.discoveryOpts, discovery.WithParallelism(n))
	}
}

// WithMaxDepth bounds the length of discovered workflows.
func WithMaxDepth(depth int) Option {
	return func(c *Client) {
		c.discoveryOpts = append(c.discoveryOpts, discovery.WithMaxDepth(depth))
	}
}

// New creates a Client that talks to the application behind ch.
func New(ch ports.Channel, opts ...Option) *Client {
	c := &Client{
		channel: ch,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.runner = runner.New(append([]runner.Option{runner.WithLogger(c.logger)}, c.runnerOpts...)...)
	c.discovery = discovery.New(append([]discovery.Option{
		discovery.WithRunner(c.runner),
		discovery.WithLogger(c.logger),
	}, c.discoveryOpts...)...)
	return c
}

// NewSession starts a fresh session for the configured user.
func (c *Client) NewSession() *session.Session {
	return session.New(c.channel, c.cfg)
}

// Run executes wf in a fresh session and returns it so the caller can
// inspect the log and the final screen.
func (c *Client) Run(ctx context.Context, wf workflow.Workflow) (*session.Session, error) {
	sess := c.NewSession()
	return sess, c.runner.Run(ctx, sess, wf)
}

// RunText parses a workflow in its text form and runs it.
func (c *Client) RunText(ctx context.Context, text string) (*session.Session, error) {
	wf, err := dsl.ParseString(text)
	if err != nil {
		return nil, err
	}
	return c.Run(ctx, wf)
}

// Discover explores the application and returns one workflow per path from
// the root menu to a leaf screen.
func (c *Client) Discover(ctx context.Context) ([]workflow.Workflow, error) {
	return c.discovery.Discover(ctx, c.NewSession())
}
