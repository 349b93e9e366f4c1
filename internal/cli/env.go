package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/apptrail/internal/adapters/file"
	"github.com/aretw0/apptrail/internal/config"
	"github.com/aretw0/apptrail/internal/logging"
	"github.com/aretw0/apptrail/pkg/adapters/memory"
	"github.com/aretw0/apptrail/pkg/adapters/mockapp"
	"github.com/aretw0/apptrail/pkg/adapters/redis"
	"github.com/aretw0/apptrail/pkg/adapters/sqlite"
	"github.com/aretw0/apptrail/pkg/discovery"
	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/observability"
	"github.com/aretw0/apptrail/pkg/persistence/middleware"
	"github.com/aretw0/apptrail/pkg/ports"
	"github.com/aretw0/apptrail/pkg/runner"
	"github.com/aretw0/apptrail/pkg/session"

	httpAdapter "github.com/aretw0/apptrail/pkg/adapters/http"
)

// Env bundles what every command derives from the profile.
type Env struct {
	Profile *config.Profile
	Logger  *slog.Logger

	// Hooks are merged into every runner built by the Env.
	Hooks domain.LifecycleHooks

	store  ports.WorkflowStore
	locker ports.DistributedLocker
	closer func() error
}

// Setup loads the profile at path (or the default profile) and the logger.
func Setup(path string, debug bool, logFormat string) (*Env, error) {
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return nil, err
	}
	p, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(debug, format)
	return &Env{
		Profile: p,
		Logger:  logger,
		Hooks:   observability.LogHooks(logger),
	}, nil
}

// Store opens the configured workflow store once and returns it on later calls.
// A redis store also provides the distributed locker.
func (e *Env) Store(ctx context.Context) (ports.WorkflowStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	s := e.Profile.Store
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Backend {
	case config.StoreMemory:
		e.store = memory.NewStore()
	case config.StoreFile:
		e.store = file.New(s.DSN)
	case config.StoreRedis:
		rs, err := redis.NewFromURL(s.DSN)
		if err != nil {
			return nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("redis store: %w", err)
		}
		e.store, e.closer = rs, rs.Close
		e.locker = redis.NewLocker(rs.Client(), redis.DefaultPrefix)
	case config.StoreSQLite:
		dsn := s.DSN
		if dsn == "" {
			dsn = "apptrail.db"
		}
		ss, err := sqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		e.store, e.closer = ss, ss.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", s.Backend)
	}

	var mws []middleware.Middleware
	if len(s.Mask) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(s.Mask))
	}
	if s.Key != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: s.Key}))
	}
	e.store = middleware.Chain(e.store, mws...)
	e.Logger.Debug("Workflow store ready", "backend", s.Backend, "masked", len(s.Mask), "encrypted", s.Key != nil)
	return e.store, nil
}

// Close releases the store connection, if any.
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// Channel connects to the profile's server, or serves the mock application
// defined in mockFile in-process when it is not empty.
func (e *Env) Channel(mockFile string) (ports.Channel, string, error) {
	if mockFile != "" {
		def, err := mockapp.LoadFile(mockFile)
		if err != nil {
			return nil, "", err
		}
		e.fillMockIdentity(def)
		return mockapp.New(def), "mock://" + def.AppID, nil
	}
	if err := e.Profile.Validate(); err != nil {
		return nil, "", err
	}
	auth, err := e.Profile.Authenticator()
	if err != nil {
		return nil, "", err
	}
	opts := []httpAdapter.Option{httpAdapter.WithLogger(e.Logger)}
	if auth != nil {
		opts = append(opts, httpAdapter.WithAuth(auth))
	}
	return httpAdapter.NewChannel(e.Profile.Server, opts...), e.Profile.Server, nil
}

func (e *Env) fillMockIdentity(def *mockapp.Definition) {
	cfg := &e.Profile.Session
	if cfg.Domain == "" {
		cfg.Domain = def.Domain
	}
	if cfg.AppID == "" {
		cfg.AppID = def.AppID
	}
	if cfg.Username == "" {
		cfg.Username = "web@" + cfg.Domain
	}
}

// Session starts a session on ch for the profile's user.
func (e *Env) Session(ch ports.Channel) *session.Session {
	return session.New(ch, e.Profile.Session)
}

// Runner builds a runner from the profile. The locker is used when the
// store provided one.
func (e *Env) Runner(opts ...runner.Option) *runner.Runner {
	base := []runner.Option{
		runner.WithLogger(e.Logger),
		runner.WithHooks(e.Hooks),
		runner.WithFormPolicy(e.Profile.Policy()),
		runner.WithSync(e.Profile.Sync),
		runner.WithLockTTL(e.Profile.LockTTL),
	}
	if e.locker != nil {
		base = append(base, runner.WithLocker(e.locker))
	}
	return runner.New(append(base, opts...)...)
}

// Discovery builds a discovery engine from the profile.
func (e *Env) Discovery(r *runner.Runner) *discovery.Engine {
	return discovery.New(
		discovery.WithRunner(r),
		discovery.WithLogger(e.Logger),
		discovery.WithParallelism(e.Profile.Discovery.Parallelism),
		discovery.WithMaxDepth(e.Profile.Discovery.MaxDepth),
	)
}
