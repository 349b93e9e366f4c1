package runner

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/apptrail/pkg/domain"
	"github.com/aretw0/apptrail/pkg/ports"
)

// FormPolicy decides which form-scoped steps are sent.
type FormPolicy string

const (
	// FormsFull answers and submits forms.
	FormsFull FormPolicy = "full"
	// FormsNoSubmit answers questions but never submits.
	FormsNoSubmit FormPolicy = "no_submit"
	// FormsIgnore skips every entry of a form.
	FormsIgnore FormPolicy = "ignore"
)

// ParseFormPolicy parses a policy name; the empty string means FormsFull.
func ParseFormPolicy(s string) (FormPolicy, error) {
	switch p := FormPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return FormsFull, nil
	case FormsFull, FormsNoSubmit, FormsIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown form policy %q (want full, no_submit or ignore)", s)
	}
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithHooks registers lifecycle callbacks. Repeated calls are merged.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(r *Runner) {
		r.Hooks = r.Hooks.Merge(hooks)
	}
}

// WithFormPolicy configures how form steps are handled.
func WithFormPolicy(p FormPolicy) Option {
	return func(r *Runner) {
		r.FormPolicy = p
	}
}

// WithSync requests a data sync before the application is opened.
func WithSync(sync bool) Option {
	return func(r *Runner) {
		r.Sync = sync
	}
}

// WithLocker serializes runs of the same remote user across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(r *Runner) {
		r.locker = locker
	}
}

// WithLockTTL bounds how long a distributed lock outlives a crashed run.
func WithLockTTL(ttl time.Duration) Option {
	return func(r *Runner) {
		r.lockTTL = ttl
	}
}
