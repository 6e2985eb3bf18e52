// Package retry provides a configurable retry mechanism for operations that may fail temporarily.
// It wraps the retry-go package from Avast and exposes a small interface with functional
// options for customizing retry behavior.
//
// Exponential backoff is the default strategy. Bounded pollers that must wait a constant
// interval between attempts switch to a fixed delay with WithFixedDelay, and restrict which
// failures are retried with WithRetryIf:
//
//	r := retry.New(
//	    retry.WithAttempts(40),
//	    retry.WithDelay(15*time.Second),
//	    retry.WithFixedDelay(),
//	    retry.WithRetryIf(func(err error) bool { return errors.Is(err, errPending) }),
//	)
package retry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Retry defines the interface for retry operations.
type Retry interface {
	// Execute runs the given function with the configured retry logic.
	//
	// The operation is attempted immediately. If it fails with an error accepted by the
	// retry predicate, it is attempted again after the configured delay until it succeeds,
	// the attempt budget is spent, or ctx is done. Errors rejected by the predicate stop
	// the loop at once.
	//
	// With the default last-error-only mode the returned error is the error of the final
	// attempt (or the context error when ctx ends the loop).
	Execute(ctx context.Context, operation func() error) error
}

// config holds internal settings for the retry mechanism.
type config struct {
	attempts    uint                          // maximum number of attempts, at least 1
	delay       time.Duration                 // base delay between attempts
	maxDelay    time.Duration                 // cap on the delay between attempts
	fixedDelay  bool                          // constant delay instead of exponential backoff
	lastErrOnly bool                          // whether to return only the last error
	retryIf     func(error) bool              // decides whether an error is retried
	onRetry     func(attempt uint, err error) // observes every failed, retried attempt
}

// Option defines a functional option for configuring the retry mechanism.
type Option func(*config)

// retrier implements the Retry interface using the retry-go package.
type retrier struct {
	cfg config
}

// Compile-time assertion that retrier implements Retry interface
var _ Retry = (*retrier)(nil)

// New creates and returns a Retry implementation configured with
// the provided options.
//
// Default configuration:
//   - attempts:    3 (1 initial attempt + 2 retries)
//   - delay:       1 second
//   - maxDelay:    5 seconds
//   - delay type:  exponential backoff
//   - lastErrOnly: true
//   - retryIf:     every error is retried
//
// An attempt budget of zero is raised to one; retry-go would read zero as "retry forever".
func New(opts ...Option) Retry {
	cfg := config{
		attempts:    3,
		delay:       1 * time.Second,
		maxDelay:    5 * time.Second,
		lastErrOnly: true,
		retryIf:     retry.IsRecoverable,
		onRetry:     func(uint, error) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.attempts == 0 {
		cfg.attempts = 1
	}

	return &retrier{
		cfg: cfg,
	}
}

// Execute implements the Retry interface.
func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	delayType, maxDelay := retry.BackOffDelay, r.cfg.maxDelay
	if r.cfg.fixedDelay {
		delayType = retry.FixedDelay
		maxDelay = max(maxDelay, r.cfg.delay)
	}

	options := []retry.Option{
		retry.Attempts(r.cfg.attempts),
		retry.Delay(r.cfg.delay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(r.cfg.lastErrOnly),
		retry.RetryIf(r.cfg.retryIf),
		retry.OnRetry(r.cfg.onRetry),
		retry.Context(ctx),
	}

	return retry.Do(operation, options...)
}

// WithAttempts sets the maximum number of attempts (including the initial attempt).
// Default: 3.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the base delay between attempts. With exponential backoff this is the
// delay before the first retry; with a fixed delay it is the delay before every retry.
// Default: 1 second.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the delay between attempts.
// Default: 5 seconds.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithFixedDelay waits exactly the base delay between attempts instead of backing off.
// The max delay never shortens a fixed delay.
func WithFixedDelay() Option {
	return func(c *config) {
		c.fixedDelay = true
	}
}

// WithLastErrorOnly sets whether to return only the last error.
// When false, all errors from all attempts are combined.
// Default: true.
func WithLastErrorOnly(b bool) Option {
	return func(c *config) {
		c.lastErrOnly = b
	}
}

// WithRetryIf restricts retries to errors accepted by fn. Any other error ends the loop
// after the attempt that produced it.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *config) {
		c.retryIf = fn
	}
}

// WithOnRetry registers fn to observe every failed attempt that is going to be retried.
// attempt is zero-based.
func WithOnRetry(fn func(attempt uint, err error)) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}
