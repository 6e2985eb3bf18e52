// Package receipt waits for transaction receipts with a bounded, fixed-interval poll.
//
// An absent receipt is retried until the attempt budget is spent and then reported as
// ErrAttemptsExhausted: the transaction may still confirm later, so the outcome is unknown
// rather than failed. A failing lookup is a different class of error, wrapped in
// ErrReceiptQuery, and ends the poll at once.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/logger"
	"github.com/gabapcia/tolclient/internal/pkg/resilience/retry"
)

const (
	// DefaultAttempts is the attempt budget of a poll.
	DefaultAttempts = 40

	// DefaultDelay is the wait between attempts, one block time.
	DefaultDelay = 15 * time.Second
)

var (
	// ErrReceiptQuery wraps a lookup that failed at the transport or protocol level.
	ErrReceiptQuery = errors.New("receipt query failed")

	// ErrAttemptsExhausted is returned when the receipt did not appear within the attempt budget.
	ErrAttemptsExhausted = errors.New("receipt attempts exhausted")

	// errPending marks an attempt that found no receipt yet. It is the only retried error.
	errPending = errors.New("receipt pending")
)

// Fetcher looks up the receipt of a transaction. found is false while the transaction is
// not yet in a block.
type Fetcher interface {
	TransactionReceipt(ctx context.Context, hash string) (receipt chain.Receipt, found bool, err error)
}

type config struct {
	attempts uint
	delay    time.Duration
}

// Option configures a Poller.
type Option func(*config)

// WithAttempts sets the attempt budget. Values below one are raised to one.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = max(n, 1)
	}
}

// WithDelay sets the wait between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// Poller waits for receipts.
type Poller struct {
	fetcher Fetcher
	cfg     config
	retry   retry.Retry
}

// New creates a Poller using fetcher for lookups.
func New(fetcher Fetcher, opts ...Option) *Poller {
	cfg := config{
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Poller{
		fetcher: fetcher,
		cfg:     cfg,
		retry: retry.New(
			retry.WithAttempts(cfg.attempts),
			retry.WithDelay(cfg.delay),
			retry.WithFixedDelay(),
			retry.WithRetryIf(func(err error) bool { return errors.Is(err, errPending) }),
		),
	}
}

// WaitForReceipt polls for the receipt of hash. It returns as soon as the receipt is found,
// after at most the configured number of attempts otherwise.
func (p *Poller) WaitForReceipt(ctx context.Context, hash string) (chain.Receipt, error) {
	state := newPollState(hash)

	var receipt chain.Receipt
	err := p.retry.Execute(ctx, func() error {
		state.recordAttempt()

		r, found, err := p.fetcher.TransactionReceipt(ctx, hash)
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrReceiptQuery, hash, err)
			state.recordAttemptFailure(err)
			return err
		}

		if !found {
			state.recordAttemptFailure(errPending)
			return errPending
		}

		receipt = r
		return nil
	})

	switch {
	case err == nil:
		state.finalizeWithSuccess()
	case errors.Is(err, errPending):
		err = fmt.Errorf("%w: %s after %d attempts", ErrAttemptsExhausted, hash, state.attempts)
		state.finalizeWithFailure(err)
	default:
		state.finalizeWithFailure(err)
	}

	instruments.attempts.Record(ctx, int64(state.attempts))
	logger.Debug(ctx, "receipt poll finished",
		"poll.id", state.id,
		"tx.hash", hash,
		"poll.attempts", state.attempts,
		"poll.duration", state.elapsed(),
		"error", state.lastError,
	)

	return receipt, err
}
