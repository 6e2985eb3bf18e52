// Package stream provides lazy, cancellable, ordered sequences with push-based consumption.
//
// A Stream does nothing until it is run. Run drives it on the calling goroutine and is what
// operators build on; Subscribe drives it in the background through a bounded buffer, so a
// slow consumer holds the producer back instead of growing memory.
package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gabapcia/tolclient/internal/pkg/x/chflow"
)

// DefaultBufferSize is the number of items a subscription buffers between its producer
// and its consumer.
const DefaultBufferSize = 64

// Stream is a lazy sequence of T.
//
// The producer calls emit once per item, in order. emit returns false when the consumer
// wants no more items; the producer must then return nil without emitting again.
type Stream[T any] struct {
	run func(ctx context.Context, emit func(T) bool) error
}

// New creates a Stream from a producer function.
func New[T any](run func(ctx context.Context, emit func(T) bool) error) Stream[T] {
	return Stream[T]{run: run}
}

// Run drives the stream on the calling goroutine until it ends, emit returns false, or the
// producer fails.
func (s Stream[T]) Run(ctx context.Context, emit func(T) bool) error {
	if s.run == nil {
		return nil
	}
	return s.run(ctx, emit)
}

// Collect runs a finite stream to completion and returns every item.
func (s Stream[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	err := s.Run(ctx, func(item T) bool {
		items = append(items, item)
		return true
	})
	return items, err
}

type config struct {
	bufferSize int
}

// Option configures a subscription.
type Option func(*config)

// WithBufferSize sets how many items may wait for the consumer. Values below one are
// raised to one.
func WithBufferSize(n int) Option {
	return func(c *config) {
		c.bufferSize = max(n, 1)
	}
}

// Subscription is a running stream.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex // held while onNext runs
	cancelled atomic.Bool

	err error // written before done is closed
}

// Subscribe runs s in the background and calls onNext for every item, in order, on a single
// goroutine. The subscription ends when the stream completes, fails, ctx is done, or Cancel
// is called.
//
// onNext must not call Cancel. To stop from inside onNext, cancel ctx instead.
func (s Stream[T]) Subscribe(ctx context.Context, onNext func(T), opts ...Option) *Subscription {
	cfg := config{
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	buffer := make(chan T, cfg.bufferSize)
	produced := make(chan error, 1)

	go func() {
		defer close(buffer)
		produced <- s.Run(ctx, func(item T) bool {
			return chflow.Send(ctx, buffer, item) && ctx.Err() == nil
		})
	}()

	go func() {
		defer close(sub.done)
		defer cancel()

		for item := range buffer {
			if !deliver(ctx, sub, onNext, item) {
				cancel()
				chflow.Drain(buffer)
				break
			}
		}

		err := <-produced
		if isCancellation(ctx, err) {
			err = nil
		}
		sub.err = err
	}()

	return sub
}

// deliver hands item to onNext unless sub was cancelled. The flag is checked again under
// the lock because Cancel may have been requested while waiting for it.
func deliver[T any](ctx context.Context, sub *Subscription, onNext func(T), item T) bool {
	if sub.cancelled.Load() || ctx.Err() != nil {
		return false
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.cancelled.Load() || ctx.Err() != nil {
		return false
	}

	onNext(item)
	return true
}

// Cancel stops the subscription. Once Cancel returns, onNext is not called again. It waits
// for an onNext call in progress to return, but not for the producer to wind down; use
// Wait or Done for that. Cancel is idempotent.
func (s *Subscription) Cancel() {
	s.cancelled.Store(true)
	s.cancel()

	// Wait for an onNext call in progress.
	s.mu.Lock()
	defer s.mu.Unlock()
}

// Done is closed once the producer has returned and no more items will be delivered.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the error that terminated the stream, or nil while it is still running, after
// it completed, or after it was cancelled.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Wait blocks until the subscription is done and returns Err.
func (s *Subscription) Wait() error {
	<-s.done
	return s.err
}

// isCancellation reports whether err only reflects that ctx ended.
func isCancellation(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
