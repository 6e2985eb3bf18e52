// Package filter turns "what is new since the last poll" RPC semantics into push delivery.
//
// A Filter owns one node-side or client-synthesized filter: it installs it, polls it on a
// scheduler, drops re-delivered items, hands every new item to a sink in arrival order,
// and uninstalls it on cancellation.
package filter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabapcia/tolclient/internal/pkg/logger"
	"github.com/gabapcia/tolclient/internal/pkg/types"
	"github.com/gabapcia/tolclient/internal/scheduler"
)

// defaultUninstallTimeout bounds the best-effort uninstall issued by Cancel.
const defaultUninstallTimeout = 5 * time.Second

var (
	// ErrNotInstalled is returned by Poll before a successful Install.
	ErrNotInstalled = errors.New("filter is not installed")

	// ErrCancelled is returned when installing or running a cancelled filter.
	ErrCancelled = errors.New("filter is cancelled")
)

// InstallError reports that the node (or the synthesized backend) could not allocate the filter.
type InstallError struct {
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install filter: %v", e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// Backend is the RPC surface of one filter kind.
type Backend[T any] interface {
	// Install allocates a filter and returns its identity.
	Install(ctx context.Context) (string, error)

	// Changes returns the items observed since the previous call for id, in order.
	Changes(ctx context.Context, id string) ([]T, error)

	// Uninstall releases the filter. The boolean reports whether it still existed.
	Uninstall(ctx context.Context, id string) (bool, error)
}

type config struct {
	name             string
	onError          func(error)
	uninstallTimeout time.Duration
}

// Option configures a Filter.
type Option func(*config)

// WithName labels the filter in logs and metrics.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithErrorHandler registers fn to receive the error that terminates a running filter.
// It is called at most once, never while the sink runs.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithUninstallTimeout bounds the uninstall call issued by Cancel.
func WithUninstallTimeout(d time.Duration) Option {
	return func(c *config) {
		c.uninstallTimeout = d
	}
}

// Filter polls a Backend and pushes new items to a sink.
//
// Poll is single-flight. The sink is never invoked concurrently with itself and never after
// Cancel has returned. The sink must not call Cancel.
type Filter[T any] struct {
	backend Backend[T]
	key     func(T) string
	sink    func(T)
	cfg     config

	// pollMu serializes Install and Poll.
	pollMu   sync.Mutex
	previous types.Set[string] // keys delivered by the last non-empty batch

	// cancelled is set before Cancel waits for deliverMu, so items still queued in a batch
	// are dropped as soon as cancellation is requested.
	cancelled atomic.Bool

	// deliverMu guards the delivery state and is held while the sink runs.
	deliverMu sync.Mutex
	id        string
	installed bool
	cursor    T
	hasCursor bool

	stopMu  sync.Mutex
	stop    scheduler.CancelFunc
	stopped bool

	failOnce sync.Once
}

// New creates a Filter over backend. key identifies an item for re-delivery suppression;
// sink receives every new item.
func New[T any](backend Backend[T], key func(T) string, sink func(T), opts ...Option) *Filter[T] {
	cfg := config{
		name:             "filter",
		onError:          func(error) {},
		uninstallTimeout: defaultUninstallTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Filter[T]{
		backend:  backend,
		key:      key,
		sink:     sink,
		cfg:      cfg,
		previous: types.NewSet[string](),
	}
}

// ID returns the filter identity, empty until installed.
func (f *Filter[T]) ID() string {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()
	return f.id
}

// Cursor returns the last delivered item.
func (f *Filter[T]) Cursor() (T, bool) {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()
	return f.cursor, f.hasCursor
}

// Install allocates the filter on the backend. Installing twice is a no-op.
func (f *Filter[T]) Install(ctx context.Context) error {
	f.pollMu.Lock()
	defer f.pollMu.Unlock()

	f.deliverMu.Lock()
	installed := f.installed
	f.deliverMu.Unlock()

	switch {
	case f.cancelled.Load():
		return ErrCancelled
	case installed:
		return nil
	}

	id, err := f.backend.Install(ctx)
	if err != nil {
		return &InstallError{Err: err}
	}

	f.deliverMu.Lock()
	if f.cancelled.Load() {
		f.deliverMu.Unlock()
		f.uninstall(ctx, id)
		return ErrCancelled
	}
	f.id, f.installed = id, true
	f.deliverMu.Unlock()

	logger.Debug(ctx, "filter installed",
		"filter.name", f.cfg.name,
		"filter.id", id,
	)
	return nil
}

// Poll fetches the changes since the previous poll and delivers the new ones in order.
// Items whose key was delivered by the previous batch are dropped. A cancelled filter
// polls nothing and returns nil.
func (f *Filter[T]) Poll(ctx context.Context) error {
	f.pollMu.Lock()
	defer f.pollMu.Unlock()

	if f.cancelled.Load() {
		return nil
	}

	f.deliverMu.Lock()
	id, installed := f.id, f.installed
	f.deliverMu.Unlock()

	if !installed {
		return ErrNotInstalled
	}

	items, err := f.backend.Changes(ctx, id)
	instruments.recordPoll(ctx, f.cfg.name, len(items), err)
	if err != nil {
		return fmt.Errorf("poll filter %s: %w", id, err)
	}

	if len(items) == 0 {
		return nil
	}

	current := types.NewSet[string]()
	for _, item := range items {
		if f.cancelled.Load() {
			return nil
		}

		k := f.key(item)
		if f.previous.Contains(k) || current.Contains(k) {
			continue
		}
		current.Add(k)

		if !f.deliver(item) {
			break
		}
	}

	f.previous = current
	return nil
}

// deliver hands item to the sink unless the filter was cancelled.
func (f *Filter[T]) deliver(item T) bool {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	if f.cancelled.Load() {
		return false
	}

	f.sink(item)
	f.cursor, f.hasCursor = item, true
	return true
}

// Run installs the filter and schedules Poll every interval on s. An install error is
// returned without scheduling anything. Later poll errors stop the schedule and go to the
// error handler.
func (f *Filter[T]) Run(ctx context.Context, s *scheduler.Scheduler, interval time.Duration) error {
	if err := f.Install(ctx); err != nil {
		return err
	}

	cancel, err := s.Schedule(f.cfg.name, interval, f.tick)
	if err != nil {
		return err
	}

	f.stopMu.Lock()
	defer f.stopMu.Unlock()

	// Cancelled, or failed on the first poll, before the schedule was recorded.
	if f.stopped {
		cancel()
		return nil
	}
	f.stop = cancel
	return nil
}

func (f *Filter[T]) tick(ctx context.Context) {
	err := f.Poll(ctx)
	if err == nil || ctx.Err() != nil {
		return
	}

	f.failOnce.Do(func() {
		f.unschedule()

		logger.Warn(ctx, "filter poll failed",
			"filter.name", f.cfg.name,
			"filter.id", f.ID(),
			"error", err,
		)
		f.cfg.onError(err)
	})
}

func (f *Filter[T]) unschedule() {
	f.stopMu.Lock()
	f.stopped = true
	stop := f.stop
	f.stopMu.Unlock()

	if stop != nil {
		stop()
	}
}

// Cancel stops polling, waits for an in-flight delivery to finish, and uninstalls the
// filter on a best-effort basis. Uninstall failures are logged, never returned. Cancel is
// idempotent.
func (f *Filter[T]) Cancel(ctx context.Context) {
	if f.cancelled.Swap(true) {
		return
	}

	f.deliverMu.Lock()
	id, installed := f.id, f.installed
	f.deliverMu.Unlock()

	f.unschedule()

	if installed {
		f.uninstall(ctx, id)
	}
}

func (f *Filter[T]) uninstall(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.uninstallTimeout)
	defer cancel()

	existed, err := f.backend.Uninstall(ctx, id)
	if err != nil {
		logger.Warn(ctx, "failed to uninstall filter",
			"filter.name", f.cfg.name,
			"filter.id", id,
			"error", err,
		)
		return
	}

	logger.Debug(ctx, "filter uninstalled",
		"filter.name", f.cfg.name,
		"filter.id", id,
		"filter.existed", existed,
	)
}
