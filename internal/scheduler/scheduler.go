// Package scheduler runs periodic tasks for the polling engine.
//
// A Scheduler is created once per client, passed explicitly to whatever needs to poll, and
// shut down with the client. Every scheduled task gets its own goroutine and ticker, so a
// slow task never delays another one, and a task never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/tolclient/internal/pkg/logger"
)

var (
	// ErrSchedulerClosed is returned when scheduling on a scheduler that was shut down.
	ErrSchedulerClosed = errors.New("scheduler is shut down")

	// ErrInvalidInterval is returned for a non-positive interval.
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Task is a unit of periodic work. ctx is cancelled when the task is unscheduled or the
// scheduler shuts down.
type Task func(ctx context.Context)

// CancelFunc unschedules a task. It is idempotent and does not wait for a running
// invocation to return.
type CancelFunc func()

// Scheduler drives periodic tasks until it is shut down.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[uint64]string // names of the scheduled tasks
	nextID uint64
	closed bool
}

// New creates a running Scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[uint64]string),
	}
}

// Schedule runs task immediately and then once per interval until the returned CancelFunc
// is called or the scheduler shuts down. name only labels the task in logs.
func (s *Scheduler) Schedule(name string, interval time.Duration, task Task) (CancelFunc, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, interval)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	id := s.nextID
	s.nextID++
	s.tasks[id] = name
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(ctx, id, name, interval, task)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			s.remove(id)
		})
	}, nil
}

// Active returns the number of scheduled tasks.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Shutdown stops every task and waits for running invocations to return, or for ctx to
// be done. Scheduling after Shutdown fails with ErrSchedulerClosed.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	active := len(s.tasks)
	s.mu.Unlock()

	logger.Debug(ctx, "shutting down scheduler", "tasks.active", active)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled tasks: %w", ctx.Err())
	}
}

func (s *Scheduler) remove(id uint64) {
	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()
}

func (s *Scheduler) loop(ctx context.Context, id uint64, name string, interval time.Duration, task Task) {
	defer s.wg.Done()
	defer s.remove(id)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx, name, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.run(ctx, name, task)
		}
	}
}

// run invokes task, containing a panic to the task that raised it.
func (s *Scheduler) run(ctx context.Context, name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "scheduled task panicked",
				"task.name", name,
				"panic", r,
			)
		}
	}()

	task(ctx)
}
