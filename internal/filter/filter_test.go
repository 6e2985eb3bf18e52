package filter

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabapcia/tolclient/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays one batch per Changes call and returns an empty batch afterwards.
type scriptedBackend struct {
	mu           sync.Mutex
	installErr   error
	batches      [][]string
	changesErr   error
	changesHook  func()
	uninstallErr error
	uninstalled  []string
	calls        int
}

func (b *scriptedBackend) Install(context.Context) (string, error) {
	if b.installErr != nil {
		return "", b.installErr
	}
	return "0xf1", nil
}

func (b *scriptedBackend) Changes(context.Context, string) ([]string, error) {
	if b.changesHook != nil {
		b.changesHook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	if b.changesErr != nil {
		return nil, b.changesErr
	}
	if len(b.batches) == 0 {
		return nil, nil
	}

	batch := b.batches[0]
	b.batches = b.batches[1:]
	return batch, nil
}

func (b *scriptedBackend) Uninstall(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.uninstalled = append(b.uninstalled, id)
	return b.uninstallErr == nil, b.uninstallErr
}

func (b *scriptedBackend) uninstalledIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uninstalled...)
}

type collector struct {
	mu    sync.Mutex
	items []string
}

func (c *collector) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, s)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.items...)
}

func identity(s string) string { return s }

func TestFilter_Poll(t *testing.T) {
	t.Run("delivers a batch in order and keeps the cursor on an empty poll", func(t *testing.T) {
		backend := &scriptedBackend{batches: [][]string{{"X", "Y", "Z"}}}
		sink := &collector{}
		f := New[string](backend, identity, sink.add)

		require.NoError(t, f.Install(t.Context()))
		require.NoError(t, f.Poll(t.Context()))
		require.NoError(t, f.Poll(t.Context()))

		assert.Equal(t, []string{"X", "Y", "Z"}, sink.snapshot())

		cursor, ok := f.Cursor()
		require.True(t, ok)
		assert.Equal(t, "Z", cursor)
	})

	t.Run("drops items re-delivered by the next batch", func(t *testing.T) {
		backend := &scriptedBackend{batches: [][]string{{"A", "B"}, {"B", "C"}}}
		sink := &collector{}
		f := New[string](backend, identity, sink.add)

		require.NoError(t, f.Install(t.Context()))
		require.NoError(t, f.Poll(t.Context()))
		require.NoError(t, f.Poll(t.Context()))

		assert.Equal(t, []string{"A", "B", "C"}, sink.snapshot())
	})

	t.Run("requires an installed filter", func(t *testing.T) {
		f := New[string](&scriptedBackend{}, identity, func(string) {})

		assert.ErrorIs(t, f.Poll(t.Context()), ErrNotInstalled)
	})

	t.Run("wraps backend errors", func(t *testing.T) {
		backend := &scriptedBackend{changesErr: assert.AnError}
		f := New[string](backend, identity, func(string) {})

		require.NoError(t, f.Install(t.Context()))
		assert.ErrorIs(t, f.Poll(t.Context()), assert.AnError)
	})
}

func TestFilter_Install(t *testing.T) {
	t.Run("reports an install error", func(t *testing.T) {
		backend := &scriptedBackend{installErr: assert.AnError}
		f := New[string](backend, identity, func(string) {})

		err := f.Install(t.Context())

		var installErr *InstallError
		require.ErrorAs(t, err, &installErr)
		assert.ErrorIs(t, err, assert.AnError)
		assert.Empty(t, f.ID())
	})

	t.Run("records the filter id", func(t *testing.T) {
		f := New[string](&scriptedBackend{}, identity, func(string) {})

		require.NoError(t, f.Install(t.Context()))
		assert.Equal(t, "0xf1", f.ID())
	})

	t.Run("refuses a cancelled filter", func(t *testing.T) {
		f := New[string](&scriptedBackend{}, identity, func(string) {})
		f.Cancel(t.Context())

		assert.ErrorIs(t, f.Install(t.Context()), ErrCancelled)
	})
}

func TestFilter_Run(t *testing.T) {
	t.Run("install error is returned without scheduling", func(t *testing.T) {
		s := scheduler.New()
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

		backend := &scriptedBackend{installErr: assert.AnError}
		f := New[string](backend, identity, func(string) {})

		var installErr *InstallError
		require.ErrorAs(t, f.Run(t.Context(), s, time.Millisecond), &installErr)
		assert.Zero(t, s.Active())
	})

	t.Run("polls on the schedule", func(t *testing.T) {
		s := scheduler.New()
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

		backend := &scriptedBackend{batches: [][]string{{"1"}, {"2"}, {"3"}}}
		sink := &collector{}
		f := New[string](backend, identity, sink.add)

		require.NoError(t, f.Run(t.Context(), s, 5*time.Millisecond))
		t.Cleanup(func() { f.Cancel(context.Background()) })

		assert.Eventually(t, func() bool {
			return len(sink.snapshot()) == 3
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"1", "2", "3"}, sink.snapshot())
	})

	t.Run("a poll error stops the filter and is reported once", func(t *testing.T) {
		s := scheduler.New()
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

		backend := &scriptedBackend{changesErr: assert.AnError}
		errs := make(chan error, 4)
		f := New[string](backend, identity, func(string) {},
			WithErrorHandler(func(err error) { errs <- err }),
		)

		require.NoError(t, f.Run(t.Context(), s, 2*time.Millisecond))

		select {
		case err := <-errs:
			assert.ErrorIs(t, err, assert.AnError)
		case <-time.After(time.Second):
			t.Fatal("poll error was not reported")
		}

		assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, 2*time.Millisecond)
		assert.Empty(t, errs)
	})
}

func TestFilter_Cancel(t *testing.T) {
	t.Run("uninstalls the filter once", func(t *testing.T) {
		backend := &scriptedBackend{}
		f := New[string](backend, identity, func(string) {})
		require.NoError(t, f.Install(t.Context()))

		f.Cancel(t.Context())
		f.Cancel(t.Context())

		assert.Equal(t, []string{"0xf1"}, backend.uninstalledIDs())
	})

	t.Run("swallows uninstall errors", func(t *testing.T) {
		backend := &scriptedBackend{uninstallErr: errors.New("filter not found")}
		f := New[string](backend, identity, func(string) {})
		require.NoError(t, f.Install(t.Context()))

		assert.NotPanics(t, func() { f.Cancel(t.Context()) })
		assert.Len(t, backend.uninstalledIDs(), 1)
	})

	t.Run("skips uninstall when never installed", func(t *testing.T) {
		backend := &scriptedBackend{}
		f := New[string](backend, identity, func(string) {})

		f.Cancel(t.Context())

		assert.Empty(t, backend.uninstalledIDs())
	})

	t.Run("nothing is delivered after cancel returns", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{})

		backend := &scriptedBackend{batches: [][]string{{"late"}}}
		backend.changesHook = func() {
			close(entered)
			<-release
		}

		sink := &collector{}
		f := New[string](backend, identity, sink.add)
		require.NoError(t, f.Install(t.Context()))

		done := make(chan error, 1)
		go func() { done <- f.Poll(t.Context()) }()

		<-entered
		f.Cancel(t.Context())
		close(release)

		require.NoError(t, <-done)
		assert.Empty(t, sink.snapshot())
	})

	t.Run("the rest of an in-flight batch is dropped once cancel is requested", func(t *testing.T) {
		batch := make([]string, 1000)
		for i := range batch {
			batch[i] = strconv.Itoa(i)
		}
		backend := &scriptedBackend{batches: [][]string{batch}}

		entered := make(chan struct{})
		release := make(chan struct{})
		var (
			requested atomic.Bool
			late      atomic.Int64
		)
		f := New[string](backend, identity, func(item string) {
			if requested.Load() {
				late.Add(1)
			}
			if item == "0" {
				close(entered)
				<-release
			}
		})
		require.NoError(t, f.Install(t.Context()))

		done := make(chan error, 1)
		go func() { done <- f.Poll(t.Context()) }()

		<-entered
		requested.Store(true)
		go func() {
			time.Sleep(10 * time.Millisecond)
			close(release)
		}()
		f.Cancel(t.Context())

		require.NoError(t, <-done)
		assert.Zero(t, late.Load())
		assert.Equal(t, []string{"0xf1"}, backend.uninstalledIDs())
	})

	t.Run("a running filter stops polling", func(t *testing.T) {
		s := scheduler.New()
		t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

		f := New[string](&scriptedBackend{}, identity, func(string) {})
		require.NoError(t, f.Run(t.Context(), s, time.Millisecond))

		f.Cancel(t.Context())

		assert.Eventually(t, func() bool { return s.Active() == 0 }, time.Second, time.Millisecond)
	})
}
