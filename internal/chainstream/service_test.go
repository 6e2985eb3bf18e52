package chainstream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/filter"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend[T any] struct {
	mu          sync.Mutex
	installErr  error
	batches     [][]T
	pollErr     error
	installed   int
	uninstalled int
}

func (b *fakeBackend[T]) Install(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.installErr != nil {
		return "", b.installErr
	}
	b.installed++
	return fmt.Sprintf("f%d", b.installed), nil
}

func (b *fakeBackend[T]) Changes(context.Context, string) ([]T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.batches) > 0 {
		batch := b.batches[0]
		b.batches = b.batches[1:]
		return batch, nil
	}
	return nil, b.pollErr
}

func (b *fakeBackend[T]) Uninstall(context.Context, string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.uninstalled++
	return true, nil
}

func (b *fakeBackend[T]) uninstallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.uninstalled
}

type fakeNode struct {
	blocks       *fakeBackend[string]
	blocksFrom   *fakeBackend[chain.Block]
	pending      *fakeBackend[string]
	logs         *fakeBackend[chain.Log]
	byHash       map[string]chain.Block
	transactions map[string]chain.Transaction
	lookupErr    error
}

func (n *fakeNode) BlockFilter() filter.Backend[string] {
	return n.blocks
}

func (n *fakeNode) BlockFilterFrom(uint64) filter.Backend[chain.Block] {
	return n.blocksFrom
}

func (n *fakeNode) PendingTransactionFilter() (filter.Backend[string], error) {
	if n.pending == nil {
		return nil, assert.AnError
	}
	return n.pending, nil
}

func (n *fakeNode) LogFilter(chain.LogQuery) filter.Backend[chain.Log] {
	return n.logs
}

func (n *fakeNode) BlockByHash(_ context.Context, hash string) (chain.Block, bool, error) {
	if n.lookupErr != nil {
		return chain.Block{}, false, n.lookupErr
	}
	block, ok := n.byHash[hash]
	return block, ok, nil
}

func (n *fakeNode) Transaction(_ context.Context, hash string) (chain.Transaction, bool, error) {
	tx, ok := n.transactions[hash]
	return tx, ok, nil
}

func newService(t *testing.T, node Node) *Service {
	t.Helper()

	sched := scheduler.New()
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	return New(node, sched, WithPollInterval(2*time.Millisecond))
}

func collect[T any](t *testing.T, s stream.Stream[T], n int) []T {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	items, err := stream.Take(s, n).Collect(ctx)
	require.NoError(t, err)
	return items
}

func TestService_BlockHashes(t *testing.T) {
	t.Run("emits hashes in arrival order and uninstalls when done", func(t *testing.T) {
		blocks := &fakeBackend[string]{batches: [][]string{{"h1", "h2"}, {}, {"h3"}}}
		svc := newService(t, &fakeNode{blocks: blocks})

		hashes := collect(t, svc.BlockHashes(), 3)

		assert.Equal(t, []string{"h1", "h2", "h3"}, hashes)
		assert.Equal(t, 1, blocks.uninstallCount())
	})

	t.Run("drops hashes repeated by the next poll", func(t *testing.T) {
		blocks := &fakeBackend[string]{batches: [][]string{{"h1", "h2"}, {"h2", "h3"}}}
		svc := newService(t, &fakeNode{blocks: blocks})

		assert.Equal(t, []string{"h1", "h2", "h3"}, collect(t, svc.BlockHashes(), 3))
	})

	t.Run("an install error ends the subscription", func(t *testing.T) {
		blocks := &fakeBackend[string]{installErr: assert.AnError}
		svc := newService(t, &fakeNode{blocks: blocks})

		sub := svc.BlockHashes().Subscribe(t.Context(), func(string) {})

		err := sub.Wait()
		var installErr *filter.InstallError
		assert.ErrorAs(t, err, &installErr)
	})

	t.Run("a poll error ends the subscription", func(t *testing.T) {
		blocks := &fakeBackend[string]{batches: [][]string{{"h1"}}, pollErr: assert.AnError}
		svc := newService(t, &fakeNode{blocks: blocks})

		var got []string
		sub := svc.BlockHashes().Subscribe(t.Context(), func(h string) { got = append(got, h) })

		assert.ErrorIs(t, sub.Wait(), assert.AnError)
		assert.Equal(t, []string{"h1"}, got)
		assert.Equal(t, 1, blocks.uninstallCount())
	})

	t.Run("cancel uninstalls the filter without an error", func(t *testing.T) {
		blocks := &fakeBackend[string]{}
		svc := newService(t, &fakeNode{blocks: blocks})

		sub := svc.BlockHashes().Subscribe(t.Context(), func(string) {})
		time.Sleep(10 * time.Millisecond)
		sub.Cancel()

		require.NoError(t, sub.Wait())
		assert.Equal(t, 1, blocks.uninstallCount())
	})

	t.Run("every subscription installs its own filter", func(t *testing.T) {
		blocks := &fakeBackend[string]{}
		svc := newService(t, &fakeNode{blocks: blocks})

		first := svc.BlockHashes().Subscribe(t.Context(), func(string) {})
		second := svc.BlockHashes().Subscribe(t.Context(), func(string) {})

		assert.Eventually(t, func() bool {
			blocks.mu.Lock()
			defer blocks.mu.Unlock()
			return blocks.installed == 2
		}, time.Second, time.Millisecond)

		first.Cancel()
		second.Cancel()
		require.NoError(t, first.Wait())
		require.NoError(t, second.Wait())
		assert.Equal(t, 2, blocks.uninstallCount())
	})
}

func TestService_Blocks(t *testing.T) {
	t.Run("resolves hashes into blocks", func(t *testing.T) {
		node := &fakeNode{
			blocks: &fakeBackend[string]{batches: [][]string{{"h1", "h2"}}},
			byHash: map[string]chain.Block{
				"h1": {Index: 1, Hash: "h1"},
				"h2": {Index: 2, Hash: "h2"},
			},
		}
		svc := newService(t, node)

		blocks := collect(t, svc.Blocks(), 2)

		assert.Equal(t, []uint64{1, 2}, []uint64{blocks[0].Index, blocks[1].Index})
	})

	t.Run("an unknown hash fails the stream", func(t *testing.T) {
		blocks := &fakeBackend[string]{batches: [][]string{{"missing"}}}
		svc := newService(t, &fakeNode{blocks: blocks, byHash: map[string]chain.Block{}})

		sub := svc.Blocks().Subscribe(t.Context(), func(chain.Block) {})

		assert.ErrorIs(t, sub.Wait(), chain.ErrBlockNotFound)
		assert.Equal(t, 1, blocks.uninstallCount())
	})

	t.Run("blocks from an index come from the positional filter without a hash lookup", func(t *testing.T) {
		node := &fakeNode{
			blocksFrom: &fakeBackend[chain.Block]{batches: [][]chain.Block{
				{{Index: 0, Hash: "h0"}, {Index: 1, Hash: "h1"}},
				{{Index: 1, Hash: "h1"}, {Index: 2, Hash: "h2"}},
			}},
			lookupErr: assert.AnError,
		}
		svc := newService(t, node)

		blocks := collect(t, svc.BlocksFrom(0), 3)

		assert.Equal(t, []uint64{0, 1, 2}, []uint64{blocks[0].Index, blocks[1].Index, blocks[2].Index})
	})
}

func TestService_Transactions(t *testing.T) {
	t.Run("expands blocks in block and transaction order", func(t *testing.T) {
		node := &fakeNode{
			blocks: &fakeBackend[string]{batches: [][]string{{"h1", "h2"}}},
			byHash: map[string]chain.Block{
				"h1": {Index: 1, Hash: "h1", TransactionHashes: []string{"a", "b"}},
				"h2": {Index: 2, Hash: "h2", TransactionHashes: []string{"c"}},
			},
			transactions: map[string]chain.Transaction{
				"a": {Hash: "a"},
				"b": {Hash: "b"},
				"c": {Hash: "c"},
			},
		}
		svc := newService(t, node)

		txs := collect(t, svc.Transactions(), 3)

		assert.Equal(t, []string{"a", "b", "c"}, []string{txs[0].Hash, txs[1].Hash, txs[2].Hash})
	})

	t.Run("a missing transaction fails the expansion", func(t *testing.T) {
		blocks := stream.FromSlice(chain.Block{Index: 4, TransactionHashes: []string{"x"}})

		_, err := Transactions(&fakeNode{}, blocks).Collect(t.Context())

		assert.ErrorIs(t, err, chain.ErrTransactionNotFound)
	})
}

func TestService_PendingTransactions(t *testing.T) {
	t.Run("requires node support", func(t *testing.T) {
		svc := newService(t, &fakeNode{})

		sub := svc.PendingTransactionHashes().Subscribe(t.Context(), func(string) {})

		assert.ErrorIs(t, sub.Wait(), assert.AnError)
	})

	t.Run("skips hashes the node cannot resolve yet", func(t *testing.T) {
		node := &fakeNode{
			pending:      &fakeBackend[string]{batches: [][]string{{"p1", "p2", "p3"}}},
			transactions: map[string]chain.Transaction{"p1": {Hash: "p1"}, "p3": {Hash: "p3"}},
		}
		svc := newService(t, node)

		txs := collect(t, svc.PendingTransactions(), 2)

		assert.Equal(t, "p1", txs[0].Hash)
		assert.Equal(t, "p3", txs[1].Hash)
	})
}

func TestService_Logs(t *testing.T) {
	t.Run("deduplicates by transaction and log index", func(t *testing.T) {
		logs := &fakeBackend[chain.Log]{batches: [][]chain.Log{
			{{TransactionHash: "t1", LogIndex: 0}, {TransactionHash: "t1", LogIndex: 1}},
			{{TransactionHash: "t1", LogIndex: 1}, {TransactionHash: "t2", LogIndex: 0}},
		}}
		svc := newService(t, &fakeNode{logs: logs})

		got := collect(t, svc.Logs(chain.LogQuery{}), 3)

		keys := make([]string, len(got))
		for i, l := range got {
			keys[i] = logKey(l)
		}
		assert.Equal(t, []string{"t1:0", "t1:1", "t2:0"}, keys)
	})
}
