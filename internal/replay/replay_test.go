package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/resilience/retry"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	replaytest "github.com/gabapcia/tolclient/internal/replay/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// chainOf returns a node mock serving blocks 0..count-1.
func chainOf(t *testing.T, count uint64) *replaytest.Node {
	node := replaytest.NewNode(t)
	node.EXPECT().BlockCount(mock.Anything).Return(count, nil).Maybe()
	node.EXPECT().
		BlockByIndex(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, index uint64) (chain.Block, bool, error) {
			if index >= count {
				return chain.Block{}, false, nil
			}
			return chain.Block{Index: index}, true, nil
		}).
		Maybe()
	return node
}

func indices(blocks []chain.Block) []uint64 {
	out := make([]uint64, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Index)
	}
	return out
}

func liveFrom(indices ...uint64) stream.Stream[chain.Block] {
	blocks := make([]chain.Block, 0, len(indices))
	for _, index := range indices {
		blocks = append(blocks, chain.Block{Index: index})
	}
	return stream.FromSlice(blocks...)
}

func TestEngine_Range(t *testing.T) {
	t.Run("ascending range visits every index in order", func(t *testing.T) {
		e := New(chainOf(t, 10), WithWorkers(3))

		blocks, err := e.Range(chain.AtIndex(2), chain.AtIndex(8), true).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3, 4, 5, 6, 7, 8}, indices(blocks))
	})

	t.Run("descending range visits from end to start", func(t *testing.T) {
		e := New(chainOf(t, 10), WithWorkers(2))

		blocks, err := e.Range(chain.AtIndex(2), chain.AtIndex(6), false).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{6, 5, 4, 3, 2}, indices(blocks))
	})

	t.Run("earliest to latest resolves against the head", func(t *testing.T) {
		e := New(chainOf(t, 5))

		blocks, err := e.Range(chain.Earliest, chain.Latest, true).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4}, indices(blocks))
	})

	t.Run("start past end yields nothing", func(t *testing.T) {
		e := New(replaytest.NewNode(t))

		blocks, err := e.Range(chain.AtIndex(7), chain.AtIndex(3), true).Collect(t.Context())

		require.NoError(t, err)
		assert.Empty(t, blocks)
	})

	t.Run("latest on an empty chain yields nothing", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(0), nil).Once()

		blocks, err := New(node).Range(chain.Earliest, chain.Latest, true).Collect(t.Context())

		require.NoError(t, err)
		assert.Empty(t, blocks)
	})

	t.Run("head lookup failure is returned", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(0), assert.AnError).Once()

		_, err := New(node).Range(chain.Earliest, chain.Latest, true).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("missing block fails the range", func(t *testing.T) {
		e := New(chainOf(t, 3))

		blocks, err := e.Range(chain.AtIndex(1), chain.AtIndex(5), true).Collect(t.Context())

		assert.ErrorIs(t, err, ErrBlockNotFound)
		assert.Empty(t, blocks)
	})

	t.Run("lookup error fails the range", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{}, false, assert.AnError).Once()

		_, err := New(node, WithWorkers(1)).Range(chain.AtIndex(0), chain.AtIndex(0), true).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("retry recovers a failed lookup", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{}, false, assert.AnError).Once()
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{Index: 0}, true, nil).Once()

		e := New(node, WithRetry(retry.New(retry.WithAttempts(2), retry.WithDelay(time.Millisecond))))
		blocks, err := e.Range(chain.AtIndex(0), chain.AtIndex(0), true).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0}, indices(blocks))
	})

	t.Run("take stops fetching further batches", func(t *testing.T) {
		node := replaytest.NewNode(t)
		fetched := 0
		node.EXPECT().
			BlockByIndex(mock.Anything, mock.Anything).
			RunAndReturn(func(_ context.Context, index uint64) (chain.Block, bool, error) {
				fetched++
				return chain.Block{Index: index}, true, nil
			})

		e := New(node, WithWorkers(1))
		blocks, err := stream.Take(e.Range(chain.AtIndex(0), chain.AtIndex(100), true), 3).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2}, indices(blocks))
		assert.Equal(t, 3, fetched)
	})
}

func TestEngine_From(t *testing.T) {
	t.Run("replays up to the head then hands off to the live stream", func(t *testing.T) {
		e := New(chainOf(t, 5))

		blocks, err := e.From(0, Live(liveFrom(5, 6, 7))).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7}, indices(blocks))
	})

	t.Run("live blocks already replayed are dropped", func(t *testing.T) {
		e := New(chainOf(t, 5))

		blocks, err := e.From(0, Live(liveFrom(3, 4, 5))).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5}, indices(blocks))
	})

	t.Run("a gap before the first live block is back-filled", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(3), nil).Times(2)
		node.EXPECT().
			BlockByIndex(mock.Anything, mock.Anything).
			RunAndReturn(func(_ context.Context, index uint64) (chain.Block, bool, error) {
				return chain.Block{Index: index}, true, nil
			})

		blocks, err := New(node).From(0, Live(liveFrom(6, 7))).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7}, indices(blocks))
	})

	t.Run("catches up again when the head moves during replay", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(2), nil).Once()
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(4), nil).Once()
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(4), nil).Once()
		node.EXPECT().
			BlockByIndex(mock.Anything, mock.Anything).
			RunAndReturn(func(_ context.Context, index uint64) (chain.Block, bool, error) {
				return chain.Block{Index: index}, true, nil
			})

		blocks, err := New(node).From(0, nil).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3}, indices(blocks))
	})

	t.Run("start past the head hands off directly", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(5), nil).Once()

		var handedOff uint64
		blocks, err := New(node).From(9, func(next uint64) stream.Stream[chain.Block] {
			handedOff = next
			return liveFrom(9, 10)
		}).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, uint64(9), handedOff)
		assert.Equal(t, []uint64{9, 10}, indices(blocks))
	})

	t.Run("continuation receives the first index not replayed", func(t *testing.T) {
		e := New(chainOf(t, 4))

		var handedOff uint64
		_, err := e.From(1, func(next uint64) stream.Stream[chain.Block] {
			handedOff = next
			return stream.Empty[chain.Block]()
		}).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, uint64(4), handedOff)
	})

	t.Run("continuation error is returned", func(t *testing.T) {
		e := New(chainOf(t, 2))

		blocks, err := e.From(0, Live(stream.Error[chain.Block](assert.AnError))).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
		assert.Equal(t, []uint64{0, 1}, indices(blocks))
	})

	t.Run("back-fill failure is returned", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(0), nil).Once()
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{}, false, nil).Once()

		_, err := New(node, WithWorkers(1)).From(0, Live(liveFrom(1))).Collect(t.Context())

		assert.ErrorIs(t, err, ErrBlockNotFound)
	})

	t.Run("head lookup failure is returned", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(0), assert.AnError).Once()

		_, err := New(node).From(0, nil).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("stops when the consumer stops across the seam", func(t *testing.T) {
		e := New(chainOf(t, 3))

		blocks, err := stream.Take(e.From(0, Live(liveFrom(3, 4, 5))), 4).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2, 3}, indices(blocks))
	})
}

func TestEngine_Transactions(t *testing.T) {
	t.Run("expands replayed blocks into transactions", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(2), nil).Maybe()
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{Index: 0, TransactionHashes: []string{"0xa"}}, true, nil)
		node.EXPECT().BlockByIndex(mock.Anything, uint64(1)).Return(chain.Block{Index: 1, TransactionHashes: []string{"0xb", "0xc"}}, true, nil)
		for _, hash := range []string{"0xa", "0xb", "0xc"} {
			node.EXPECT().Transaction(mock.Anything, hash).Return(chain.Transaction{Hash: hash}, true, nil).Once()
		}

		txs, err := New(node).RangeTransactions(chain.Earliest, chain.Latest, true).Collect(t.Context())

		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, "0xa", txs[0].Hash)
		assert.Equal(t, "0xb", txs[1].Hash)
		assert.Equal(t, "0xc", txs[2].Hash)
	})

	t.Run("transaction lookup failure is returned", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(1), nil).Once()
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{Index: 0, TransactionHashes: []string{"0xa"}}, true, nil)
		node.EXPECT().Transaction(mock.Anything, "0xa").Return(chain.Transaction{}, false, errors.New("boom")).Once()

		_, err := New(node).FromTransactions(0, nil).Collect(t.Context())

		assert.ErrorContains(t, err, "boom")
	})
}
