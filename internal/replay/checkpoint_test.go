package replay

import (
	"context"
	"testing"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/pkg/types"
	replaytest "github.com/gabapcia/tolclient/internal/replay/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_Resume(t *testing.T) {
	t.Run("starts after the latest checkpoint", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex("0x2"), nil).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x3")).Return(nil).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x4")).Return(nil).Once()

		e := New(chainOf(t, 5), WithCheckpointStorage(storage))
		blocks, err := e.Resume("indexer", 0, nil).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{3, 4}, indices(blocks))
	})

	t.Run("starts at the default without a checkpoint", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex(""), ErrNoCheckpointFound).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", mock.Anything).Return(nil).Times(2)

		e := New(chainOf(t, 3), WithCheckpointStorage(storage))
		blocks, err := e.Resume("indexer", 1, nil).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{1, 2}, indices(blocks))
	})

	t.Run("checkpoints live blocks after the seam", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex("0x1"), nil).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x2")).Return(nil).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x3")).Return(nil).Once()

		e := New(chainOf(t, 3), WithCheckpointStorage(storage))
		blocks, err := e.Resume("indexer", 0, Live(liveFrom(2, 3))).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{2, 3}, indices(blocks))
	})

	t.Run("load failure is returned", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex(""), assert.AnError).Once()

		e := New(replaytest.NewNode(t), WithCheckpointStorage(storage))
		_, err := e.Resume("indexer", 0, nil).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("save failure does not interrupt the stream", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex(""), ErrNoCheckpointFound).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", mock.Anything).Return(assert.AnError).Times(3)

		e := New(chainOf(t, 3), WithCheckpointStorage(storage))
		blocks, err := e.Resume("indexer", 0, nil).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2}, indices(blocks))
	})

	t.Run("the block the consumer stops on is not checkpointed", func(t *testing.T) {
		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex(""), ErrNoCheckpointFound).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x0")).Return(nil).Once()

		e := New(chainOf(t, 3), WithCheckpointStorage(storage), WithWorkers(1))
		blocks, err := stream.Take(e.Resume("indexer", 0, nil), 2).Collect(t.Context())

		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1}, indices(blocks))
	})

	t.Run("a block whose transactions failed to expand is not checkpointed", func(t *testing.T) {
		node := replaytest.NewNode(t)
		node.EXPECT().BlockCount(mock.Anything).Return(uint64(2), nil).Maybe()
		node.EXPECT().BlockByIndex(mock.Anything, uint64(0)).Return(chain.Block{Index: 0, TransactionHashes: []string{"a"}}, true, nil)
		node.EXPECT().BlockByIndex(mock.Anything, uint64(1)).Return(chain.Block{Index: 1, TransactionHashes: []string{"b"}}, true, nil)
		node.EXPECT().Transaction(mock.Anything, "a").Return(chain.Transaction{Hash: "a"}, true, nil)
		node.EXPECT().Transaction(mock.Anything, "b").Return(chain.Transaction{}, false, assert.AnError)

		storage := replaytest.NewCheckpointStorage(t)
		storage.EXPECT().LoadLatestCheckpoint(mock.Anything, "indexer").Return(types.Hex(""), ErrNoCheckpointFound).Once()
		storage.EXPECT().SaveCheckpoint(mock.Anything, "indexer", types.Hex("0x0")).Return(nil).Once()

		e := New(node, WithCheckpointStorage(storage), WithWorkers(1))
		txs, err := e.Transactions(e.Resume("indexer", 0, nil)).Collect(t.Context())

		assert.ErrorIs(t, err, assert.AnError)
		require.Len(t, txs, 1)
		assert.Equal(t, "a", txs[0].Hash)
	})

	t.Run("without storage every run starts at the default", func(t *testing.T) {
		e := New(chainOf(t, 2))

		for range 2 {
			blocks, err := e.Resume("indexer", 0, nil).Collect(t.Context())
			require.NoError(t, err)
			assert.Equal(t, []uint64{0, 1}, indices(blocks))
		}
	})
}

func TestNopCheckpoint(t *testing.T) {
	t.Run("never finds a checkpoint", func(t *testing.T) {
		var storage nopCheckpoint
		require.NoError(t, storage.SaveCheckpoint(context.Background(), "x", types.HexFromUint64(9)))

		_, err := storage.LoadLatestCheckpoint(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNoCheckpointFound)
	})
}
