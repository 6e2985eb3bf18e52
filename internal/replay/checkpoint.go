package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/logger"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/pkg/types"
)

// ErrNoCheckpointFound is returned by LoadLatestCheckpoint when no checkpoint has been
// saved yet under the requested name.
var ErrNoCheckpointFound = errors.New("no checkpoint found")

// CheckpointStorage persists and retrieves the index of the last block a named replay
// emitted.
type CheckpointStorage interface {
	// SaveCheckpoint records index as the latest checkpoint for name, overwriting any
	// previous one.
	SaveCheckpoint(ctx context.Context, name string, index types.Hex) error

	// LoadLatestCheckpoint returns the most recent index saved for name, or
	// ErrNoCheckpointFound.
	LoadLatestCheckpoint(ctx context.Context, name string) (types.Hex, error)
}

// Resume continues the replay called name from the block after its last checkpoint, or
// from defaultStart when it has none, and checkpoints every block the consumer accepted.
//
// A block is checkpointed only once emit returned true for it, so a block a downstream
// stage failed on or stopped inside is emitted again after a restart. Failures to persist
// a checkpoint are logged and do not interrupt the stream.
func (e *Engine) Resume(name string, defaultStart uint64, continuation Continuation) stream.Stream[chain.Block] {
	return stream.New(func(ctx context.Context, emit func(chain.Block) bool) error {
		start, err := e.resumePoint(ctx, name, defaultStart)
		if err != nil {
			return err
		}

		logger.Info(ctx, "resuming replay",
			"replay.name", name,
			"block.index", start,
		)

		return e.From(start, continuation).Run(ctx, func(block chain.Block) bool {
			if !emit(block) {
				return false
			}

			if err := e.cfg.checkpoints.SaveCheckpoint(ctx, name, types.HexFromUint64(block.Index)); err != nil {
				logger.Error(ctx, "failed to save checkpoint",
					"replay.name", name,
					"block.index", block.Index,
					"error", err,
				)
			}
			return true
		})
	})
}

func (e *Engine) resumePoint(ctx context.Context, name string, defaultStart uint64) (uint64, error) {
	checkpoint, err := e.cfg.checkpoints.LoadLatestCheckpoint(ctx, name)
	switch {
	case errors.Is(err, ErrNoCheckpointFound):
		return defaultStart, nil
	case err != nil:
		return 0, fmt.Errorf("load checkpoint %s: %w", name, err)
	default:
		return checkpoint.Uint64() + 1, nil
	}
}

// nopCheckpoint is a no-op implementation of CheckpointStorage. It stores nothing and
// never finds a checkpoint.
type nopCheckpoint struct{}

func (nopCheckpoint) SaveCheckpoint(context.Context, string, types.Hex) error {
	return nil
}

func (nopCheckpoint) LoadLatestCheckpoint(context.Context, string) (types.Hex, error) {
	return "", ErrNoCheckpointFound
}
