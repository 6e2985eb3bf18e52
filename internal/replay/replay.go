// Package replay traverses historical blocks by index and hands off to live data.
//
// Range visits a fixed, resolved range. From catches up with the chain head, batch after
// batch, and then continues with a caller-supplied stream, so a consumer sees every block
// exactly once across the seam between history and live data.
package replay

import (
	"context"
	"fmt"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/chainstream"
	"github.com/gabapcia/tolclient/internal/pkg/resilience/retry"
	"github.com/gabapcia/tolclient/internal/pkg/stream"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of blocks fetched concurrently within a batch.
const DefaultWorkers = 4

// ErrBlockNotFound is returned when an index inside a replayed range has no block.
var ErrBlockNotFound = chain.ErrBlockNotFound

// Node is the part of the Tolar client a replay reads from.
type Node interface {
	BlockCount(ctx context.Context) (uint64, error)
	BlockByIndex(ctx context.Context, index uint64) (chain.Block, bool, error)
	Transaction(ctx context.Context, hash string) (chain.Transaction, bool, error)
}

// Continuation produces the stream that follows a replay. next is the first block index
// the replay did not emit.
type Continuation func(next uint64) stream.Stream[chain.Block]

// Live adapts a stream that has no notion of a start position, such as new blocks, into
// a Continuation.
func Live(s stream.Stream[chain.Block]) Continuation {
	return func(uint64) stream.Stream[chain.Block] {
		return s
	}
}

type config struct {
	workers     int
	retry       retry.Retry
	checkpoints CheckpointStorage
}

// Option configures an Engine.
type Option func(*config)

// WithWorkers sets how many blocks of a batch are fetched concurrently. Values below one
// are raised to one.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = max(n, 1)
	}
}

// WithRetry retries every block lookup with r. By default a failed lookup ends the replay.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

// WithCheckpointStorage sets where Resume keeps its progress.
func WithCheckpointStorage(s CheckpointStorage) Option {
	return func(c *config) {
		c.checkpoints = s
	}
}

// Engine replays blocks from a node.
type Engine struct {
	node Node
	cfg  config
}

// New creates an Engine reading from node.
func New(node Node, opts ...Option) *Engine {
	cfg := config{
		workers:     DefaultWorkers,
		retry:       retry.New(retry.WithAttempts(1)),
		checkpoints: nopCheckpoint{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		node: node,
		cfg:  cfg,
	}
}

// Range streams the blocks between start and end, both inclusive. Symbolic markers are
// resolved once, when the stream starts. Ascending visits start..end, otherwise end..start.
// A start past end yields nothing.
func (e *Engine) Range(start, end chain.BlockParameter, ascending bool) stream.Stream[chain.Block] {
	return stream.New(func(ctx context.Context, emit func(chain.Block) bool) error {
		r, err := e.resolve(ctx, start, end, ascending)
		if err != nil {
			return err
		}

		_, err = e.replay(ctx, r, emit)
		return err
	})
}

// From streams every block from start up to the chain head, re-reading the head after each
// pass until it stops moving, and then runs the continuation.
//
// Continuation blocks at or below the last emitted index are dropped, and a continuation
// block past the next expected index is preceded by the missing range, so the output is
// gapless and strictly increasing across the seam.
func (e *Engine) From(start uint64, continuation Continuation) stream.Stream[chain.Block] {
	return stream.New(func(ctx context.Context, emit func(chain.Block) bool) error {
		next := start
		track := func(block chain.Block) bool {
			next = block.Index + 1
			return emit(block)
		}

		return stream.Concat(e.catchUp(&next), e.handOff(&next, continuation)).Run(ctx, track)
	})
}

// catchUp replays from *next to the head until the head stops moving.
func (e *Engine) catchUp(next *uint64) stream.Stream[chain.Block] {
	return stream.New(func(ctx context.Context, emit func(chain.Block) bool) error {
		for {
			count, err := e.node.BlockCount(ctx)
			if err != nil {
				return fmt.Errorf("resolve chain head: %w", err)
			}

			if *next >= count {
				return nil
			}

			more, err := e.replay(ctx, chain.BlockRange{Start: *next, End: count - 1, Ascending: true}, emit)
			if err != nil || !more {
				return err
			}
		}
	})
}

// handOff runs the continuation from *next, dropping blocks already emitted and replaying
// the range missing before a block that skips ahead.
func (e *Engine) handOff(next *uint64, continuation Continuation) stream.Stream[chain.Block] {
	return stream.Defer(func(context.Context) (stream.Stream[chain.Block], error) {
		if continuation == nil {
			return stream.Empty[chain.Block](), nil
		}

		fresh := stream.Filter(continuation(*next), func(block chain.Block) bool {
			return block.Index >= *next
		})

		return stream.FlatMap(fresh, func(block chain.Block) stream.Stream[chain.Block] {
			if block.Index == *next {
				return stream.FromSlice(block)
			}

			gap := e.Range(chain.AtIndex(*next), chain.AtIndex(block.Index-1), true)
			return stream.Concat(gap, stream.FromSlice(block))
		}), nil
	})
}

// Transactions expands blocks into their transactions.
func (e *Engine) Transactions(blocks stream.Stream[chain.Block]) stream.Stream[chain.Transaction] {
	return chainstream.Transactions(e.node, blocks)
}

// RangeTransactions streams the transactions of the blocks between start and end.
func (e *Engine) RangeTransactions(start, end chain.BlockParameter, ascending bool) stream.Stream[chain.Transaction] {
	return e.Transactions(e.Range(start, end, ascending))
}

// FromTransactions streams the transactions of every block from start on, then those of
// the continuation.
func (e *Engine) FromTransactions(start uint64, continuation Continuation) stream.Stream[chain.Transaction] {
	return e.Transactions(e.From(start, continuation))
}

// resolve turns the markers into concrete indices with at most one head lookup.
func (e *Engine) resolve(ctx context.Context, start, end chain.BlockParameter, ascending bool) (chain.BlockRange, error) {
	var head uint64
	if start.IsLatest() || end.IsLatest() {
		count, err := e.node.BlockCount(ctx)
		if err != nil {
			return chain.BlockRange{}, fmt.Errorf("resolve chain head: %w", err)
		}
		if count == 0 {
			return chain.BlockRange{Start: 1, End: 0, Ascending: ascending}, nil
		}
		head = count - 1
	}

	return chain.BlockRange{
		Start:     start.Resolve(head),
		End:       end.Resolve(head),
		Ascending: ascending,
	}, nil
}

// replay emits the blocks of r in order, fetching them in concurrent batches. It returns
// false when emit asked to stop.
func (e *Engine) replay(ctx context.Context, r chain.BlockRange, emit func(chain.Block) bool) (bool, error) {
	batch := make([]uint64, 0, min(r.Len(), uint64(e.cfg.workers)))

	flush := func() (bool, error) {
		blocks, err := e.fetchBatch(ctx, batch)
		if err != nil {
			return false, err
		}
		batch = batch[:0]

		for _, block := range blocks {
			instruments.blocks.Add(ctx, 1)
			if !emit(block) {
				return false, nil
			}
		}
		return true, nil
	}

	for index := range r.Indices() {
		batch = append(batch, index)
		if len(batch) < e.cfg.workers {
			continue
		}

		if more, err := flush(); err != nil || !more {
			return more, err
		}
	}

	if len(batch) > 0 {
		return flush()
	}
	return true, nil
}

func (e *Engine) fetchBatch(ctx context.Context, indices []uint64) ([]chain.Block, error) {
	blocks := make([]chain.Block, len(indices))

	g, ctx := errgroup.WithContext(ctx)
	for i, index := range indices {
		g.Go(func() error {
			block, err := e.fetch(ctx, index)
			blocks[i] = block
			return err
		})
	}

	return blocks, g.Wait()
}

func (e *Engine) fetch(ctx context.Context, index uint64) (chain.Block, error) {
	var (
		block chain.Block
		found bool
	)

	err := e.cfg.retry.Execute(ctx, func() error {
		var err error
		block, found, err = e.node.BlockByIndex(ctx, index)
		return err
	})
	if err != nil {
		return chain.Block{}, fmt.Errorf("fetch block %d: %w", index, err)
	}

	if !found {
		return chain.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return block, nil
}
