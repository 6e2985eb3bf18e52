// Package chainstream exposes the node's filters as named, composable streams: block
// hashes, pending transaction hashes and logs, plus the blocks and transactions derived
// from them.
//
// Every subscription installs its own filter on the shared scheduler, and cancelling the
// subscription uninstalls it, however many stages the stream went through.
package chainstream

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/filter"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/scheduler"
)

// DefaultPollInterval matches the Tolar block time.
const DefaultPollInterval = 15 * time.Second

// TransactionSource resolves transaction hashes.
type TransactionSource interface {
	Transaction(ctx context.Context, hash string) (chain.Transaction, bool, error)
}

// Node is the part of the Tolar client the streams are built on.
type Node interface {
	TransactionSource

	BlockFilter() filter.Backend[string]
	BlockFilterFrom(index uint64) filter.Backend[chain.Block]
	PendingTransactionFilter() (filter.Backend[string], error)
	LogFilter(query chain.LogQuery) filter.Backend[chain.Log]
	BlockByHash(ctx context.Context, hash string) (chain.Block, bool, error)
}

type config struct {
	pollInterval time.Duration
}

// Option configures a Service.
type Option func(*config)

// WithPollInterval sets how often filters are polled.
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// Service builds streams over a node.
type Service struct {
	node      Node
	scheduler *scheduler.Scheduler
	cfg       config
}

// New creates a Service polling node on sched.
func New(node Node, sched *scheduler.Scheduler, opts ...Option) *Service {
	cfg := config{
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Service{
		node:      node,
		scheduler: sched,
		cfg:       cfg,
	}
}

// BlockHashes streams the hash of every block confirmed after the subscription starts.
func (s *Service) BlockHashes() stream.Stream[string] {
	return watch(s, "block-hashes", s.node.BlockFilter(), hashKey)
}

// PendingTransactionHashes streams the hash of every transaction entering the pool. It
// fails at subscription when the node has no pending transaction filter.
func (s *Service) PendingTransactionHashes() stream.Stream[string] {
	backend, err := s.node.PendingTransactionFilter()
	if err != nil {
		return stream.Error[string](err)
	}
	return watch(s, "pending-transaction-hashes", backend, hashKey)
}

// Logs streams new logs matching query.
func (s *Service) Logs(query chain.LogQuery) stream.Stream[chain.Log] {
	return watch(s, "logs", s.node.LogFilter(query), logKey)
}

// Blocks streams every block confirmed after the subscription starts.
func (s *Service) Blocks() stream.Stream[chain.Block] {
	return stream.TryMap(s.BlockHashes(), s.blockByHash)
}

// BlocksFrom streams blocks starting at index, past blocks included, then follows the
// chain as new blocks are confirmed. The positional filter reports whole blocks, so no
// block is fetched twice.
func (s *Service) BlocksFrom(index uint64) stream.Stream[chain.Block] {
	return watch(s, "blocks-from", s.node.BlockFilterFrom(index), blockKey)
}

// Transactions streams the transactions of every new block, in block order.
func (s *Service) Transactions() stream.Stream[chain.Transaction] {
	return Transactions(s.node, s.Blocks())
}

// PendingTransactions streams the pending transactions the node can already resolve.
// Hashes the node does not know yet are skipped.
func (s *Service) PendingTransactions() stream.Stream[chain.Transaction] {
	return stream.FlatMap(s.PendingTransactionHashes(), func(hash string) stream.Stream[chain.Transaction] {
		return stream.Defer(func(ctx context.Context) (stream.Stream[chain.Transaction], error) {
			tx, found, err := s.node.Transaction(ctx, hash)
			if err != nil {
				return stream.Stream[chain.Transaction]{}, err
			}
			if !found {
				return stream.Empty[chain.Transaction](), nil
			}
			return stream.FromSlice(tx), nil
		})
	})
}

func (s *Service) blockByHash(ctx context.Context, hash string) (chain.Block, error) {
	block, found, err := s.node.BlockByHash(ctx, hash)
	if err != nil {
		return chain.Block{}, err
	}
	if !found {
		return chain.Block{}, fmt.Errorf("%w: %s", chain.ErrBlockNotFound, hash)
	}
	return block, nil
}

// Transactions expands every block of blocks into its transactions, in block and then
// transaction order.
func Transactions(node TransactionSource, blocks stream.Stream[chain.Block]) stream.Stream[chain.Transaction] {
	return stream.FlatMap(blocks, func(block chain.Block) stream.Stream[chain.Transaction] {
		return stream.TryMap(stream.FromSlice(block.TransactionHashes...), func(ctx context.Context, hash string) (chain.Transaction, error) {
			tx, found, err := node.Transaction(ctx, hash)
			if err != nil {
				return chain.Transaction{}, err
			}
			if !found {
				return chain.Transaction{}, fmt.Errorf("%w: %s in block %d", chain.ErrTransactionNotFound, hash, block.Index)
			}
			return tx, nil
		})
	})
}

func hashKey(hash string) string {
	return hash
}

func blockKey(block chain.Block) string {
	return block.Hash
}

func logKey(log chain.Log) string {
	return log.TransactionHash + ":" + strconv.FormatUint(log.LogIndex, 10)
}

// watch turns a filter into a stream. Each run installs a new filter, and the filter is
// cancelled when the run ends for any reason.
func watch[T any](s *Service, name string, backend filter.Backend[T], key func(T) string) stream.Stream[T] {
	return stream.New(func(ctx context.Context, emit func(T) bool) error {
		stopped := make(chan struct{})
		failed := make(chan error, 1)
		var (
			done     atomic.Bool
			stopOnce sync.Once
		)

		f := filter.New(backend, key,
			func(item T) {
				if done.Load() {
					return
				}
				if !emit(item) {
					done.Store(true)
					stopOnce.Do(func() { close(stopped) })
				}
			},
			filter.WithName(name),
			filter.WithErrorHandler(func(err error) { failed <- err }),
		)

		if err := f.Run(ctx, s.scheduler, s.cfg.pollInterval); err != nil {
			return err
		}
		defer f.Cancel(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			return nil
		case err := <-failed:
			return err
		}
	})
}
