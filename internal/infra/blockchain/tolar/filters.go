package tolar

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/filter"

	"github.com/google/uuid"
)

// DefaultMaxBlocksPerPoll is how many blocks a client-side filter reads in one poll. A
// filter behind the head catches up over several polls.
const DefaultMaxBlocksPerPoll = 64

// ErrFilterNotFound is returned when polling a client-side filter that was uninstalled.
var ErrFilterNotFound = errors.New("filter not found")

// BlockFilter returns a backend reporting the hashes of new blocks. A node-side filter is
// used when the node supports one; otherwise the client follows the block index itself,
// starting after the current head.
func (c *Client) BlockFilter() filter.Backend[string] {
	if c.Supports(methodNewBlockFilter) && c.Supports(methodGetFilterChanges) && c.Supports(methodUninstallFilter) {
		return &nodeFilter[string, string]{
			client:  c,
			method:  methodNewBlockFilter,
			convert: func(hash string) string { return hash },
		}
	}

	return newIndexFilter(c, nil, blockHash)
}

// BlockFilterFrom returns a client-side backend reporting whole blocks from index on,
// including blocks confirmed before the filter was installed.
func (c *Client) BlockFilterFrom(index uint64) filter.Backend[chain.Block] {
	return newIndexFilter(c, &index, wholeBlock)
}

// PendingTransactionFilter returns a node-side backend reporting the hashes of transactions
// entering the pool. It has no client-side equivalent.
func (c *Client) PendingTransactionFilter() (filter.Backend[string], error) {
	for _, method := range []string{methodNewPendingTxFilter, methodGetFilterChanges, methodUninstallFilter} {
		if !c.Supports(method) {
			return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
		}
	}

	return &nodeFilter[string, string]{
		client:  c,
		method:  methodNewPendingTxFilter,
		convert: func(hash string) string { return hash },
	}, nil
}

// LogFilter returns a backend reporting new logs matching query. Without node-side filters
// the client expands the receipts of every new block and matches them locally.
func (c *Client) LogFilter(query chain.LogQuery) filter.Backend[chain.Log] {
	if c.Supports(methodNewFilter) && c.Supports(methodGetFilterChanges) && c.Supports(methodUninstallFilter) {
		return &nodeFilter[ethLogResponse, chain.Log]{
			client:  c,
			method:  methodNewFilter,
			params:  []any{newEthLogFilter(query)},
			convert: ethLogResponse.toChainLog,
		}
	}

	return newIndexFilter(c, nil, func(ctx context.Context, block chain.Block) ([]chain.Log, error) {
		return c.matchingLogs(ctx, block, query)
	})
}

// matchingLogs returns the logs of block's transactions that match query, in transaction
// and log order.
func (c *Client) matchingLogs(ctx context.Context, block chain.Block, query chain.LogQuery) ([]chain.Log, error) {
	var logs []chain.Log
	for _, hash := range block.TransactionHashes {
		receipt, found, err := c.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}

		for _, log := range receipt.Logs {
			log.BlockIndex, log.BlockHash = block.Index, block.Hash
			if query.Matches(log) {
				logs = append(logs, log)
			}
		}
	}
	return logs, nil
}

func blockHash(_ context.Context, block chain.Block) ([]string, error) {
	return []string{block.Hash}, nil
}

func wholeBlock(_ context.Context, block chain.Block) ([]chain.Block, error) {
	return []chain.Block{block}, nil
}

// nodeFilter is a filter kept by the node through the eth_* filter methods. W is the wire
// form of an item.
type nodeFilter[W, T any] struct {
	client  *Client
	method  string
	params  []any
	convert func(W) T
}

func (f *nodeFilter[W, T]) Install(ctx context.Context) (string, error) {
	id, found, err := invoke[string](ctx, f.client, f.method, f.params...)
	if err != nil {
		return "", err
	}
	if !found || id == "" {
		return "", fmt.Errorf("%s: node returned no filter id", f.method)
	}
	return id, nil
}

func (f *nodeFilter[W, T]) Changes(ctx context.Context, id string) ([]T, error) {
	changes, _, err := invoke[[]W](ctx, f.client, methodGetFilterChanges, id)
	if err != nil {
		return nil, err
	}

	items := make([]T, len(changes))
	for i, change := range changes {
		items[i] = f.convert(change)
	}
	return items, nil
}

func (f *nodeFilter[W, T]) Uninstall(ctx context.Context, id string) (bool, error) {
	existed, _, err := invoke[bool](ctx, f.client, methodUninstallFilter, id)
	return existed, err
}

// indexFilter is a filter kept by the client: it remembers the next block index per filter
// id and expands the blocks confirmed since into items, at most maxBlocksPerPoll per poll.
type indexFilter[T any] struct {
	client *Client
	start  *uint64
	expand func(ctx context.Context, block chain.Block) ([]T, error)

	mu      sync.Mutex
	cursors map[string]uint64
}

func newIndexFilter[T any](c *Client, start *uint64, expand func(context.Context, chain.Block) ([]T, error)) *indexFilter[T] {
	return &indexFilter[T]{
		client:  c,
		start:   start,
		expand:  expand,
		cursors: make(map[string]uint64),
	}
}

func (f *indexFilter[T]) Install(ctx context.Context) (string, error) {
	var next uint64
	if f.start != nil {
		next = *f.start
	} else {
		count, err := f.client.BlockCount(ctx)
		if err != nil {
			return "", err
		}
		next = count
	}

	id := uuid.NewString()

	f.mu.Lock()
	f.cursors[id] = next
	f.mu.Unlock()

	return id, nil
}

func (f *indexFilter[T]) Changes(ctx context.Context, id string) ([]T, error) {
	f.mu.Lock()
	next, ok := f.cursors[id]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFilterNotFound, id)
	}

	count, err := f.client.BlockCount(ctx)
	if err != nil {
		return nil, err
	}

	limit := min(count, next+f.client.maxBlocksPerPoll)

	var items []T
	for ; next < limit; next++ {
		block, found, err := f.client.BlockByIndex(ctx, next)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}

		expanded, err := f.expand(ctx, block)
		if err != nil {
			return nil, err
		}
		items = append(items, expanded...)
	}

	f.mu.Lock()
	if _, ok := f.cursors[id]; ok {
		f.cursors[id] = next
	}
	f.mu.Unlock()

	return items, nil
}

func (f *indexFilter[T]) Uninstall(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, existed := f.cursors[id]
	delete(f.cursors, id)
	return existed, nil
}
