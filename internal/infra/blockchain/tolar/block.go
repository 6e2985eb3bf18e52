package tolar

import (
	"context"

	"github.com/gabapcia/tolclient/internal/chain"
)

// BlockCount returns the number of confirmed blocks. The chain head is BlockCount-1.
func (c *Client) BlockCount(ctx context.Context) (uint64, error) {
	count, _, err := invoke[blockCountResult](ctx, c, methodBlockCount)
	if err != nil {
		return 0, err
	}
	return count.Uint64(), nil
}

// BlockByIndex returns the block at index. found is false when the node has no such block.
func (c *Client) BlockByIndex(ctx context.Context, index uint64) (chain.Block, bool, error) {
	block, found, err := invoke[blockResponse](ctx, c, methodBlockByIndex, index, false)
	if err != nil || !found {
		return chain.Block{}, false, err
	}
	return block.toChainBlock(), true, nil
}

// BlockByHash returns the block with the given hash.
func (c *Client) BlockByHash(ctx context.Context, hash string) (chain.Block, bool, error) {
	block, found, err := invoke[blockResponse](ctx, c, methodBlockByHash, hash)
	if err != nil || !found {
		return chain.Block{}, false, err
	}
	return block.toChainBlock(), true, nil
}
