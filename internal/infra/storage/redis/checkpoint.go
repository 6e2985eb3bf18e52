package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/tolclient/internal/pkg/types"
	"github.com/gabapcia/tolclient/internal/replay"

	"github.com/redis/go-redis/v9"
)

// checkpointKeyPrefix namespaces every key this module writes.
const checkpointKeyPrefix = "tolclient"

// checkpointKey is the key holding the checkpoint of a named replay:
//
//	"tolclient:checkpoint:<name>"
func checkpointKey(name string) string {
	return fmt.Sprintf("%s:checkpoint:%s", checkpointKeyPrefix, name)
}

// SaveCheckpoint stores index as the latest checkpoint of the replay called name. The key
// never expires.
func (c *Client) SaveCheckpoint(ctx context.Context, name string, index types.Hex) error {
	return c.conn.Set(ctx, checkpointKey(name), string(index), 0).Err()
}

// LoadLatestCheckpoint returns the checkpoint of the replay called name, or
// replay.ErrNoCheckpointFound when none was saved.
func (c *Client) LoadLatestCheckpoint(ctx context.Context, name string) (types.Hex, error) {
	val, err := c.conn.Get(ctx, checkpointKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = replay.ErrNoCheckpointFound
		}

		return "", err
	}

	return types.HexFromString(val)
}

var _ replay.CheckpointStorage = (*Client)(nil)
