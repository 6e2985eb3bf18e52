package cli

import (
	"context"
	"io"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/replay"

	"github.com/urfave/cli/v3"
)

// replayCommand replays a fixed range of blocks.
//
// Usage example:
//
//	tolclient replay --from earliest --to latest --desc
func replayCommand(r Replayer, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "replay",
		Description: "Replay the blocks, or their transactions, of a fixed range.",
		Usage:       "Markers accept 'earliest', 'latest' or a block index and are resolved once at start.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "First block of the range",
				Value: "earliest",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Last block of the range",
				Value: "latest",
			},
			&cli.BoolFlag{
				Name:  "desc",
				Usage: "Visit the range from its last block down",
			},
			&cli.BoolFlag{
				Name:  "transactions",
				Usage: "Print the transactions of each block instead of the block",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			start, err := chain.ParseBlockParameter(c.String("from"))
			if err != nil {
				return err
			}

			end, err := chain.ParseBlockParameter(c.String("to"))
			if err != nil {
				return err
			}

			return printBlocks(ctx, w, r, r.Range(start, end, !c.Bool("desc")), c)
		},
	}
}

// followCommand replays from an index up to the head and keeps going with new blocks.
//
// Usage example:
//
//	tolclient follow --from 0
func followCommand(r Replayer, streams Streams, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "follow",
		Description: "Replay from a block index to the head, then follow new blocks.",
		Usage:       "Every block is printed exactly once across the switch from history to live blocks.",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:     "from",
				Usage:    "Block index to start from",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "transactions",
				Usage: "Print the transactions of each block instead of the block",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			blocks := r.From(c.Uint64("from"), liveBlocks(streams))
			return printBlocks(ctx, w, r, blocks, c)
		},
	}
}

// resumeCommand continues a named follow from its last checkpoint.
//
// Usage example:
//
//	tolclient resume --name indexer --from 0
func resumeCommand(r Replayer, streams Streams, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "resume",
		Description: "Follow blocks from the last checkpoint of a named replay.",
		Usage:       "Starts at --from when the replay has no checkpoint yet. Checkpoints need TOLCLIENT_REDIS_ADDR.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Replay name the checkpoints are kept under",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "from",
				Usage: "Block index to start from without a checkpoint",
			},
			&cli.BoolFlag{
				Name:  "transactions",
				Usage: "Print the transactions of each block instead of the block",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			blocks := r.Resume(c.String("name"), c.Uint64("from"), liveBlocks(streams))
			return printBlocks(ctx, w, r, blocks, c)
		},
	}
}

// liveBlocks continues a replay with the node's block stream, starting at the first index
// the replay did not emit.
func liveBlocks(streams Streams) replay.Continuation {
	return func(next uint64) stream.Stream[chain.Block] {
		return streams.BlocksFrom(next)
	}
}

func printBlocks(ctx context.Context, w io.Writer, r Replayer, blocks stream.Stream[chain.Block], c *cli.Command) error {
	if c.Bool("transactions") {
		return printStream(ctx, w, r.Transactions(blocks), c.Int("limit"))
	}
	return printStream(ctx, w, blocks, c.Int("limit"))
}
