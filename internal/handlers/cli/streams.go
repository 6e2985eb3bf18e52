package cli

import (
	"context"
	"io"
	"strings"

	"github.com/gabapcia/tolclient/internal/chain"

	"github.com/urfave/cli/v3"
)

// blocksCommand streams confirmed blocks.
//
// Usage example:
//
//	tolclient blocks --from 1200 --limit 10
func blocksCommand(streams Streams, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "blocks",
		Description: "Stream blocks as they are confirmed.",
		Usage:       "Prints every new block as a JSON line. With --from, starts at that index instead of the head.",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:  "from",
				Usage: "Block index to start from",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			s := streams.Blocks()
			if c.IsSet("from") {
				s = streams.BlocksFrom(c.Uint64("from"))
			}

			return printStream(ctx, w, s, c.Int("limit"))
		},
	}
}

// transactionsCommand streams confirmed or pending transactions.
//
// Usage example:
//
//	tolclient transactions --pending
func transactionsCommand(streams Streams, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "transactions",
		Description: "Stream transactions of new blocks, or pending transactions.",
		Usage:       "Prints every transaction as a JSON line.",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "Stream transactions entering the pending pool instead of confirmed ones",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			s := streams.Transactions()
			if c.Bool("pending") {
				s = streams.PendingTransactions()
			}

			return printStream(ctx, w, s, c.Int("limit"))
		},
	}
}

// logsCommand streams contract logs matching addresses and topics.
//
// Usage example:
//
//	tolclient logs --address 54ab... --topic 0xddf2... --topic '*' --topic '0xaa|0xbb'
func logsCommand(streams Streams, w io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "logs",
		Description: "Stream contract logs matching a query.",
		Usage:       "Prints every matching log as a JSON line. Each --topic is one position; '|' separates alternatives and '*' matches anything.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "address",
				Usage: "Emitting contract address (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "topic",
				Usage: "Accepted values for the next topic position",
			},
			limitFlag(),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := chain.LogQuery{
				Addresses: c.StringSlice("address"),
				Topics:    parseTopics(c.StringSlice("topic")),
			}

			return printStream(ctx, w, streams.Logs(query), c.Int("limit"))
		},
	}
}

func parseTopics(positions []string) [][]string {
	topics := make([][]string, 0, len(positions))
	for _, position := range positions {
		if position == "" || position == "*" {
			topics = append(topics, nil)
			continue
		}
		topics = append(topics, strings.Split(position, "|"))
	}
	return topics
}
