package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/stream"
	"github.com/gabapcia/tolclient/internal/replay"
	"github.com/gabapcia/tolclient/internal/txlifecycle"

	"github.com/urfave/cli/v3"
)

// errNoSender is returned by transaction commands when no sender is configured.
var errNoSender = errors.New("no sender configured: set TOLCLIENT_SENDER_ADDRESS")

// Node answers direct node queries.
type Node interface {
	Capabilities() []string
	Balance(ctx context.Context, address string, at chain.BlockParameter) (*big.Int, error)
}

// Streams produces live chain data.
type Streams interface {
	Blocks() stream.Stream[chain.Block]
	BlocksFrom(index uint64) stream.Stream[chain.Block]
	Transactions() stream.Stream[chain.Transaction]
	PendingTransactions() stream.Stream[chain.Transaction]
	Logs(query chain.LogQuery) stream.Stream[chain.Log]
}

// Replayer produces historical chain data.
type Replayer interface {
	Range(start, end chain.BlockParameter, ascending bool) stream.Stream[chain.Block]
	From(start uint64, continuation replay.Continuation) stream.Stream[chain.Block]
	Resume(name string, defaultStart uint64, continuation replay.Continuation) stream.Stream[chain.Block]
	Transactions(blocks stream.Stream[chain.Block]) stream.Stream[chain.Transaction]
}

// ReceiptWaiter waits for transaction receipts.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, hash string) (chain.Receipt, error)
}

// Transactor submits transactions and read-only calls for the configured sender.
type Transactor interface {
	Send(ctx context.Context, req txlifecycle.Request) (txlifecycle.Result, error)
	Deploy(ctx context.Context, req txlifecycle.Request) (txlifecycle.Result, error)
	SendCall(ctx context.Context, req txlifecycle.CallRequest) (string, error)
	EstimateGas(ctx context.Context, req txlifecycle.Request) (*big.Int, error)
}

// Services are the components the commands run on. Transactor may be nil when no sender
// is configured; transaction commands then fail.
type Services struct {
	Node       Node
	Streams    Streams
	Replay     Replayer
	Receipts   ReceiptWaiter
	Transactor Transactor
}

// Run executes the tolclient CLI with the process arguments, writing results to stdout.
//
// Commands:
//
//   - `capabilities`, `balance`: node queries.
//   - `blocks`, `transactions`, `logs`: live streams.
//   - `replay`, `follow`, `resume`: historical replays, optionally continuing live.
//   - `receipt`, `send`, `deploy`, `call`, `estimate-gas`: transactions.
//
// Streams print one JSON document per line and stop on SIGINT or SIGTERM.
func Run(ctx context.Context, svc Services) error {
	return newApp(svc, os.Stdout).Run(ctx, os.Args)
}

func newApp(svc Services, w io.Writer) *cli.Command {
	return &cli.Command{
		EnableShellCompletion: true,
		Name:                  "tolclient",
		Description:           "Command-line client for Tolar nodes: live streams, historical replays and transactions.",
		Usage:                 "tolclient [command] [flags]",
		Commands: []*cli.Command{
			capabilitiesCommand(svc.Node, w),
			balanceCommand(svc.Node, w),
			blocksCommand(svc.Streams, w),
			transactionsCommand(svc.Streams, w),
			logsCommand(svc.Streams, w),
			replayCommand(svc.Replay, w),
			followCommand(svc.Replay, svc.Streams, w),
			resumeCommand(svc.Replay, svc.Streams, w),
			receiptCommand(svc.Receipts, w),
			sendCommand(svc.Transactor, w),
			deployCommand(svc.Transactor, w),
			callCommand(svc.Transactor, w),
			estimateGasCommand(svc.Transactor, w),
		},
	}
}

// limitFlag caps how many items a stream command prints.
func limitFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "Stop after this many items (0 streams until interrupted)",
	}
}

// printStream writes every item of s to w as a JSON line until the stream ends, limit items
// were printed, or the process is interrupted. Interruption is not an error.
func printStream[T any](ctx context.Context, w io.Writer, s stream.Stream[T], limit int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if limit > 0 {
		s = stream.Take(s, limit)
	}

	var (
		enc      = json.NewEncoder(w)
		writeErr error
	)
	err := s.Run(ctx, func(item T) bool {
		writeErr = enc.Encode(item)
		return writeErr == nil
	})

	switch {
	case writeErr != nil:
		return writeErr
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil
	default:
		return err
	}
}

func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
