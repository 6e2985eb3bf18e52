package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gabapcia/tolclient/internal/chainstream"
	"github.com/gabapcia/tolclient/internal/config"
	"github.com/gabapcia/tolclient/internal/handlers/cli"
	"github.com/gabapcia/tolclient/internal/infra/blockchain/tolar"
	"github.com/gabapcia/tolclient/internal/infra/storage/redis"
	"github.com/gabapcia/tolclient/internal/pkg/logger"
	"github.com/gabapcia/tolclient/internal/pkg/resilience/retry"
	"github.com/gabapcia/tolclient/internal/pkg/telemetry"
	httptransport "github.com/gabapcia/tolclient/internal/pkg/transport/http"
	"github.com/gabapcia/tolclient/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/tolclient/internal/receipt"
	"github.com/gabapcia/tolclient/internal/replay"
	"github.com/gabapcia/tolclient/internal/scheduler"
	"github.com/gabapcia/tolclient/internal/signer"
	"github.com/gabapcia/tolclient/internal/txlifecycle"
)

// shutdownTimeout bounds how long stopping the scheduler and flushing telemetry may take.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithLevel(cfg.Log.Level), logger.WithOutput(os.Stderr)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry.ServiceName)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer withTimeout(ctx, func(ctx context.Context) error { return shutdown(ctx) })
	}

	conn, err := dial(ctx, cfg.Node)
	if err != nil {
		return err
	}
	if closer, ok := conn.(io.Closer); ok {
		defer closer.Close()
	}

	nodeOpts := []tolar.Option{tolar.WithMaxBlocksPerPoll(cfg.Poll.MaxBlocks)}
	if len(cfg.Node.Capabilities) > 0 {
		nodeOpts = append(nodeOpts, tolar.WithCapabilities(cfg.Node.Capabilities...))
	}
	node := tolar.NewClient(conn, nodeOpts...)

	sched := scheduler.New()
	defer withTimeout(ctx, sched.Shutdown)

	replayOpts := []replay.Option{
		replay.WithWorkers(cfg.Replay.Workers),
		replay.WithRetry(retry.New(
			retry.WithAttempts(cfg.Replay.RetryAttempts),
			retry.WithDelay(cfg.Replay.RetryDelay),
		)),
	}
	if cfg.Redis.Enabled() {
		store, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer store.Close()

		replayOpts = append(replayOpts, replay.WithCheckpointStorage(store))
	}

	receipts := receipt.New(node,
		receipt.WithAttempts(cfg.Receipt.Attempts),
		receipt.WithDelay(cfg.Receipt.Delay),
	)

	transactor, err := newTransactor(cfg.Sender, node, receipts)
	if err != nil {
		return err
	}

	return cli.Run(ctx, cli.Services{
		Node:       node,
		Streams:    chainstream.New(node, sched, chainstream.WithPollInterval(cfg.Poll.Interval)),
		Replay:     replay.New(node, replayOpts...),
		Receipts:   receipts,
		Transactor: transactor,
	})
}

// dial connects over WebSocket when an endpoint is configured and over HTTP otherwise.
func dial(ctx context.Context, cfg config.Node) (jsonrpc.Client, error) {
	if cfg.WSURL != "" {
		conn, err := jsonrpc.DialWebSocket(ctx, cfg.WSURL)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", cfg.WSURL, err)
		}
		return conn, nil
	}

	httpClient := httptransport.NewStandardClient(
		httptransport.WithTimeout(cfg.HTTPTimeout),
		httptransport.WithRetryMax(cfg.HTTPRetryMax),
	)
	return jsonrpc.NewClient(httpClient, cfg.URL), nil
}

// newTransactor picks local signing when a private key is configured and node-side signing
// otherwise. Without a sender address there is no transactor.
func newTransactor(cfg config.Sender, node *tolar.Client, receipts *receipt.Poller) (cli.Transactor, error) {
	if cfg.Address == "" {
		return nil, nil
	}

	if !cfg.SignsLocally() {
		return txlifecycle.NewRemote(node, cfg.Address, cfg.Password, receipts), nil
	}

	creds, err := signer.CredentialsFromHex(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	return txlifecycle.NewSigned(node, signer.New(node), creds, cfg.Address, receipts), nil
}

func withTimeout(ctx context.Context, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error(ctx, "shutdown failed", "error", err)
	}
}
