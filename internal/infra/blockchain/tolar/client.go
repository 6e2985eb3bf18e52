// Package tolar is the client for Tolar HashNet nodes. Every RPC method goes through one
// generic entry point that checks the method against a catalogue and against the
// capabilities the node was configured with, before any I/O happens.
package tolar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/gabapcia/tolclient/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/tolclient/internal/pkg/types"
)

var (
	// ErrMethodNotSupported is returned, without contacting the node, for a method that is
	// not in the client's capability set.
	ErrMethodNotSupported = errors.New("method not supported by node")

	// ErrInvalidParams is returned when a call does not match the method's parameter count.
	ErrInvalidParams = errors.New("invalid number of params")
)

// Client talks to a Tolar node through a JSON-RPC transport.
type Client struct {
	conn             jsonrpc.Client
	capabilities     types.Set[string]
	maxBlocksPerPoll uint64
}

type config struct {
	capabilities     []string
	maxBlocksPerPoll uint64
}

// Option configures a Client.
type Option func(*config)

// WithCapabilities replaces the default capability set with methods. Methods missing from
// the catalogue are ignored.
func WithCapabilities(methods ...string) Option {
	return func(c *config) {
		c.capabilities = methods
	}
}

// WithMaxBlocksPerPoll caps how many blocks a client-side filter reads in one poll. Values
// below one are raised to one.
func WithMaxBlocksPerPoll(n uint64) Option {
	return func(c *config) {
		c.maxBlocksPerPoll = max(n, 1)
	}
}

// NewClient creates a Client over conn. By default every tol_*, tx_* and account_* method
// of the catalogue is supported and node-side filters are not.
func NewClient(conn jsonrpc.Client, opts ...Option) *Client {
	cfg := config{
		capabilities:     defaultCapabilities(),
		maxBlocksPerPoll: DefaultMaxBlocksPerPoll,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	capabilities := types.NewSet[string]()
	for _, method := range cfg.capabilities {
		if _, ok := catalogue[method]; ok {
			capabilities.Add(method)
		}
	}

	return &Client{
		conn:             conn,
		capabilities:     capabilities,
		maxBlocksPerPoll: cfg.maxBlocksPerPoll,
	}
}

// Supports reports whether method may be called on the node.
func (c *Client) Supports(method string) bool {
	return c.capabilities.Contains(method)
}

// Capabilities returns the supported methods in lexical order.
func (c *Client) Capabilities() []string {
	methods := c.capabilities.ToSlice()
	slices.Sort(methods)
	return methods
}

// call validates method and params and sends the request.
func (c *Client) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	spec, ok := catalogue[method]
	if !ok || !c.capabilities.Contains(method) {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, method)
	}

	if len(params) != spec.arity {
		return nil, fmt.Errorf("%w: %s takes %d, got %d", ErrInvalidParams, method, spec.arity, len(params))
	}

	return c.conn.Fetch(ctx, method, params...)
}

// invoke calls method and decodes its result into T. A JSON null result is reported as
// found == false with a nil error.
func invoke[T any](ctx context.Context, c *Client, method string, params ...any) (T, bool, error) {
	var result T

	data, err := c.call(ctx, method, params...)
	if err != nil {
		return result, false, err
	}

	if isNull(data) {
		return result, false, nil
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return result, false, fmt.Errorf("decode %s result: %w", method, err)
	}

	return result, true, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
