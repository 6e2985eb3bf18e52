package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned by calls on a WebSocket client whose connection is gone.
var ErrConnectionClosed = errors.New("websocket connection closed")

// wsClient multiplexes JSON-RPC calls over a single WebSocket connection. Responses may
// arrive in any order; a read loop routes each one to the caller waiting on its id.
type wsClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan response

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Compile-time assertion that wsClient implements the Client interface.
var _ Client = (*wsClient)(nil)

// DialWebSocket connects to a WebSocket JSON-RPC endpoint and starts routing responses.
// The returned client must be closed to release the connection.
func DialWebSocket(ctx context.Context, endpoint string) (*wsClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	c := &wsClient{
		conn:    conn,
		pending: make(map[string]chan response),
		closed:  make(chan struct{}),
	}

	go c.readLoop()
	return c, nil
}

// Fetch implements Client.
func (c *wsClient) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	req := newRequest(method, params)

	// Buffered so the read loop never blocks on a caller that already gave up.
	ch := make(chan response, 1)

	c.pendingMu.Lock()
	select {
	case <-c.closed:
		c.pendingMu.Unlock()
		return nil, c.closedError()
	default:
	}
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.closedError()
	case res := <-ch:
		if err := res.Err(); err != nil {
			return nil, err
		}
		return res.Result, nil
	}
}

// Close closes the connection and fails every call still waiting for a response.
func (c *wsClient) Close() error {
	c.shutdown(nil)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *wsClient) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.pendingMu.Lock()
		c.closeErr = cause
		close(c.closed)
		c.pendingMu.Unlock()
	})
}

func (c *wsClient) closedError() error {
	if c.closeErr != nil {
		return fmt.Errorf("%w: %w", ErrConnectionClosed, c.closeErr)
	}
	return ErrConnectionClosed
}

// readLoop routes responses by id until the connection fails or is closed.
// Messages without a pending caller (late answers to cancelled calls, notifications)
// are dropped.
func (c *wsClient) readLoop() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}

		var res response
		if err := json.Unmarshal(message, &res); err != nil || res.ID == "" {
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[res.ID]
		c.pendingMu.Unlock()

		if ok {
			select {
			case ch <- res:
			default:
			}
		}
	}
}
