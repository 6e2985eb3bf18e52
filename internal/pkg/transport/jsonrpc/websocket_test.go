package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSServer starts a WebSocket JSON-RPC server. handle receives every decoded request and
// the connection's write function.
func newWSServer(t *testing.T, handle func(req request, write func(any))) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		write := func(v any) {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.WriteJSON(v)
		}

		for {
			var req request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(req, write)
		}
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocket_Fetch(t *testing.T) {
	t.Run("answers the matching caller", func(t *testing.T) {
		url := newWSServer(t, func(req request, write func(any)) {
			write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": req.Method})
		})

		c, err := DialWebSocket(t.Context(), url)
		require.NoError(t, err)
		defer c.Close()

		result, err := c.Fetch(t.Context(), "tol_getBlockCount")
		require.NoError(t, err)
		assert.JSONEq(t, `"tol_getBlockCount"`, string(result))
	})

	t.Run("correlates out of order responses", func(t *testing.T) {
		var (
			mu     sync.Mutex
			queued []request
		)
		url := newWSServer(t, func(req request, write func(any)) {
			mu.Lock()
			defer mu.Unlock()

			queued = append(queued, req)
			if len(queued) < 2 {
				return
			}
			// Answer the second request first.
			for i := len(queued) - 1; i >= 0; i-- {
				write(map[string]any{"jsonrpc": "2.0", "id": queued[i].ID, "result": queued[i].Params[0]})
			}
		})

		c, err := DialWebSocket(t.Context(), url)
		require.NoError(t, err)
		defer c.Close()

		var wg sync.WaitGroup
		results := make([]string, 2)
		for i, param := range []string{"first", "second"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				raw, err := c.Fetch(t.Context(), "echo", param)
				assert.NoError(t, err)
				json.Unmarshal(raw, &results[i])
			}()
		}
		wg.Wait()

		assert.Equal(t, []string{"first", "second"}, results)
	})

	t.Run("returns rpc errors", func(t *testing.T) {
		url := newWSServer(t, func(req request, write func(any)) {
			write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": 1, "message": "boom"}})
		})

		c, err := DialWebSocket(t.Context(), url)
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Fetch(t.Context(), "x")
		assert.ErrorIs(t, err, ErrProviderReturnedError)
	})

	t.Run("context cancellation abandons the call", func(t *testing.T) {
		url := newWSServer(t, func(request, func(any)) {})

		c, err := DialWebSocket(t.Context(), url)
		require.NoError(t, err)
		defer c.Close()

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		_, err = c.Fetch(ctx, "never_answered")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("calls after close fail", func(t *testing.T) {
		url := newWSServer(t, func(request, func(any)) {})

		c, err := DialWebSocket(t.Context(), url)
		require.NoError(t, err)
		require.NoError(t, c.Close())

		_, err = c.Fetch(t.Context(), "x")
		assert.ErrorIs(t, err, ErrConnectionClosed)
	})

	t.Run("dial failure", func(t *testing.T) {
		_, err := DialWebSocket(t.Context(), "ws://127.0.0.1:1")
		assert.Error(t, err)
	})
}
