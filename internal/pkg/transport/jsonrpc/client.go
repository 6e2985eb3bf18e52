// Package jsonrpc provides JSON-RPC 2.0 clients over HTTP and WebSocket. Both correlate
// every response with its request by id, so a single client can be shared by any number
// of goroutines.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

var (
	// ErrProviderReturnedError indicates that the remote JSON-RPC server returned an error response.
	ErrProviderReturnedError = errors.New("provider error")

	// ErrResponseIDMismatch indicates a response that does not answer the request it was read for.
	ErrResponseIDMismatch = errors.New("response id does not match request id")

	// ErrUnexpectedStatus indicates a non-2xx HTTP status without a JSON-RPC body.
	ErrUnexpectedStatus = errors.New("unexpected http status")
)

// RPCError is the error object of a JSON-RPC response. It matches ErrProviderReturnedError
// with errors.Is, and callers needing the code use errors.As.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: [%d] - %s", ErrProviderReturnedError, e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return ErrProviderReturnedError
}

// request is a JSON-RPC 2.0 request with a string id.
type request struct {
	JsonRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func newRequest(method string, params []any) request {
	if params == nil {
		params = []any{}
	}

	return request{
		JsonRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
}

// response represents a standard JSON-RPC 2.0 response.
type response struct {
	JsonRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Error   *RPCError       `json:"error"`
	Result  json.RawMessage `json:"result"`
}

// Err returns the response's error object, if any.
func (r response) Err() error {
	if r.Error == nil {
		return nil
	}

	return r.Error
}

// Client defines the interface for a generic JSON-RPC client.
type Client interface {
	// Fetch sends a JSON-RPC request with the given method name and positional parameters.
	// It returns the raw JSON result, or an error if the call fails at the transport level
	// or the server answers with an error object (*RPCError).
	Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// client sends each call as its own HTTP POST to the provider endpoint.
type client struct {
	providerEndpoint string
	httpClient       *http.Client
}

// Compile-time assertion that client implements the Client interface.
var _ Client = (*client)(nil)

// Fetch implements Client.
func (c *client) Fetch(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	req := newRequest(method, params)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.providerEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var data response
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		if res.StatusCode/100 != 2 {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
		}
		return nil, err
	}

	if data.ID != req.ID && (data.ID != "" || data.Error == nil) {
		return nil, fmt.Errorf("%w: sent %q, got %q", ErrResponseIDMismatch, req.ID, data.ID)
	}

	if err := data.Err(); err != nil {
		return nil, err
	}

	return data.Result, nil
}

// NewClient returns a Client that posts JSON-RPC requests to providerEndpoint using httpClient.
// Retries, if any, are the business of httpClient (see the http transport package).
func NewClient(httpClient *http.Client, providerEndpoint string) *client {
	return &client{
		providerEndpoint: providerEndpoint,
		httpClient:       httpClient,
	}
}
