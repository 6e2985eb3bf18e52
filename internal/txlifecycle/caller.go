package txlifecycle

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/validator"
)

// CallNode executes read-only calls.
type CallNode interface {
	TryCall(ctx context.Context, call chain.CallRequest) (chain.CallResult, error)
}

// CallRequest is a read-only contract call made on behalf of the caller's sender.
type CallRequest struct {
	ReceiverAddress string   `validate:"required,tol_address"`
	Data            string   `validate:"hexdata"`
	Gas             *big.Int `validate:"required"`
	GasPrice        *big.Int `validate:"required"`
}

// Caller makes read-only calls. It never fetches a nonce, signs or broadcasts.
type Caller struct {
	node   CallNode
	sender string
}

// NewCaller creates a Caller issuing calls from sender.
func NewCaller(node CallNode, sender string) *Caller {
	return &Caller{
		node:   node,
		sender: sender,
	}
}

// SendCall runs req against the latest state and returns its output. A reverted call fails
// with *CallRevertedError and an error payload with *CallFailedError, whatever output the
// node sent along.
func (c *Caller) SendCall(ctx context.Context, req CallRequest) (string, error) {
	if err := validator.Validate(req); err != nil {
		return "", err
	}

	result, err := c.node.TryCall(ctx, chain.CallRequest{
		SenderAddress:   c.sender,
		ReceiverAddress: req.ReceiverAddress,
		Amount:          big.NewInt(0),
		Gas:             req.Gas,
		GasPrice:        req.GasPrice,
		Data:            req.Data,
	})
	if err != nil {
		return "", fmt.Errorf("try call %s: %w", req.ReceiverAddress, err)
	}

	switch {
	case result.Excepted:
		return "", &CallRevertedError{Reason: result.RevertReason, Output: result.Output}
	case result.Error != nil:
		return "", &CallFailedError{Code: result.Error.Code, Message: result.Error.Message}
	default:
		return result.Output, nil
	}
}
