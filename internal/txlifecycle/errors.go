package txlifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionReverted is returned when the receipt shows the EVM excepted the transaction.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrMissingTransactionHash is wrapped in a BroadcastError when the node accepted a
	// broadcast without naming the transaction.
	ErrMissingTransactionHash = errors.New("node returned no transaction hash")
)

// revertMessage is the message of a reverted call that carries a reason.
const revertMessage = "Contract Call has been reverted by the EVM with the reason: '%s'."

// NonceFetchError reports that the sender's nonce could not be read. Nothing was signed or
// broadcast.
type NonceFetchError struct {
	Address string
	Err     error
}

func (e *NonceFetchError) Error() string {
	return fmt.Sprintf("fetch nonce of %s: %v", e.Address, e.Err)
}

func (e *NonceFetchError) Unwrap() error {
	return e.Err
}

// BroadcastError reports a failed broadcast: either the request itself failed (Err) or the
// node answered with an error payload (Code, Message).
type BroadcastError struct {
	Code    int
	Message string
	Err     error
}

func (e *BroadcastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("broadcast transaction: %v", e.Err)
	}
	return "Error processing transaction request: " + e.Message
}

func (e *BroadcastError) Unwrap() error {
	return e.Err
}

// CallRevertedError reports a read-only call the EVM reverted. Output holds whatever the
// node returned and must not be read as a result.
type CallRevertedError struct {
	Reason string
	Output string
}

func (e *CallRevertedError) Error() string {
	if e.Reason == "" {
		return "Transaction is excepted."
	}
	return fmt.Sprintf(revertMessage, e.Reason)
}

// CallFailedError reports a read-only call the node answered with an error payload.
type CallFailedError struct {
	Code    int
	Message string
}

func (e *CallFailedError) Error() string {
	return e.Message
}
