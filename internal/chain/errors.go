package chain

import "errors"

var (
	// ErrBlockNotFound indicates a block the node does not know.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTransactionNotFound indicates a transaction the node does not know.
	ErrTransactionNotFound = errors.New("transaction not found")
)
