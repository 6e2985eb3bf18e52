package tolar

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gabapcia/tolclient/internal/chain"
)

// Transaction returns the confirmed transaction with the given hash.
func (c *Client) Transaction(ctx context.Context, hash string) (chain.Transaction, bool, error) {
	tx, found, err := invoke[transactionResponse](ctx, c, methodTransaction, hash)
	if err != nil || !found {
		return chain.Transaction{}, false, err
	}
	return tx.toChainTransaction(hash), true, nil
}

// TransactionReceipt returns the receipt of the transaction with the given hash. found is
// false while the transaction is not confirmed.
func (c *Client) TransactionReceipt(ctx context.Context, hash string) (chain.Receipt, bool, error) {
	receipt, found, err := invoke[receiptResponse](ctx, c, methodTransactionReceipt, hash)
	if err != nil || !found {
		return chain.Receipt{}, false, err
	}
	return receipt.toChainReceipt(hash), true, nil
}

// Nonce returns the next nonce of address at the given block.
func (c *Client) Nonce(ctx context.Context, address string, at chain.BlockParameter) (*big.Int, error) {
	nonce, _, err := invoke[nonceResult](ctx, c, methodNonce, address, at.Value())
	if err != nil {
		return nil, err
	}
	return nonce.Big(), nil
}

// Balance returns the balance of address at the given block.
func (c *Client) Balance(ctx context.Context, address string, at chain.BlockParameter) (*big.Int, error) {
	balance, _, err := invoke[balanceResult](ctx, c, methodBalance, address, at.Value())
	if err != nil {
		return nil, err
	}
	return balance.Big(), nil
}

// GasEstimate returns the gas the node expects tx to consume.
func (c *Client) GasEstimate(ctx context.Context, tx chain.UnsignedTransaction) (*big.Int, error) {
	gas, _, err := invoke[gasEstimateResult](ctx, c, methodGasEstimate, tx)
	if err != nil {
		return nil, err
	}
	return gas.Big(), nil
}

// TransactionProtobuf returns the base64 canonical wire encoding of tx. It has no side
// effects on chain.
func (c *Client) TransactionProtobuf(ctx context.Context, tx chain.UnsignedTransaction) (string, error) {
	encoded, found, err := invoke[protobufResult](ctx, c, methodTransactionProtobuf, tx)
	if err != nil {
		return "", err
	}
	if !found || encoded.encoded == "" {
		return "", fmt.Errorf("%s: empty encoding", methodTransactionProtobuf)
	}
	return encoded.encoded, nil
}

// SendSignedTransaction broadcasts a locally signed transaction. A business error reported
// by the node is returned in the result, not as an error.
func (c *Client) SendSignedTransaction(ctx context.Context, tx chain.SignedTransaction) (chain.SendResult, error) {
	result, _, err := invoke[sendResponse](ctx, c, methodSendSignedTransaction, tx)
	if err != nil {
		return chain.SendResult{}, err
	}
	return result.toSendResult(), nil
}

// SendRawTransaction has the node sign tx with the key it keeps for the sender, unlocked
// by password, and broadcast it.
func (c *Client) SendRawTransaction(ctx context.Context, tx chain.UnsignedTransaction, password string) (chain.SendResult, error) {
	params := rawTransactionParams{
		UnsignedTransaction: tx,
		SenderPassword:      password,
	}

	result, _, err := invoke[sendResponse](ctx, c, methodSendRawTransaction, params)
	if err != nil {
		return chain.SendResult{}, err
	}
	return result.toSendResult(), nil
}

// TryCall executes a read-only call against the latest state.
func (c *Client) TryCall(ctx context.Context, call chain.CallRequest) (chain.CallResult, error) {
	result, _, err := invoke[callResponse](ctx, c, methodTryCall, call, chain.Latest.Value())
	if err != nil {
		return chain.CallResult{}, err
	}
	return result.toCallResult(), nil
}
