// Package txlifecycle drives a transaction from nonce lookup to a final receipt.
//
// A Manager runs NonceFetch, then Signing (local keys only), Broadcasting and
// ReceiptPolling, and ends in Confirmed, Reverted, Failed or Unknown. Unknown means the
// transaction was broadcast but no receipt showed up within the poll budget: it may still
// confirm. Read-only calls go through a Caller and skip every one of those steps.
package txlifecycle

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/gabapcia/tolclient/internal/chain"
	"github.com/gabapcia/tolclient/internal/pkg/logger"
	"github.com/gabapcia/tolclient/internal/pkg/telemetry"
	"github.com/gabapcia/tolclient/internal/pkg/validator"
	"github.com/gabapcia/tolclient/internal/receipt"
	"github.com/gabapcia/tolclient/internal/signer"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("txlifecycle")

// Node is the part of the Tolar client a lifecycle talks to.
type Node interface {
	CallNode

	Nonce(ctx context.Context, address string, at chain.BlockParameter) (*big.Int, error)
	GasEstimate(ctx context.Context, tx chain.UnsignedTransaction) (*big.Int, error)
	SendSignedTransaction(ctx context.Context, tx chain.SignedTransaction) (chain.SendResult, error)
	SendRawTransaction(ctx context.Context, tx chain.UnsignedTransaction, password string) (chain.SendResult, error)
}

// Signer signs transactions locally.
type Signer interface {
	SignTransaction(ctx context.Context, tx *signer.Transaction, creds signer.Credentials) (chain.SignedTransaction, error)
}

// ReceiptWaiter waits for the receipt of a broadcast transaction.
type ReceiptWaiter interface {
	WaitForReceipt(ctx context.Context, hash string) (chain.Receipt, error)
}

// Request describes a transaction to submit. Nil Amount means zero.
type Request struct {
	ReceiverAddress string `validate:"required,tol_address"`
	Amount          *big.Int
	Gas             *big.Int `validate:"required"`
	GasPrice        *big.Int `validate:"required"`
	Data            string   `validate:"hexdata"`
}

// Result is where a lifecycle ended. TxHash is set once the node accepted the broadcast,
// Receipt once it was found.
type Result struct {
	State   State
	TxHash  string
	Receipt chain.Receipt
}

// StateObserver is told about every state a lifecycle enters.
type StateObserver func(ctx context.Context, state State)

type config struct {
	observer StateObserver
}

// Option configures a Manager.
type Option func(*config)

// WithStateObserver registers fn to be called on every state transition.
func WithStateObserver(fn StateObserver) Option {
	return func(c *config) {
		c.observer = fn
	}
}

// broadcastFunc signs, if needed, and submits body.
type broadcastFunc func(ctx context.Context, body chain.UnsignedTransaction, enter func(State)) (chain.SendResult, error)

// Manager submits transactions for a single sender.
type Manager struct {
	*Caller

	node      Node
	sender    string
	receipts  ReceiptWaiter
	broadcast broadcastFunc
	cfg       config
}

func newManager(node Node, sender string, receipts ReceiptWaiter, broadcast broadcastFunc, opts []Option) *Manager {
	cfg := config{
		observer: func(context.Context, State) {},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Manager{
		Caller:    NewCaller(node, sender),
		node:      node,
		sender:    sender,
		receipts:  receipts,
		broadcast: broadcast,
		cfg:       cfg,
	}
}

// NewSigned creates a Manager that signs transactions locally with creds.
func NewSigned(node Node, s Signer, creds signer.Credentials, sender string, receipts ReceiptWaiter, opts ...Option) *Manager {
	broadcast := func(ctx context.Context, body chain.UnsignedTransaction, enter func(State)) (chain.SendResult, error) {
		enter(StateSigning)
		signed, err := s.SignTransaction(ctx, signer.NewTransaction(body), creds)
		if err != nil {
			return chain.SendResult{}, fmt.Errorf("sign transaction: %w", err)
		}

		enter(StateBroadcasting)
		result, err := node.SendSignedTransaction(ctx, signed)
		if err != nil {
			return chain.SendResult{}, &BroadcastError{Err: err}
		}
		return result, nil
	}

	return newManager(node, sender, receipts, broadcast, opts)
}

// NewRemote creates a Manager that lets the node sign with the key it holds for sender,
// unlocked by password.
func NewRemote(node Node, sender, password string, receipts ReceiptWaiter, opts ...Option) *Manager {
	broadcast := func(ctx context.Context, body chain.UnsignedTransaction, enter func(State)) (chain.SendResult, error) {
		enter(StateBroadcasting)
		result, err := node.SendRawTransaction(ctx, body, password)
		if err != nil {
			return chain.SendResult{}, &BroadcastError{Err: err}
		}
		return result, nil
	}

	return newManager(node, sender, receipts, broadcast, opts)
}

// Sender returns the address transactions are sent from.
func (m *Manager) Sender() string {
	return m.sender
}

// Send submits req and waits for its receipt.
//
// The error is nil only in StateConfirmed. StateReverted comes with ErrTransactionReverted.
// StateUnknown comes with receipt.ErrAttemptsExhausted, or with the context error when ctx
// ended while waiting for the receipt; either way TxHash is set and the transaction may
// still confirm. Failures before the broadcast was accepted end in StateFailed.
func (m *Manager) Send(ctx context.Context, req Request) (Result, error) {
	ctx, span := tracer.Start(ctx, "txlifecycle.Send", trace.WithAttributes(
		attribute.String("tx.sender", m.sender),
		attribute.String("tx.receiver", req.ReceiverAddress),
	))
	defer span.End()

	result, err := m.send(ctx, span, req)

	span.SetAttributes(attribute.String("tx.state", result.State.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		logger.Warn(ctx, "transaction did not confirm",
			"tx.sender", m.sender,
			"tx.hash", result.TxHash,
			"tx.state", result.State.String(),
			"error", err,
		)
	}

	return result, err
}

// Deploy submits req as a contract creation: its Data is the contract code and its receiver
// is replaced with the deploy address.
func (m *Manager) Deploy(ctx context.Context, req Request) (Result, error) {
	req.ReceiverAddress = chain.ContractDeployAddress
	return m.Send(ctx, req)
}

// EstimateGas asks the node how much gas req would consume if sent now.
func (m *Manager) EstimateGas(ctx context.Context, req Request) (*big.Int, error) {
	if err := validator.Validate(req); err != nil {
		return nil, err
	}

	nonce, err := m.node.Nonce(ctx, m.sender, chain.Latest)
	if err != nil {
		return nil, &NonceFetchError{Address: m.sender, Err: err}
	}

	return m.node.GasEstimate(ctx, m.unsigned(req, nonce))
}

func (m *Manager) send(ctx context.Context, span trace.Span, req Request) (Result, error) {
	result := Result{State: StateNonceFetch}
	enter := func(state State) {
		result.State = state
		span.AddEvent(state.String())
		logger.Debug(ctx, "transaction state changed",
			"tx.sender", m.sender,
			"tx.hash", result.TxHash,
			"tx.state", state.String(),
		)
		m.cfg.observer(ctx, state)
	}

	if err := validator.Validate(req); err != nil {
		enter(StateFailed)
		return result, err
	}

	enter(StateNonceFetch)
	nonce, err := m.node.Nonce(ctx, m.sender, chain.Latest)
	if err != nil {
		enter(StateFailed)
		return result, &NonceFetchError{Address: m.sender, Err: err}
	}

	sent, err := m.broadcast(ctx, m.unsigned(req, nonce), enter)
	if err != nil {
		enter(StateFailed)
		return result, err
	}
	if sent.Failed() {
		enter(StateFailed)
		return result, &BroadcastError{Code: sent.Error.Code, Message: sent.Error.Message}
	}
	if sent.TxHash == "" {
		enter(StateFailed)
		return result, &BroadcastError{Err: ErrMissingTransactionHash}
	}
	result.TxHash = sent.TxHash

	// The broadcast was accepted, so a wait cut short by ctx leaves the outcome unknown.
	enter(StateReceiptPolling)
	rec, err := m.receipts.WaitForReceipt(ctx, sent.TxHash)
	switch {
	case errors.Is(err, receipt.ErrAttemptsExhausted), err != nil && ctx.Err() != nil:
		enter(StateUnknown)
		return result, err
	case err != nil:
		enter(StateFailed)
		return result, err
	}
	result.Receipt = rec

	if rec.Excepted {
		enter(StateReverted)
		return result, fmt.Errorf("%w: %s", ErrTransactionReverted, sent.TxHash)
	}

	enter(StateConfirmed)
	return result, nil
}

func (m *Manager) unsigned(req Request, nonce *big.Int) chain.UnsignedTransaction {
	amount := req.Amount
	if amount == nil {
		amount = big.NewInt(0)
	}

	return chain.UnsignedTransaction{
		SenderAddress:   m.sender,
		ReceiverAddress: req.ReceiverAddress,
		Amount:          amount,
		Gas:             req.Gas,
		GasPrice:        req.GasPrice,
		Data:            req.Data,
		Nonce:           nonce,
	}
}
