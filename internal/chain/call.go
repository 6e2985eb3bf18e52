package chain

import "math/big"

// CallRequest describes a read-only contract call.
type CallRequest struct {
	SenderAddress   string   `json:"sender_address" validate:"required,tol_address"`
	ReceiverAddress string   `json:"receiver_address" validate:"required,tol_address"`
	Amount          *big.Int `json:"amount"`
	Gas             *big.Int `json:"gas" validate:"required"`
	GasPrice        *big.Int `json:"gas_price" validate:"required"`
	Data            string   `json:"data" validate:"hexdata"`
}

// CallResult is the outcome of a try-call. A result is only usable output when it is
// neither excepted nor carries an error.
type CallResult struct {
	Output       string
	Excepted     bool
	RevertReason string
	Error        *NodeError
}
