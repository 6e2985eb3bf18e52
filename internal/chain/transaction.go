package chain

import "math/big"

// ContractDeployAddress is the receiver address that makes a transaction deploy its payload
// as a new contract.
const ContractDeployAddress = "54000000000000000000000000000000000000000023199e2b"

// Transaction is a confirmed transaction as reported by the node.
type Transaction struct {
	Hash                  string   `json:"hash"`
	BlockHash             string   `json:"block_hash"`
	TransactionIndex      uint64   `json:"transaction_index"`
	SenderAddress         string   `json:"sender_address"`
	ReceiverAddress       string   `json:"receiver_address"`
	Value                 *big.Int `json:"value"`
	Gas                   *big.Int `json:"gas"`
	GasPrice              *big.Int `json:"gas_price"`
	Data                  string   `json:"data"`
	Nonce                 *big.Int `json:"nonce"`
	GasUsed               *big.Int `json:"gas_used"`
	GasRefunded           *big.Int `json:"gas_refunded"`
	NewAddress            string   `json:"new_address"`
	Output                string   `json:"output"`
	Excepted              bool     `json:"excepted"`
	ConfirmationTimestamp int64    `json:"confirmation_timestamp"`
}

// UnsignedTransaction is a transaction ready to be encoded and signed. It is a value type:
// copies never share state, and nothing in this module mutates one after construction.
// An empty ReceiverAddress is only valid for contract creation.
type UnsignedTransaction struct {
	SenderAddress   string   `json:"sender_address" validate:"required,tol_address"`
	ReceiverAddress string   `json:"receiver_address" validate:"omitempty,tol_address"`
	Amount          *big.Int `json:"amount" validate:"required"`
	Gas             *big.Int `json:"gas" validate:"required"`
	GasPrice        *big.Int `json:"gas_price" validate:"required"`
	Data            string   `json:"data" validate:"hexdata"`
	Nonce           *big.Int `json:"nonce" validate:"required"`
}

// SignatureEnvelope carries the canonical-encoding hash, the signature over it and the
// identity of the signer, all hex encoded without prefix.
type SignatureEnvelope struct {
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	SignerID  string `json:"signer_id"`
}

// SignedTransaction is the broadcast payload of a locally signed transaction.
type SignedTransaction struct {
	Body    UnsignedTransaction `json:"body"`
	SigData SignatureEnvelope   `json:"sig_data"`
}

// NodeError is a business-level error the node reports inside an otherwise successful response.
type NodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SendResult is the node's answer to a broadcast.
type SendResult struct {
	TxHash string
	Error  *NodeError
}

// Failed reports whether the node rejected the transaction.
func (r SendResult) Failed() bool {
	return r.Error != nil
}
