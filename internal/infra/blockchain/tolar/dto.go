package tolar

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/gabapcia/tolclient/internal/chain"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// quantity is a non-negative integer the node may send as a JSON number, a decimal string
// or a 0x-prefixed hex string.
type quantity struct {
	value *big.Int
}

func (q *quantity) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		q.value = nil
		return nil
	}

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return fmt.Errorf("invalid quantity %s", data)
	}

	q.value = v
	return nil
}

// Big returns the value, or zero when it was absent.
func (q quantity) Big() *big.Int {
	if q.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(q.value)
}

// Uint64 returns the value truncated to 64 bits.
func (q quantity) Uint64() uint64 {
	if q.value == nil {
		return 0
	}
	return q.value.Uint64()
}

// unmarshalField decodes data into v, reading it from field first when data is an object.
// Nodes answer some scalar methods with a bare value and others with a one-field object.
func unmarshalField(data []byte, field string, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var object map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return err
		}

		value, ok := object[field]
		if !ok {
			return fmt.Errorf("missing field %q", field)
		}
		trimmed = value
	}

	return json.Unmarshal(trimmed, v)
}

type blockCountResult struct{ quantity }

func (r *blockCountResult) UnmarshalJSON(data []byte) error {
	return unmarshalField(data, "block_count", &r.quantity)
}

type nonceResult struct{ quantity }

func (r *nonceResult) UnmarshalJSON(data []byte) error {
	return unmarshalField(data, "nonce", &r.quantity)
}

type balanceResult struct{ quantity }

func (r *balanceResult) UnmarshalJSON(data []byte) error {
	return unmarshalField(data, "balance", &r.quantity)
}

type gasEstimateResult struct{ quantity }

func (r *gasEstimateResult) UnmarshalJSON(data []byte) error {
	return unmarshalField(data, "gas_estimate", &r.quantity)
}

type protobufResult struct {
	encoded string
}

func (r *protobufResult) UnmarshalJSON(data []byte) error {
	return unmarshalField(data, "transaction_protobuf", &r.encoded)
}

type blockResponse struct {
	BlockIndex            quantity `json:"block_index"`
	Hash                  string   `json:"hash"`
	PreviousBlockHash     string   `json:"previous_block_hash"`
	TransactionHashes     []string `json:"transaction_hashes"`
	ConfirmationTimestamp quantity `json:"confirmation_timestamp"`
}

func (b blockResponse) toChainBlock() chain.Block {
	return chain.Block{
		Index:                 b.BlockIndex.Uint64(),
		Hash:                  b.Hash,
		PreviousHash:          b.PreviousBlockHash,
		TransactionHashes:     b.TransactionHashes,
		ConfirmationTimestamp: int64(b.ConfirmationTimestamp.Uint64()),
	}
}

type transactionResponse struct {
	Hash                  string   `json:"transaction_hash"`
	BlockHash             string   `json:"block_hash"`
	TransactionIndex      quantity `json:"transaction_index"`
	SenderAddress         string   `json:"sender_address"`
	ReceiverAddress       string   `json:"receiver_address"`
	Value                 quantity `json:"value"`
	Gas                   quantity `json:"gas"`
	GasPrice              quantity `json:"gas_price"`
	Data                  string   `json:"data"`
	Nonce                 quantity `json:"nonce"`
	GasUsed               quantity `json:"gas_used"`
	GasRefunded           quantity `json:"gas_refunded"`
	NewAddress            string   `json:"new_address"`
	Output                string   `json:"output"`
	Excepted              bool     `json:"excepted"`
	ConfirmationTimestamp quantity `json:"confirmation_timestamp"`
}

func (t transactionResponse) toChainTransaction(hash string) chain.Transaction {
	if t.Hash != "" {
		hash = t.Hash
	}

	return chain.Transaction{
		Hash:                  hash,
		BlockHash:             t.BlockHash,
		TransactionIndex:      t.TransactionIndex.Uint64(),
		SenderAddress:         t.SenderAddress,
		ReceiverAddress:       t.ReceiverAddress,
		Value:                 t.Value.Big(),
		Gas:                   t.Gas.Big(),
		GasPrice:              t.GasPrice.Big(),
		Data:                  t.Data,
		Nonce:                 t.Nonce.Big(),
		GasUsed:               t.GasUsed.Big(),
		GasRefunded:           t.GasRefunded.Big(),
		NewAddress:            t.NewAddress,
		Output:                t.Output,
		Excepted:              t.Excepted,
		ConfirmationTimestamp: int64(t.ConfirmationTimestamp.Uint64()),
	}
}

type logResponse struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
}

type receiptResponse struct {
	Hash             string        `json:"hash"`
	BlockHash        string        `json:"block_hash"`
	BlockNumber      quantity      `json:"block_number"`
	TransactionIndex quantity      `json:"transaction_index"`
	SenderAddress    string        `json:"sender_address"`
	ReceiverAddress  string        `json:"receiver_address"`
	NewAddress       string        `json:"new_address"`
	GasUsed          quantity      `json:"gas_used"`
	Excepted         bool          `json:"excepted"`
	Logs             []logResponse `json:"logs"`
}

func (r receiptResponse) toChainReceipt(hash string) chain.Receipt {
	if r.Hash != "" {
		hash = r.Hash
	}

	logs := make([]chain.Log, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = chain.Log{
			Address:         l.Address,
			Topics:          l.Topics,
			Data:            l.Data,
			BlockIndex:      r.BlockNumber.Uint64(),
			BlockHash:       r.BlockHash,
			TransactionHash: hash,
			LogIndex:        uint64(i),
		}
	}

	return chain.Receipt{
		TransactionHash:  hash,
		BlockHash:        r.BlockHash,
		BlockIndex:       r.BlockNumber.Uint64(),
		TransactionIndex: r.TransactionIndex.Uint64(),
		SenderAddress:    r.SenderAddress,
		ReceiverAddress:  r.ReceiverAddress,
		NewAddress:       r.NewAddress,
		GasUsed:          r.GasUsed.Big(),
		Excepted:         r.Excepted,
		Logs:             logs,
	}
}

// ethLogResponse is a log as returned by node-side eth_getFilterChanges.
type ethLogResponse struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     quantity `json:"blockNumber"`
	BlockHash       string   `json:"blockHash"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        quantity `json:"logIndex"`
}

func (l ethLogResponse) toChainLog() chain.Log {
	return chain.Log{
		Address:         l.Address,
		Topics:          l.Topics,
		Data:            l.Data,
		BlockIndex:      l.BlockNumber.Uint64(),
		BlockHash:       l.BlockHash,
		TransactionHash: l.TransactionHash,
		LogIndex:        l.LogIndex.Uint64(),
	}
}

// ethLogFilter is the eth_newFilter criteria object. A nil topic position is a wildcard.
type ethLogFilter struct {
	FromBlock string   `json:"fromBlock"`
	Address   []string `json:"address,omitempty"`
	Topics    []any    `json:"topics,omitempty"`
}

func newEthLogFilter(query chain.LogQuery) ethLogFilter {
	topics := make([]any, len(query.Topics))
	for i, accepted := range query.Topics {
		if len(accepted) > 0 {
			topics[i] = accepted
		}
	}

	return ethLogFilter{
		FromBlock: chain.Latest.Value(),
		Address:   query.Addresses,
		Topics:    topics,
	}
}

// sendResponse is the broadcast answer: either a bare transaction hash or an object that
// may carry a business error next to it.
type sendResponse struct {
	TransactionHash string           `json:"transaction_hash"`
	Error           *chain.NodeError `json:"error"`
}

func (r *sendResponse) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.TransactionHash)
	}

	type plain sendResponse
	return json.Unmarshal(trimmed, (*plain)(r))
}

func (r sendResponse) toSendResult() chain.SendResult {
	return chain.SendResult{
		TxHash: r.TransactionHash,
		Error:  r.Error,
	}
}

type callResponse struct {
	Output       string           `json:"output"`
	Excepted     bool             `json:"excepted"`
	RevertReason string           `json:"revert_reason"`
	Error        *chain.NodeError `json:"error"`
}

func (r callResponse) toCallResult() chain.CallResult {
	reason := r.RevertReason
	if r.Excepted && reason == "" {
		reason = decodeRevertReason(r.Output)
	}

	return chain.CallResult{
		Output:       r.Output,
		Excepted:     r.Excepted,
		RevertReason: reason,
		Error:        r.Error,
	}
}

// decodeRevertReason extracts the Error(string) message the EVM returns on revert, or
// returns an empty string when output does not carry one.
func decodeRevertReason(output string) string {
	data, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(output, "0x"), "0X"))
	if err != nil {
		return ""
	}

	reason, err := abi.UnpackRevert(data)
	if err != nil {
		return ""
	}
	return reason
}

// rawTransactionParams is the account_sendRawTransaction body: the node signs with the
// key it stores for the sender, unlocked by the password.
type rawTransactionParams struct {
	chain.UnsignedTransaction
	SenderPassword string `json:"sender_password"`
}
