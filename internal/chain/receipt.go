package chain

import (
	"math/big"
	"slices"
	"strings"
)

// Log is an event emitted by a contract during transaction execution.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockIndex      uint64   `json:"block_index"`
	BlockHash       string   `json:"block_hash"`
	TransactionHash string   `json:"transaction_hash"`
	LogIndex        uint64   `json:"log_index"`
}

// Receipt is the finalized outcome of a transaction.
type Receipt struct {
	TransactionHash  string   `json:"transaction_hash"`
	BlockHash        string   `json:"block_hash"`
	BlockIndex       uint64   `json:"block_index"`
	TransactionIndex uint64   `json:"transaction_index"`
	SenderAddress    string   `json:"sender_address"`
	ReceiverAddress  string   `json:"receiver_address"`
	NewAddress       string   `json:"new_address"`
	GasUsed          *big.Int `json:"gas_used"`
	Excepted         bool     `json:"excepted"`
	Logs             []Log    `json:"logs"`
}

// Successful reports whether the transaction executed without being excepted by the EVM.
func (r Receipt) Successful() bool {
	return !r.Excepted
}

// LogQuery selects logs by emitting address and topics.
//
// An empty Addresses list matches any address. Topics is positional: Topics[i] lists the
// accepted values for the log's i-th topic, and an empty entry matches anything.
type LogQuery struct {
	Addresses []string
	Topics    [][]string
}

// Matches reports whether log satisfies the query. Addresses and topics compare
// case-insensitively.
func (q LogQuery) Matches(log Log) bool {
	if len(q.Addresses) > 0 && !slices.ContainsFunc(q.Addresses, equalFold(log.Address)) {
		return false
	}

	for i, accepted := range q.Topics {
		if len(accepted) == 0 {
			continue
		}

		if i >= len(log.Topics) || !slices.ContainsFunc(accepted, equalFold(log.Topics[i])) {
			return false
		}
	}

	return true
}

func equalFold(s string) func(string) bool {
	return func(candidate string) bool {
		return strings.EqualFold(candidate, s)
	}
}
