// Package chain defines the client-side domain model of the Tolar chain: blocks,
// transactions, receipts, logs, and the request types submitted to a node.
package chain

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"
)

// Block is a confirmed block as reported by the node.
type Block struct {
	Index                 uint64   `json:"block_index"`
	Hash                  string   `json:"hash"`
	PreviousHash          string   `json:"previous_block_hash"`
	TransactionHashes     []string `json:"transaction_hashes"`
	ConfirmationTimestamp int64    `json:"confirmation_timestamp"`
}

// blockTag identifies the symbolic kind of a BlockParameter.
type blockTag uint8

const (
	tagIndex blockTag = iota
	tagEarliest
	tagLatest
)

// BlockParameter selects a block either by concrete index or by a symbolic marker that is
// resolved against the chain head at the time of use.
type BlockParameter struct {
	tag   blockTag
	index uint64
}

var (
	// Earliest is the genesis block.
	Earliest = BlockParameter{tag: tagEarliest}

	// Latest is the current chain head.
	Latest = BlockParameter{tag: tagLatest}
)

// AtIndex selects the block with the given index.
func AtIndex(index uint64) BlockParameter {
	return BlockParameter{tag: tagIndex, index: index}
}

// ParseBlockParameter reads "earliest", "latest" or a decimal block index.
func ParseBlockParameter(s string) (BlockParameter, error) {
	switch strings.ToLower(s) {
	case "earliest":
		return Earliest, nil
	case "latest":
		return Latest, nil
	}

	index, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return BlockParameter{}, fmt.Errorf("invalid block parameter %q: %w", s, err)
	}
	return AtIndex(index), nil
}

// Resolve returns the concrete index selected by p given the current head index.
func (p BlockParameter) Resolve(head uint64) uint64 {
	switch p.tag {
	case tagEarliest:
		return 0
	case tagLatest:
		return head
	default:
		return p.index
	}
}

// IsLatest reports whether p is the symbolic head marker.
func (p BlockParameter) IsLatest() bool {
	return p.tag == tagLatest
}

// Value is the wire form of the parameter: "latest", "earliest", or the decimal index.
func (p BlockParameter) Value() string {
	switch p.tag {
	case tagEarliest:
		return "earliest"
	case tagLatest:
		return "latest"
	default:
		return fmt.Sprintf("%d", p.index)
	}
}

func (p BlockParameter) String() string {
	return p.Value()
}

// BlockRange is a resolved, inclusive range of block indices with a traversal direction.
// A range whose Start is greater than its End is empty.
type BlockRange struct {
	Start     uint64
	End       uint64
	Ascending bool
}

// Len returns the number of indices in the range. The full uint64 range holds one index
// more than a uint64 can count, so its Len saturates at math.MaxUint64.
func (r BlockRange) Len() uint64 {
	if r.Start > r.End {
		return 0
	}
	if r.Start == 0 && r.End == math.MaxUint64 {
		return math.MaxUint64
	}
	return r.End - r.Start + 1
}

// Indices yields the indices of the range in traversal order: Start..End when ascending,
// End..Start otherwise.
func (r BlockRange) Indices() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if r.Start > r.End {
			return
		}

		if r.Ascending {
			for index := r.Start; ; index++ {
				if !yield(index) || index == r.End {
					return
				}
			}
		}

		for index := r.End; ; index-- {
			if !yield(index) || index == r.Start {
				return
			}
		}
	}
}
