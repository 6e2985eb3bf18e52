package txlifecycle

// State is a step of a transaction's lifecycle.
type State uint8

const (
	StateNonceFetch State = iota
	StateSigning
	StateBroadcasting
	StateReceiptPolling
	StateConfirmed
	StateReverted
	StateFailed
	StateUnknown // broadcast, but no receipt within the poll budget
)

var stateNames = [...]string{
	StateNonceFetch:     "nonce_fetch",
	StateSigning:        "signing",
	StateBroadcasting:   "broadcasting",
	StateReceiptPolling: "receipt_polling",
	StateConfirmed:      "confirmed",
	StateReverted:       "reverted",
	StateFailed:         "failed",
	StateUnknown:        "unknown",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s >= StateConfirmed
}
