package receipt

import (
	"time"

	"github.com/google/uuid"
)

// pollState tracks a single WaitForReceipt call: how many lookups it made, when, and how
// it ended.
type pollState struct {
	id            string     // Unique identifier for this poll (UUIDv7)
	hash          string     // Transaction whose receipt is awaited
	startedAt     time.Time  // When the poll began
	attempts      uint       // Lookups made so far
	lastAttemptAt *time.Time // When the last lookup ran (nil if never attempted)
	lastError     error      // The most recent failure, errPending included
	finalized     bool       // Whether the poll has ended
	finalizedAt   *time.Time // When the poll ended (nil if still running)
}

func newPollState(hash string) *pollState {
	return &pollState{
		id:        uuid.Must(uuid.NewV7()).String(),
		hash:      hash,
		startedAt: time.Now().UTC(),
	}
}

// recordAttempt counts a new lookup. No-op once finalized.
func (s *pollState) recordAttempt() {
	if s.finalized {
		return
	}

	now := time.Now().UTC()

	s.attempts++
	s.lastAttemptAt = &now
}

// recordAttemptFailure keeps err as the latest failure. No-op once finalized.
func (s *pollState) recordAttemptFailure(err error) {
	if s.finalized {
		return
	}

	s.lastError = err
}

// finalizeWithSuccess ends the poll with a receipt. No-op once finalized.
func (s *pollState) finalizeWithSuccess() {
	if s.finalized {
		return
	}

	now := time.Now().UTC()

	s.finalized = true
	s.finalizedAt = &now
	s.lastError = nil
}

// finalizeWithFailure ends the poll with err. No-op once finalized.
func (s *pollState) finalizeWithFailure(err error) {
	if s.finalized {
		return
	}

	now := time.Now().UTC()

	s.finalized = true
	s.finalizedAt = &now
	s.lastError = err
}

// elapsed is the time from start to finalization, or to now while running.
func (s *pollState) elapsed() time.Duration {
	if s.finalizedAt != nil {
		return s.finalizedAt.Sub(s.startedAt)
	}
	return time.Since(s.startedAt)
}
