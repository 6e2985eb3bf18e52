// Package chflow provides context-aware helpers for moving values through channels,
// so blocking sends always give way to cancellation.
package chflow

import "context"

// Send delivers data on ch unless ctx is done first. It reports whether the value was sent.
// When both are ready the choice is random, so callers that must not send after
// cancellation check ctx.Err themselves.
func Send[T any](ctx context.Context, ch chan<- T, data T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- data:
		return true
	}
}

// Drain discards buffered values until ch is closed and returns how many were dropped.
func Drain[T any](ch <-chan T) int {
	n := 0
	for range ch {
		n++
	}
	return n
}
