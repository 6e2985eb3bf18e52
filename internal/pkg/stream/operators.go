package stream

import "context"

// Empty returns a stream that completes without items.
func Empty[T any]() Stream[T] {
	return Stream[T]{}
}

// Error returns a stream that fails with err without emitting.
func Error[T any](err error) Stream[T] {
	return New(func(context.Context, func(T) bool) error {
		return err
	})
}

// FromSlice returns a stream over items.
func FromSlice[T any](items ...T) Stream[T] {
	return New(func(ctx context.Context, emit func(T) bool) error {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !emit(item) {
				return nil
			}
		}
		return nil
	})
}

// Defer builds the stream with fn each time it is run.
func Defer[T any](fn func(ctx context.Context) (Stream[T], error)) Stream[T] {
	return New(func(ctx context.Context, emit func(T) bool) error {
		s, err := fn(ctx)
		if err != nil {
			return err
		}
		return s.Run(ctx, emit)
	})
}

// TryMap transforms every item of s with fn. The first error fn returns ends the stream
// with that error.
func TryMap[T, U any](s Stream[T], fn func(ctx context.Context, item T) (U, error)) Stream[U] {
	return FlatMap(s, func(item T) Stream[U] {
		return Defer(func(ctx context.Context) (Stream[U], error) {
			mapped, err := fn(ctx, item)
			if err != nil {
				return Stream[U]{}, err
			}
			return FromSlice(mapped), nil
		})
	})
}

// FlatMap replaces every item of s with the stream fn returns for it. Inner streams run one
// at a time, in upstream order, so the output keeps the order of s and of each expansion.
// An inner error ends the whole stream.
func FlatMap[T, U any](s Stream[T], fn func(T) Stream[U]) Stream[U] {
	return New(func(ctx context.Context, emit func(U) bool) error {
		var innerErr error
		err := s.Run(ctx, func(item T) bool {
			stopped := false
			innerErr = fn(item).Run(ctx, func(v U) bool {
				if !emit(v) {
					stopped = true
					return false
				}
				return true
			})
			return innerErr == nil && !stopped
		})
		if innerErr != nil {
			return innerErr
		}
		return err
	})
}

// Filter keeps the items of s for which keep returns true.
func Filter[T any](s Stream[T], keep func(T) bool) Stream[T] {
	return New(func(ctx context.Context, emit func(T) bool) error {
		return s.Run(ctx, func(item T) bool {
			if !keep(item) {
				return true
			}
			return emit(item)
		})
	})
}

// Take ends the stream after its first n items.
func Take[T any](s Stream[T], n int) Stream[T] {
	return New(func(ctx context.Context, emit func(T) bool) error {
		if n <= 0 {
			return nil
		}

		taken := 0
		return s.Run(ctx, func(item T) bool {
			taken++
			return emit(item) && taken < n
		})
	})
}

// Concat runs streams one after the other.
func Concat[T any](streams ...Stream[T]) Stream[T] {
	return New(func(ctx context.Context, emit func(T) bool) error {
		stopped := false
		for _, s := range streams {
			err := s.Run(ctx, func(item T) bool {
				if !emit(item) {
					stopped = true
					return false
				}
				return true
			})
			if err != nil || stopped {
				return err
			}
		}
		return nil
	})
}
