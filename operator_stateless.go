package stream

import "context"

// Map transforms each value with f. A panic in f is captured as a
// UserFunctionError, delivered as onError, and upstream is disposed.
func Map[T, R any](f func(value T) R) Operator[T, R] {
	return MapWithContext(func(_ context.Context, value T) R { return f(value) })
}

// MapWithContext is the context-threaded twin of Map.
func MapWithContext[T, R any](f func(ctx context.Context, value T) R) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) { destination.NextWithContext(ctx, f(ctx, value)) },
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Filter forwards only values for which predicate returns true.
func Filter[T any](predicate func(value T) bool) Operator[T, T] {
	return FilterWithContext(func(_ context.Context, value T) bool { return predicate(value) })
}

// FilterWithContext is the context-threaded twin of Filter.
func FilterWithContext[T any](predicate func(ctx context.Context, value T) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					if predicate(ctx, value) {
						destination.NextWithContext(ctx, value)
					}
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Scan accumulates values with accumulator, starting from seed, emitting
// each running total.
func Scan[T, R any](seed R, accumulator func(acc R, value T) R) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
			acc := seed
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					acc = accumulator(acc, value)
					destination.NextWithContext(ctx, acc)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Take forwards at most count values, then completes and unsubscribes from
// the source.
func Take[T any](count int64) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			if count <= 0 {
				destination.CompleteWithContext(ctx)
				return nil
			}

			var n int64
			subscriber := NewSubscriber(destination)
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					n++
					subscriber.NextWithContext(ctx, value)
					if n >= count {
						subscriber.CompleteWithContext(ctx)
					}
				},
				subscriber.ErrorWithContext,
				subscriber.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// TakeWhile forwards values while predicate holds, then completes as soon as
// it returns false (the failing value is not forwarded).
func TakeWhile[T any](predicate func(value T) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			subscriber := NewSubscriber(destination)
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					if !predicate(value) {
						subscriber.CompleteWithContext(ctx)
						return
					}
					subscriber.NextWithContext(ctx, value)
				},
				subscriber.ErrorWithContext,
				subscriber.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Skip discards the first count values, then forwards the rest unchanged.
func Skip[T any](count int64) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			var n int64
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					n++
					if n > count {
						destination.NextWithContext(ctx, value)
					}
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// SkipWhile discards values while predicate holds, then forwards everything
// from the first failing value onward (including that value).
func SkipWhile[T any](predicate func(value T) bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			skipping := true
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					if skipping && predicate(value) {
						return
					}
					skipping = false
					destination.NextWithContext(ctx, value)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// DistinctUntilChanged suppresses a value equal (by key) to the immediately
// preceding one.
func DistinctUntilChanged[T any, K comparable](key func(value T) K) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			var last K
			hasLast := false
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					k := key(value)
					if hasLast && k == last {
						return
					}
					hasLast = true
					last = k
					destination.NextWithContext(ctx, value)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Cast converts each value from T to R via the supplied conversion. Unlike
// Map, it exists to read as a type transition at call sites (`Cast[int,
// string](strconv.Itoa)`-style pipelines), but is otherwise identical.
func Cast[T, R any](convert func(value T) R) Operator[T, R] {
	return Map(convert)
}
