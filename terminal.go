package stream

import (
	"context"
	"sort"

	"github.com/kesho/stream/internal/constraints"
)

// ToList collects every value from source into a slice, delivered via a
// single-element Observable once source completes.
func ToList[T any](source Observable[T]) Observable[[]T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[[]T]) Teardown {
		var values []T
		sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
			func(_ context.Context, v T) { values = append(values, v) },
			destination.ErrorWithContext,
			func(ctx context.Context) {
				destination.NextWithContext(ctx, values)
				destination.CompleteWithContext(ctx)
			},
		))
		return sub.Unsubscribe
	})
}

// ToSortedList is ToList with the collected slice sorted by less.
func ToSortedList[T any](less func(a, b T) bool) func(source Observable[T]) Observable[[]T] {
	return func(source Observable[T]) Observable[[]T] {
		return Map(func(values []T) []T {
			sort.Slice(values, func(i, j int) bool { return less(values[i], values[j]) })
			return values
		})(ToList(source))
	}
}

// ToMap collects source into a map keyed by keySelector, with later values
// overwriting earlier ones sharing a key, delivered once source completes.
func ToMap[T any, K comparable](keySelector func(value T) K) func(source Observable[T]) Observable[map[K]T] {
	return func(source Observable[T]) Observable[map[K]T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[map[K]T]) Teardown {
			result := map[K]T{}
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(_ context.Context, v T) { result[keySelector(v)] = v },
				destination.ErrorWithContext,
				func(ctx context.Context) {
					destination.NextWithContext(ctx, result)
					destination.CompleteWithContext(ctx)
				},
			))
			return sub.Unsubscribe
		})
	}
}

// ToMultimap collects source into a map of slices keyed by keySelector,
// preserving arrival order within each key's slice.
func ToMultimap[T any, K comparable](keySelector func(value T) K) func(source Observable[T]) Observable[map[K][]T] {
	return func(source Observable[T]) Observable[map[K][]T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[map[K][]T]) Teardown {
			result := map[K][]T{}
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(_ context.Context, v T) {
					key := keySelector(v)
					result[key] = append(result[key], v)
				},
				destination.ErrorWithContext,
				func(ctx context.Context) {
					destination.NextWithContext(ctx, result)
					destination.CompleteWithContext(ctx)
				},
			))
			return sub.Unsubscribe
		})
	}
}

// ToBlockingFirst blocks until source emits its first value (or terminates),
// returning a MissingElementError if it completes without emitting.
func ToBlockingFirst[T any](source Observable[T]) (T, error) {
	return toBlockingFirst(context.Background(), source)
}

// ToBlockingFirstWithContext is ToBlockingFirst with an explicit context.
func ToBlockingFirstWithContext[T any](ctx context.Context, source Observable[T]) (T, error) {
	return toBlockingFirst(ctx, source)
}

func toBlockingFirst[T any](ctx context.Context, source Observable[T]) (T, error) {
	var zero T
	result := make(chan T, 1)
	errs := make(chan error, 1)

	sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
		func(ctx context.Context, v T) {
			select {
			case result <- v:
			default:
			}
		},
		func(ctx context.Context, err error) {
			select {
			case errs <- err:
			default:
			}
		},
		func(ctx context.Context) {
			select {
			case errs <- &MissingElementError{Op: "ToBlockingFirst"}:
			default:
			}
		},
	))
	defer sub.Unsubscribe()

	select {
	case v := <-result:
		return v, nil
	case err := <-errs:
		return zero, err
	}
}

// ToBlockingLast blocks until source terminates, returning its last emitted
// value, or a MissingElementError if it completed without emitting.
func ToBlockingLast[T any](source Observable[T]) (T, error) {
	return toBlockingLast(context.Background(), source)
}

// ToBlockingLastWithContext is ToBlockingLast with an explicit context.
func ToBlockingLastWithContext[T any](ctx context.Context, source Observable[T]) (T, error) {
	return toBlockingLast(ctx, source)
}

func toBlockingLast[T any](ctx context.Context, source Observable[T]) (T, error) {
	var zero T
	var last T
	hasValue := false
	done := make(chan error, 1)

	sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
		func(ctx context.Context, v T) { last = v; hasValue = true },
		func(ctx context.Context, err error) { done <- err },
		func(ctx context.Context) { done <- nil },
	))
	defer sub.Unsubscribe()

	if err := <-done; err != nil {
		return zero, err
	}
	if !hasValue {
		return zero, &MissingElementError{Op: "ToBlockingLast"}
	}
	return last, nil
}

// ToBlockingSingle blocks until source terminates, requiring exactly one
// emitted value. An empty source is reported as a MissingElementError and
// more than one value as a ProtocolViolation.
func ToBlockingSingle[T any](source Observable[T]) (T, error) {
	var zero T
	count := 0
	var single T
	var firstErr error
	done := make(chan error, 1)

	sub := source.SubscribeWithContext(context.Background(), NewObserverWithContext(
		func(ctx context.Context, v T) {
			count++
			if count == 1 {
				single = v
			}
		},
		func(ctx context.Context, err error) { firstErr = err; done <- err },
		func(ctx context.Context) { done <- nil },
	))
	defer sub.Unsubscribe()

	if err := <-done; err != nil {
		return zero, firstErr
	}
	switch count {
	case 0:
		return zero, &MissingElementError{Op: "ToBlockingSingle"}
	case 1:
		return single, nil
	default:
		return zero, &ProtocolViolation{Reason: "ToBlockingSingle observed more than one value"}
	}
}

// ToBlockingIterable drains source synchronously into a slice, blocking the
// calling goroutine until it terminates.
func ToBlockingIterable[T any](source Observable[T]) ([]T, error) {
	var values []T
	done := make(chan error, 1)

	sub := source.SubscribeWithContext(context.Background(), NewObserverWithContext(
		func(ctx context.Context, v T) { values = append(values, v) },
		func(ctx context.Context, err error) { done <- err },
		func(ctx context.Context) { done <- nil },
	))
	defer sub.Unsubscribe()

	if err := <-done; err != nil {
		return nil, err
	}
	return values, nil
}

// Reduce folds every value from source into a single accumulator, delivered
// once source completes, the same way Scan does per-value but terminal-only.
func Reduce[T, R any](seed R, accumulator func(acc R, value T) R) func(source Observable[T]) Observable[R] {
	return func(source Observable[T]) Observable[R] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
			acc := seed
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(_ context.Context, v T) { acc = accumulator(acc, v) },
				destination.ErrorWithContext,
				func(ctx context.Context) {
					destination.NextWithContext(ctx, acc)
					destination.CompleteWithContext(ctx)
				},
			))
			return sub.Unsubscribe
		})
	}
}

// Count emits the number of values source produced, once it completes.
func Count[T any](source Observable[T]) Observable[int64] {
	return Reduce(int64(0), func(acc int64, _ T) int64 { return acc + 1 })(source)
}

// Sum emits the sum of every value source produced, once it completes.
func Sum[T constraints.Numeric](source Observable[T]) Observable[T] {
	return Reduce(T(0), func(acc T, v T) T { return acc + v })(source)
}

// Average emits the arithmetic mean of every value source produced, once it
// completes; emits a MissingElementError via onError if source was empty.
func Average[T constraints.Numeric](source Observable[T]) Observable[float64] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[float64]) Teardown {
		var sum T
		var count int64
		sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
			func(_ context.Context, v T) { sum += v; count++ },
			destination.ErrorWithContext,
			func(ctx context.Context) {
				if count == 0 {
					destination.ErrorWithContext(ctx, &MissingElementError{Op: "Average"})
					return
				}
				destination.NextWithContext(ctx, float64(sum)/float64(count))
				destination.CompleteWithContext(ctx)
			},
		))
		return sub.Unsubscribe
	})
}

// Min emits the smallest value source produced, once it completes; emits a
// MissingElementError via onError if source was empty.
func Min[T constraints.Ordered](source Observable[T]) Observable[T] {
	return extremum[T](source, func(candidate, current T) bool { return candidate < current })
}

// Max emits the largest value source produced, once it completes; emits a
// MissingElementError via onError if source was empty.
func Max[T constraints.Ordered](source Observable[T]) Observable[T] {
	return extremum[T](source, func(candidate, current T) bool { return candidate > current })
}

func extremum[T constraints.Ordered](source Observable[T], better func(candidate, current T) bool) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		var best T
		hasValue := false
		sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
			func(_ context.Context, v T) {
				if !hasValue || better(v, best) {
					best = v
					hasValue = true
				}
			},
			destination.ErrorWithContext,
			func(ctx context.Context) {
				if !hasValue {
					destination.ErrorWithContext(ctx, &MissingElementError{Op: "Min/Max"})
					return
				}
				destination.NextWithContext(ctx, best)
				destination.CompleteWithContext(ctx)
			},
		))
		return sub.Unsubscribe
	})
}
