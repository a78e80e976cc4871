package stream

import (
	"context"
	"sync"
)

// Zip2 pairs the nth value from a with the nth value from b, emitting one
// tuple per completed pair, in arrival order. It completes once either
// source completes and has no more buffered values to pair.
func Zip2[A, B, R any](a Observable[A], b Observable[B], combine func(A, B) R) Observable[R] {
	return ZipArray(func(values []any) R {
		return combine(values[0].(A), values[1].(B))
	}, eraseObservable(a), eraseObservable(b))
}

// Zip3 pairs the nth value from each of a, b, c.
func Zip3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], combine func(A, B, C) R) Observable[R] {
	return ZipArray(func(values []any) R {
		return combine(values[0].(A), values[1].(B), values[2].(C))
	}, eraseObservable(a), eraseObservable(b), eraseObservable(c))
}

func eraseObservable[T any](source Observable[T]) Observable[any] {
	return Map(func(v T) any { return v })(source)
}

// ZipArray pairs the nth value from every source, in source order, and
// calls combine once a full row is available. Each source has its own
// unbounded pending queue; a row is emitted and dequeued from every source
// as soon as all of them have at least one buffered value.
func ZipArray[R any](combine func(values []any) R, sources ...Observable[any]) Observable[R] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
		n := len(sources)
		var mu sync.Mutex
		queues := make([][]any, n)
		done := make([]bool, n)
		closed := false

		tryEmit := func() {
			for {
				ready := true
				for i := 0; i < n; i++ {
					if len(queues[i]) == 0 {
						ready = false
						break
					}
				}
				if !ready {
					break
				}

				row := make([]any, n)
				for i := 0; i < n; i++ {
					row[i] = queues[i][0]
					queues[i] = queues[i][1:]
				}
				destination.NextWithContext(ctx, combine(row))
			}

			for i := 0; i < n; i++ {
				if done[i] && len(queues[i]) == 0 {
					if !closed {
						closed = true
						destination.CompleteWithContext(ctx)
					}
					return
				}
			}
		}

		subs := make([]Subscription, n)
		for i := range sources {
			i := i
			subs[i] = sources[i].SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, v any) {
					mu.Lock()
					defer mu.Unlock()
					if closed {
						return
					}
					queues[i] = append(queues[i], v)
					tryEmit()
				},
				func(ctx context.Context, err error) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					closed = true
					mu.Unlock()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					mu.Lock()
					defer mu.Unlock()
					if closed {
						return
					}
					done[i] = true
					tryEmit()
				},
			))
		}

		return func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}
	})
}

// CombineLatest2 emits a new combined value whenever either a or b emits,
// once both have emitted at least once.
func CombineLatest2[A, B, R any](a Observable[A], b Observable[B], combine func(A, B) R) Observable[R] {
	return CombineLatestArray(func(values []any) R {
		return combine(values[0].(A), values[1].(B))
	}, eraseObservable(a), eraseObservable(b))
}

// CombineLatest3 emits a new combined value whenever any of a, b, c emits,
// once all three have emitted at least once.
func CombineLatest3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], combine func(A, B, C) R) Observable[R] {
	return CombineLatestArray(func(values []any) R {
		return combine(values[0].(A), values[1].(B), values[2].(C))
	}, eraseObservable(a), eraseObservable(b), eraseObservable(c))
}

// CombineLatestArray emits combine(latest values) every time any source
// emits, once every source has emitted at least once. It completes once
// every source has completed.
func CombineLatestArray[R any](combine func(values []any) R, sources ...Observable[any]) Observable[R] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
		n := len(sources)
		var mu sync.Mutex
		latest := make([]any, n)
		has := make([]bool, n)
		done := make([]bool, n)
		closed := false
		haveAll := false

		countHas := func() int {
			count := 0
			for _, h := range has {
				if h {
					count++
				}
			}
			return count
		}

		subs := make([]Subscription, n)
		for i := range sources {
			i := i
			subs[i] = sources[i].SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, v any) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					latest[i] = v
					has[i] = true
					if !haveAll && countHas() == n {
						haveAll = true
					}
					ready := haveAll
					var row []any
					if ready {
						row = append([]any{}, latest...)
					}
					mu.Unlock()

					if ready {
						destination.NextWithContext(ctx, combine(row))
					}
				},
				func(ctx context.Context, err error) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					closed = true
					mu.Unlock()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					done[i] = true
					allDone := true
					for _, d := range done {
						if !d {
							allDone = false
							break
						}
					}
					if allDone {
						closed = true
					}
					mu.Unlock()

					if allDone {
						destination.CompleteWithContext(ctx)
					}
				},
			))
		}

		return func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		}
	})
}
