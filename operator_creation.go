package stream

import (
	"context"
	"sync/atomic"
	"time"
)

// Just emits each of values in order, then completes.
func Just[T any](values ...T) Observable[T] {
	return FromSlice(values)
}

// FromSlice emits each element of values in order, then completes.
func FromSlice[T any](values []T) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		for _, v := range values {
			if destination.IsClosed() {
				return nil
			}
			destination.NextWithContext(ctx, v)
		}
		destination.CompleteWithContext(ctx)
		return nil
	})
}

// FromChannel emits every value received from ch until it is closed, then
// completes. If ctx is canceled first, the Observable stops without
// draining the remainder of ch and without sending a terminal notification.
func FromChannel[T any](ch <-chan T) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		done := make(chan struct{})

		go recoverUnhandledError(func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case v, ok := <-ch:
					if !ok {
						destination.CompleteWithContext(ctx)
						return
					}
					destination.NextWithContext(ctx, v)
				}
			}
		})()

		return func() { <-done }
	})
}

// FromFunc builds an Observable from a single blocking call: fn runs once
// per subscription, its result becomes the sole Next, then Complete. A
// returned error is delivered as onError instead.
func FromFunc[T any](fn func(ctx context.Context) (T, error)) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		value, err := fn(ctx)
		if err != nil {
			destination.ErrorWithContext(ctx, err)
			return nil
		}
		destination.NextWithContext(ctx, value)
		destination.CompleteWithContext(ctx)
		return nil
	})
}

// FromCallable is an alias of FromFunc kept for readability at call sites
// that wrap a zero-argument callable rather than a context-aware function.
func FromCallable[T any](fn func() (T, error)) Observable[T] {
	return FromFunc(func(_ context.Context) (T, error) { return fn() })
}

// FromFuture adapts a future-like channel pair (value channel, error
// channel) into a single-element Observable, forwarding whichever resolves
// first.
func FromFuture[T any](result <-chan T, failure <-chan error) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		go recoverUnhandledError(func() {
			select {
			case <-ctx.Done():
				return
			case v := <-result:
				destination.NextWithContext(ctx, v)
				destination.CompleteWithContext(ctx)
			case err := <-failure:
				destination.ErrorWithContext(ctx, err)
			}
		})()
		return nil
	})
}

// Defer builds a fresh Observable per subscription by calling factory at
// subscribe time, so each subscriber gets independent producer state.
func Defer[T any](factory func() Observable[T]) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		sub := factory().SubscribeWithContext(ctx, destination)
		return sub.Unsubscribe
	})
}

// Interval emits an increasing counter, starting at 0, every period, never
// completing on its own.
func Interval(period time.Duration) Observable[int64] {
	return IntervalOn(period, Schedulers.Computation())
}

// IntervalOn is Interval driven by an explicit Scheduler.
func IntervalOn(period time.Duration, scheduler Scheduler) Observable[int64] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[int64]) Teardown {
		worker := scheduler.CreateWorker()
		var n int64

		disposable := worker.SchedulePeriodic(func() {
			destination.NextWithContext(ctx, n)
			n++
		}, period, period)

		return func() {
			disposable.Dispose()
			worker.Dispose()
		}
	})
}

// Timer emits a single 0 after delay, then completes.
func Timer(delay time.Duration) Observable[int64] {
	return TimerOn(delay, Schedulers.Computation())
}

// TimerOn is Timer driven by an explicit Scheduler.
func TimerOn(delay time.Duration, scheduler Scheduler) Observable[int64] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[int64]) Teardown {
		worker := scheduler.CreateWorker()

		disposable := worker.ScheduleAfter(func() {
			destination.NextWithContext(ctx, 0)
			destination.CompleteWithContext(ctx)
		}, delay)

		return func() {
			disposable.Dispose()
			worker.Dispose()
		}
	})
}

// Range emits count consecutive int64 values starting at start, using a
// lockless single-producer subscriber since the whole sequence is produced
// synchronously from one goroutine.
func Range(start, count int64) Observable[int64] {
	return RangeWithMode(start, count, ConcurrencyModeSingleProducer)
}

// RangeWithMode is Range with an explicit Subscriber concurrency mode,
// primarily useful for benchmarking the cost of each mode against an
// identical workload.
func RangeWithMode(start, count int64, mode ConcurrencyMode) Observable[int64] {
	subscribe := func(ctx context.Context, destination Observer[int64]) Teardown {
		for i := int64(0); i < count; i++ {
			if destination.IsClosed() {
				return nil
			}
			destination.NextWithContext(ctx, start+i)
		}
		destination.CompleteWithContext(ctx)
		return nil
	}

	return newObservableWithMode[int64](subscribe, mode)
}

// Empty completes immediately without emitting any value.
func Empty[T any]() Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		destination.CompleteWithContext(ctx)
		return nil
	})
}

// Never never emits any notification and never completes.
func Never[T any]() Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		return nil
	})
}

// Throw immediately emits err via onError.
func Throw[T any](err error) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		destination.ErrorWithContext(ctx, err)
		return nil
	})
}

// Using acquires a resource for the lifetime of a single subscription: it
// calls acquire, builds the inner Observable from the result via factory,
// and calls release when the subscription ends, regardless of outcome. If
// eager is true, a release failure is composed with any terminal error;
// otherwise it is reported to the unhandled-error plugin hook.
func Using[R, T any](acquire func() (R, error), factory func(resource R) Observable[T], release func(resource R) error, eager bool) Observable[T] {
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		resource, err := acquire()
		if err != nil {
			destination.ErrorWithContext(ctx, err)
			return nil
		}

		var released int32
		releaseOnce := func() error {
			if release == nil || !atomic.CompareAndSwapInt32(&released, 0, 1) {
				return nil
			}
			return release(resource)
		}

		inner := NewObserverWithContext(
			destination.NextWithContext,
			func(ctx context.Context, err error) {
				if releaseErr := releaseOnce(); releaseErr != nil {
					if eager {
						err = newCompositeError(err, &ResourceCleanupError{Err: releaseErr})
					} else {
						OnUnhandledError(ctx, &ResourceCleanupError{Err: releaseErr})
					}
				}
				destination.ErrorWithContext(ctx, err)
			},
			func(ctx context.Context) {
				if releaseErr := releaseOnce(); releaseErr != nil {
					OnUnhandledError(ctx, &ResourceCleanupError{Err: releaseErr})
				}
				destination.CompleteWithContext(ctx)
			},
		)

		sub := factory(resource).SubscribeWithContext(ctx, inner)
		return func() {
			sub.Unsubscribe()
			if releaseErr := releaseOnce(); releaseErr != nil {
				OnUnhandledError(ctx, &ResourceCleanupError{Err: releaseErr})
			}
		}
	})
}
