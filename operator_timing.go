package stream

import (
	"context"
	"sync"
	"time"
)

// Sample emits the most recent value from source every period, dropping any
// value source produced without a sample landing on it.
func Sample[T any](period time.Duration) Operator[T, T] {
	return SampleOn[T](period, Schedulers.Computation())
}

// SampleOn is Sample driven by an explicit Scheduler.
func SampleOn[T any](period time.Duration, scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			var mu sync.Mutex
			var latest T
			hasValue := false

			worker := scheduler.CreateWorker()
			timer := worker.SchedulePeriodic(func() {
				mu.Lock()
				v, ok := latest, hasValue
				hasValue = false
				mu.Unlock()
				if ok {
					destination.NextWithContext(ctx, v)
				}
			}, period, period)

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					mu.Lock()
					latest = value
					hasValue = true
					mu.Unlock()
				},
				destination.ErrorWithContext,
				func(ctx context.Context) {
					timer.Dispose()
					worker.Dispose()
					destination.CompleteWithContext(ctx)
				},
			))

			return func() {
				sourceSub.Unsubscribe()
				timer.Dispose()
				worker.Dispose()
			}
		})
	}
}

// ThrottleFirst emits the first value in each span window, then ignores
// every following value until the window elapses.
func ThrottleFirst[T any](span time.Duration) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			var mu sync.Mutex
			var windowOpen time.Time

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					now := time.Now()
					mu.Lock()
					if now.Before(windowOpen) {
						mu.Unlock()
						return
					}
					windowOpen = now.Add(span)
					mu.Unlock()
					destination.NextWithContext(ctx, value)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))

			return sourceSub.Unsubscribe
		})
	}
}

// ThrottleLast emits the most recent value received in each span window, at
// the end of that window, dropping windows with no values.
func ThrottleLast[T any](span time.Duration) Operator[T, T] {
	return Sample[T](span)
}

// Debounce emits a value only after source stays silent for span, relaying
// the most recent value seen before the silence. Every new value resets the
// timer, so a continuously-active source never emits until it pauses.
func Debounce[T any](span time.Duration) Operator[T, T] {
	return DebounceOn[T](span, Schedulers.Computation())
}

// DebounceOn is Debounce driven by an explicit Scheduler.
func DebounceOn[T any](span time.Duration, scheduler Scheduler) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			worker := scheduler.CreateWorker()
			pending := NewSerialDisposable()

			var mu sync.Mutex
			var generation uint64

			flush := func(value T, gen uint64) func() {
				return func() {
					mu.Lock()
					current := generation
					mu.Unlock()
					if current == gen {
						destination.NextWithContext(ctx, value)
					}
				}
			}

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					mu.Lock()
					generation++
					gen := generation
					mu.Unlock()
					pending.Set(worker.ScheduleAfter(flush(value, gen), span))
				},
				func(ctx context.Context, err error) {
					pending.Dispose()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					pending.Dispose()
					destination.CompleteWithContext(ctx)
				},
			))

			return func() {
				sourceSub.Unsubscribe()
				pending.Dispose()
				worker.Dispose()
			}
		})
	}
}

// TimeoutConfig configures TimeoutWithConfig.
type TimeoutConfig[T any] struct {
	// Duration bounds the gap allowed between subscription and the first
	// value, and between any two consecutive values.
	Duration time.Duration
	// Fallback, if non-nil, is switched to instead of erroring when the
	// timeout fires.
	Fallback Observable[T]
	// Scheduler drives the timeout timer. Defaults to Schedulers.Computation().
	Scheduler Scheduler
}

// Timeout errors (a TimeoutError) if source goes longer than duration
// without emitting, measured from subscription and reset on every value.
func Timeout[T any](duration time.Duration) Operator[T, T] {
	return TimeoutWithConfig(TimeoutConfig[T]{Duration: duration})
}

// TimeoutWithConfig is Timeout with an optional fallback source that takes
// over instead of erroring once the timeout fires.
func TimeoutWithConfig[T any](config TimeoutConfig[T]) Operator[T, T] {
	if config.Scheduler == nil {
		config.Scheduler = Schedulers.Computation()
	}

	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			worker := config.Scheduler.CreateWorker()
			active := NewSerialDisposable()

			var mu sync.Mutex
			var generation uint64
			switched := false

			onTimeout := func(gen uint64) func() {
				return func() {
					mu.Lock()
					if generation != gen || switched {
						mu.Unlock()
						return
					}
					switched = true
					mu.Unlock()

					if config.Fallback == nil {
						destination.ErrorWithContext(ctx, newTimeoutError(config.Duration))
						return
					}
					sub := config.Fallback.SubscribeWithContext(ctx, destination)
					active.Set(disposableFromSubscription(sub))
				}
			}

			rearm := func() {
				mu.Lock()
				generation++
				gen := generation
				mu.Unlock()
				active.Set(worker.ScheduleAfter(onTimeout(gen), config.Duration))
			}

			rearm()

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					mu.Lock()
					if switched {
						mu.Unlock()
						return
					}
					mu.Unlock()
					destination.NextWithContext(ctx, value)
					rearm()
				},
				func(ctx context.Context, err error) {
					mu.Lock()
					if switched {
						mu.Unlock()
						return
					}
					switched = true
					mu.Unlock()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					mu.Lock()
					if switched {
						mu.Unlock()
						return
					}
					switched = true
					mu.Unlock()
					destination.CompleteWithContext(ctx)
				},
			))

			return func() {
				sourceSub.Unsubscribe()
				active.Dispose()
				worker.Dispose()
			}
		})
	}
}
