package stream

import (
	"context"
	"sync"
	"time"
)

// BufferConfig configures BufferWithConfig's bounds. At least one of Count
// or Span must be set; when both are set a buffer closes on whichever
// bound is hit first.
type BufferConfig struct {
	// Count closes and emits the buffer once it holds this many values. 0
	// disables the count bound.
	Count int
	// Span closes and emits the buffer (possibly empty) every Span. 0
	// disables the time bound.
	Span time.Duration
	// Scheduler drives the Span timer. Defaults to Schedulers.Computation().
	Scheduler Scheduler
	// RestartTimerOnMaxSize resets the Span timer whenever Count closes a
	// buffer early, instead of letting the two bounds run independently.
	RestartTimerOnMaxSize bool
}

// BufferCount groups every count consecutive values into a slice.
func BufferCount[T any](count int) Operator[T, []T] {
	return BufferWithConfig[T](BufferConfig{Count: count})
}

// BufferTime groups values arriving within each span into a slice, emitted
// (possibly empty) at the end of every span.
func BufferTime[T any](span time.Duration) Operator[T, []T] {
	return BufferWithConfig[T](BufferConfig{Span: span})
}

// BufferWithConfig is the general form behind BufferCount/BufferTime,
// supporting both bounds together and RestartTimerOnMaxSize.
func BufferWithConfig[T any](config BufferConfig) Operator[T, []T] {
	if config.Scheduler == nil {
		config.Scheduler = Schedulers.Computation()
	}

	return func(source Observable[T]) Observable[[]T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[[]T]) Teardown {
			var mu sync.Mutex
			var buf []T
			var worker Worker
			var timer Disposable

			flush := func(ctx context.Context) {
				mu.Lock()
				out := buf
				buf = nil
				mu.Unlock()
				destination.NextWithContext(ctx, out)
			}

			startTimer := func() {
				if config.Span <= 0 {
					return
				}
				if worker == nil {
					worker = config.Scheduler.CreateWorker()
				}
				if timer != nil {
					timer.Dispose()
				}
				timer = worker.SchedulePeriodic(func() { flush(ctx) }, config.Span, config.Span)
			}

			startTimer()

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					mu.Lock()
					buf = append(buf, value)
					hitCount := config.Count > 0 && len(buf) >= config.Count
					mu.Unlock()

					if hitCount {
						flush(ctx)
						if config.RestartTimerOnMaxSize {
							startTimer()
						}
					}
				},
				func(ctx context.Context, err error) {
					if timer != nil {
						timer.Dispose()
					}
					if worker != nil {
						worker.Dispose()
					}
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					if timer != nil {
						timer.Dispose()
					}
					if worker != nil {
						worker.Dispose()
					}
					mu.Lock()
					out := buf
					buf = nil
					mu.Unlock()
					if len(out) > 0 {
						destination.NextWithContext(ctx, out)
					}
					destination.CompleteWithContext(ctx)
				},
			))

			return func() {
				sourceSub.Unsubscribe()
				if timer != nil {
					timer.Dispose()
				}
				if worker != nil {
					worker.Dispose()
				}
			}
		})
	}
}

// WindowConfig configures WindowWithConfig, mirroring BufferConfig but
// producing Observable windows instead of slices.
type WindowConfig struct {
	Count                 int
	Span                  time.Duration
	Scheduler             Scheduler
	RestartTimerOnMaxSize bool
}

// WindowCount partitions source into consecutive Observables of up to count
// values each.
func WindowCount[T any](count int) Operator[T, Observable[T]] {
	return WindowWithConfig[T](WindowConfig{Count: count})
}

// WindowTime partitions source into consecutive Observables spanning span
// each.
func WindowTime[T any](span time.Duration) Operator[T, Observable[T]] {
	return WindowWithConfig[T](WindowConfig{Span: span})
}

// WindowWithConfig is the general form behind WindowCount/WindowTime. Each
// window is a closed buffer from BufferWithConfig replayed through
// FromSlice, so a window is emitted only once it is complete and every
// subscriber to it receives all of its values.
func WindowWithConfig[T any](config WindowConfig) Operator[T, Observable[T]] {
	bufOp := BufferWithConfig[T](BufferConfig{
		Count:                 config.Count,
		Span:                  config.Span,
		Scheduler:             config.Scheduler,
		RestartTimerOnMaxSize: config.RestartTimerOnMaxSize,
	})
	toWindow := Map(func(values []T) Observable[T] { return FromSlice(values) })

	return func(source Observable[T]) Observable[Observable[T]] {
		return toWindow(bufOp(source))
	}
}
