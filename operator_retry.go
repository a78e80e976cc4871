package stream

import (
	"context"
	"sync/atomic"
)

// Retry resubscribes to source up to maxAttempts times (in addition to the
// first attempt) whenever it errors, propagating the last error once
// attempts are exhausted. maxAttempts < 0 retries forever.
func Retry[T any](maxAttempts int) Operator[T, T] {
	return RetryWhen[T](func(attempt int, err error) (bool, Observable[struct{}]) {
		if maxAttempts >= 0 && attempt >= maxAttempts {
			return false, nil
		}
		return true, Just(struct{}{})
	})
}

// RetryUntil resubscribes to source each time it errors as long as
// shouldRetry(attempt, err) reports true, propagating the error from the
// attempt where it returns false.
func RetryUntil[T any](shouldRetry func(attempt int, err error) bool) Operator[T, T] {
	return RetryWhen[T](func(attempt int, err error) (bool, Observable[struct{}]) {
		return shouldRetry(attempt, err), Just(struct{}{})
	})
}

// RetryWhen resubscribes to source every time it errors, gated by notifier:
// notifier returns whether to retry at all, and an Observable whose first
// emission (if retrying) signals when the resubscription should happen —
// letting callers implement backoff by delaying that signal.
func RetryWhen[T any](notifier func(attempt int, err error) (retry bool, signal Observable[struct{}])) Operator[T, T] {
	return redoLoop[T](func(ctx context.Context, destination Observer[T], attempt int, terminalErr error) (bool, Observable[struct{}]) {
		if terminalErr == nil {
			return false, nil
		}
		return notifier(attempt, terminalErr)
	})
}

// Repeat resubscribes to source up to count additional times whenever it
// completes, forwarding every run's values. count < 0 repeats forever.
func Repeat[T any](count int) Operator[T, T] {
	return RepeatWhen[T](func(attempt int) (bool, Observable[struct{}]) {
		if count >= 0 && attempt >= count {
			return false, nil
		}
		return true, Just(struct{}{})
	})
}

// RepeatUntil resubscribes to source each time it completes as long as
// shouldRepeat(attempt) reports true.
func RepeatUntil[T any](shouldRepeat func(attempt int) bool) Operator[T, T] {
	return RepeatWhen[T](func(attempt int) (bool, Observable[struct{}]) {
		return shouldRepeat(attempt), Just(struct{}{})
	})
}

// RepeatWhen resubscribes to source every time it completes normally, gated
// by notifier the same way RetryWhen gates on errors.
func RepeatWhen[T any](notifier func(attempt int) (repeat bool, signal Observable[struct{}])) Operator[T, T] {
	return redoLoop[T](func(ctx context.Context, destination Observer[T], attempt int, terminalErr error) (bool, Observable[struct{}]) {
		if terminalErr != nil {
			return false, nil
		}
		return notifier(attempt)
	})
}

// redoLoop subscribes to source, and on every terminal notification (err
// nil for Complete, non-nil for Error) calls decide to determine whether to
// resubscribe and what to wait on before doing so. It is the shared engine
// behind Retry*/Repeat*: the two families differ only in which terminal
// kind triggers a redo.
func redoLoop[T any](decide func(ctx context.Context, destination Observer[T], attempt int, terminalErr error) (bool, Observable[struct{}])) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			active := NewSerialDisposable()
			pendingSignal := NewSerialDisposable()
			attempt := 0

			var onTerminal func(ctx context.Context, terminalErr error)
			var subscribeOnce func()
			subscribeOnce = func() {
				sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
					destination.NextWithContext,
					func(ctx context.Context, err error) { onTerminal(ctx, err) },
					func(ctx context.Context) { onTerminal(ctx, nil) },
				))
				active.Set(disposableFromSubscription(sub))
			}

			onTerminal = func(ctx context.Context, terminalErr error) {
				redo, signal := decide(ctx, destination, attempt, terminalErr)
				if !redo {
					if terminalErr != nil {
						destination.ErrorWithContext(ctx, terminalErr)
					} else {
						destination.CompleteWithContext(ctx)
					}
					return
				}

				attempt++

				if signal == nil {
					subscribeOnce()
					return
				}

				var fired int32
				signalSub := signal.SubscribeWithContext(ctx, NewObserverWithContext(
					func(ctx context.Context, _ struct{}) {
						if atomic.CompareAndSwapInt32(&fired, 0, 1) {
							subscribeOnce()
						}
					},
					destination.ErrorWithContext,
					func(context.Context) {},
				))
				pendingSignal.Set(disposableFromSubscription(signalSub))
			}

			subscribeOnce()

			return func() {
				active.Dispose()
				pendingSignal.Dispose()
			}
		})
	}
}
