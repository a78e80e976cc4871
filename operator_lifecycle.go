package stream

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kesho/stream/internal/xsync"
	"github.com/kesho/stream/internal/xtime"
)

// Tap mirrors source, invoking onNext/onError/onComplete for their side
// effects without altering the notifications forwarded downstream.
func Tap[T any](onNext func(value T), onError func(err error), onComplete func()) Operator[T, T] {
	return TapWithContext(
		func(ctx context.Context, value T) { onNext(value) },
		func(ctx context.Context, err error) { onError(err) },
		func(ctx context.Context) { onComplete() },
	)
}

// TapWithContext is Tap with context-aware callbacks.
func TapWithContext[T any](onNext func(ctx context.Context, value T), onError func(ctx context.Context, err error), onComplete func(ctx context.Context)) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					onNext(ctx, value)
					destination.NextWithContext(ctx, value)
				},
				func(ctx context.Context, err error) {
					onError(ctx, err)
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					onComplete(ctx)
					destination.CompleteWithContext(ctx)
				},
			))
			return sub.Unsubscribe
		})
	}
}

// Do is an alias of Tap.
func Do[T any](onNext func(value T), onError func(err error), onComplete func()) Operator[T, T] {
	return Tap(onNext, onError, onComplete)
}

// DoOnNext invokes onNext for every value, without altering it.
func DoOnNext[T any](onNext func(value T)) Operator[T, T] {
	return Tap(onNext, func(error) {}, func() {})
}

// DoOnError invokes onError when source errors.
func DoOnError[T any](onError func(err error)) Operator[T, T] {
	return Tap(func(T) {}, onError, func() {})
}

// DoOnComplete invokes onComplete when source completes.
func DoOnComplete[T any](onComplete func()) Operator[T, T] {
	return Tap(func(T) {}, func(error) {}, onComplete)
}

// DoOnSubscribe invokes onSubscribe before source is subscribed to.
func DoOnSubscribe[T any](onSubscribe func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			onSubscribe()
			sub := source.SubscribeWithContext(ctx, destination)
			return sub.Unsubscribe
		})
	}
}

// DoOnFinalize invokes onFinalize after source is unsubscribed from, for any
// reason (completion, error, or explicit Unsubscribe).
func DoOnFinalize[T any](onFinalize func()) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, destination)
			return func() {
				sub.Unsubscribe()
				onFinalize()
			}
		})
	}
}

// IntervalValue is a value emitted by TimeInterval.
type IntervalValue[T any] struct {
	Value    T
	Interval time.Duration
}

// TimeInterval emits values from source paired with the time elapsed since
// the previous value (or since subscription, for the first one).
func TimeInterval[T any]() Operator[T, IntervalValue[T]] {
	return func(source Observable[T]) Observable[IntervalValue[T]] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[IntervalValue[T]]) Teardown {
			previous := xtime.NowNanoMonotonic()

			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					now := xtime.NowNanoMonotonic()
					destination.NextWithContext(ctx, IntervalValue[T]{Value: value, Interval: time.Duration(now - previous)})
					previous = now
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// TimestampValue is a value emitted by Timestamp.
type TimestampValue[T any] struct {
	Value     T
	Timestamp time.Duration
}

// Timestamp emits values from source paired with the time elapsed since
// subscription.
func Timestamp[T any]() Operator[T, TimestampValue[T]] {
	return func(source Observable[T]) Observable[TimestampValue[T]] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[TimestampValue[T]]) Teardown {
			start := xtime.NowNanoMonotonic()

			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					destination.NextWithContext(ctx, TimestampValue[T]{Value: value, Timestamp: time.Duration(xtime.NowNanoMonotonic() - start)})
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Delay delays every notification from source by duration, preserving
// arrival order. A queue mutex guards pushes while a second mutex
// serializes the actual delivery, so two notifications can never reorder
// even if their timers fire close together.
func Delay[T any](duration time.Duration) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			muQueue := xsync.NewMutexWithSpinlock()
			muNext := sync.Mutex{}
			queue := []lo.Tuple2[context.Context, Notification[T]]{}

			consume := func() {
				muQueue.Lock()
				if len(queue) == 0 {
					muQueue.Unlock()
					return
				}
				first := queue[0]
				queue = queue[1:]
				muNext.Lock()
				muQueue.Unlock()

				dispatchNotificationToObserverWithContext(first.A, first.B, destination)

				muNext.Unlock()
			}

			produce := func(ctx context.Context, notif Notification[T]) {
				muQueue.Lock()
				queue = append(queue, lo.T2(ctx, notif))
				muQueue.Unlock()
				time.AfterFunc(duration, consume)
			}

			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) { produce(ctx, NewNotificationNext(value)) },
				func(ctx context.Context, err error) { produce(ctx, NewNotificationError[T](err)) },
				func(ctx context.Context) { produce(ctx, NewNotificationComplete[T]()) },
			))

			return func() {
				sub.Unsubscribe()
				muQueue.Lock()
				queue = nil
				muQueue.Unlock()
			}
		})
	}
}

// DelayEach blocks the producing goroutine for duration before forwarding
// each notification, instead of Delay's queue-and-timer scheme.
func DelayEach[T any](duration time.Duration) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					time.Sleep(duration)
					destination.NextWithContext(ctx, value)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// Materialize converts a stream of values/error/complete into a stream of
// Notification values, completing once the source terminates either way.
func Materialize[T any]() Operator[T, Notification[T]] {
	return func(source Observable[T]) Observable[Notification[T]] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[Notification[T]]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					destination.NextWithContext(ctx, NewNotificationNext(value))
				},
				func(ctx context.Context, err error) {
					destination.NextWithContext(ctx, NewNotificationError[T](err))
					destination.CompleteWithContext(ctx)
				},
				func(ctx context.Context) {
					destination.NextWithContext(ctx, NewNotificationComplete[T]())
					destination.CompleteWithContext(ctx)
				},
			))
			return sub.Unsubscribe
		})
	}
}

// Dematerialize is the inverse of Materialize: it replays each buffered
// Notification as the Next/Error/Complete call it represents.
func Dematerialize[T any]() Operator[Notification[T], T] {
	return func(source Observable[Notification[T]]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, notif Notification[T]) {
					dispatchNotificationToObserverWithContext(ctx, notif, destination)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// OnErrorReturn substitutes a fallback value and completes normally instead
// of propagating an error from source.
func OnErrorReturn[T any](fallback func(err error) T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				destination.NextWithContext,
				func(ctx context.Context, err error) {
					destination.NextWithContext(ctx, fallback(err))
					destination.CompleteWithContext(ctx)
				},
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// OnErrorResumeNext switches to a fallback Observable instead of propagating
// an error from source.
func OnErrorResumeNext[T any](fallback func(err error) Observable[T]) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			active := NewSerialDisposable()

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				destination.NextWithContext,
				func(ctx context.Context, err error) {
					resumeSub := fallback(err).SubscribeWithContext(ctx, destination)
					active.Set(disposableFromSubscription(resumeSub))
				},
				destination.CompleteWithContext,
			))
			active.Set(disposableFromSubscription(sourceSub))

			return active.Dispose
		})
	}
}

// StartWith prepends values before relaying source.
func StartWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(FromSlice(values), source)
	}
}

// EndWith appends values after source completes normally.
func EndWith[T any](values ...T) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return Concat(source, FromSlice(values))
	}
}

// RepeatWith resubscribes to source count times in sequence, flattening the
// repeated runs into a single stream.
func RepeatWith[T any](count int64) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		if count <= 0 {
			return Empty[T]()
		}

		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			var lastCtx context.Context = ctx

			for i := int64(0); i < count; i++ {
				source.SubscribeWithContext(ctx, NewObserverWithContext(
					destination.NextWithContext,
					destination.ErrorWithContext,
					func(completeCtx context.Context) { lastCtx = completeCtx },
				)).Wait()

				if destination.IsClosed() {
					break
				}
			}

			destination.CompleteWithContext(lastCtx)
			return nil
		})
	}
}

// SubscribeOn moves the subscription to source onto a dedicated goroutine,
// buffering its notifications in a queue of bufferSize. The subscribing
// goroutine relays the buffered notifications downstream and returns only
// once source terminates.
func SubscribeOn[T any](bufferSize int) Operator[T, T] {
	if bufferSize <= 0 {
		panic(&ProtocolViolation{Reason: "SubscribeOn requires a positive buffer size"})
	}
	return detachOn[T](bufferSize, true, false)
}

// ObserveOn moves notification delivery to destination onto a dedicated
// goroutine, buffering notifications in a queue of bufferSize.
func ObserveOn[T any](bufferSize int) Operator[T, T] {
	if bufferSize <= 0 {
		panic(&ProtocolViolation{Reason: "ObserveOn requires a positive buffer size"})
	}
	return detachOn[T](bufferSize, false, true)
}

func detachOn[T any](bufferSize int, onUpstream, onDownstream bool) Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			ch := make(chan lo.Tuple2[context.Context, Notification[T]], bufferSize)

			once := sync.Once{}
			stop := func() { once.Do(func() { close(ch) }) }

			subscriptions := NewSubscription(nil)

			consumeUpstream := func() {
				subscriptions.AddUnsubscribable(
					source.SubscribeWithContext(ctx, NewObserverWithContext(
						func(ctx context.Context, value T) { ch <- lo.T2(ctx, NewNotificationNext(value)) },
						func(ctx context.Context, err error) {
							ch <- lo.T2(ctx, NewNotificationError[T](err))
							stop()
						},
						func(ctx context.Context) {
							ch <- lo.T2(ctx, NewNotificationComplete[T]())
							stop()
						},
					)),
				)
			}

			produceDownstream := func() {
				for notification := range ch {
					dispatchNotificationWithContext(
						notification.A,
						notification.B,
						destination.NextWithContext,
						destination.ErrorWithContext,
						destination.CompleteWithContext,
					)
				}
			}

			switch {
			case onUpstream:
				go recoverUnhandledError(consumeUpstream)()
				produceDownstream()
			case onDownstream:
				go recoverUnhandledError(produceDownstream)()
				consumeUpstream()
			}

			return func() {
				subscriptions.Unsubscribe()
				stop()
			}
		})
	}
}

// Serialize wraps source in a SafeObservable, so downstream never observes
// concurrent Next/Error/Complete calls even if source itself violates that
// invariant.
func Serialize[T any]() Operator[T, T] {
	return func(source Observable[T]) Observable[T] {
		return NewSafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, destination)
			return sub.Unsubscribe
		})
	}
}
