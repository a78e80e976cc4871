package stream

import "context"

// Observable is a push-based source of values. Subscribing runs the
// producer function against a destination Observer and returns a
// Subscription that can be used to cancel the production early.
type Observable[T any] interface {
	Subscribe(destination Observer[T]) Subscription
	SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription
}

var _ Observable[int] = (*observableImpl[int])(nil)

type subscribeFunc[T any] func(ctx context.Context, destination Observer[T]) Teardown

type observableImpl[T any] struct {
	subscribe subscribeFunc[T]
	mode      ConcurrencyMode
}

// NewObservable creates an Observable whose subscriber is serialized with a
// real mutex (ConcurrencyModeSafe). This is the correct default for any
// producer that may call its destination from more than one goroutine.
func NewObservable[T any](subscribe func(destination Observer[T]) Teardown) Observable[T] {
	return NewObservableWithContext(func(_ context.Context, destination Observer[T]) Teardown {
		return subscribe(destination)
	})
}

// NewObservableWithContext is the context-threaded twin of NewObservable.
func NewObservableWithContext[T any](subscribe func(ctx context.Context, destination Observer[T]) Teardown) Observable[T] {
	return newObservableWithMode(subscribe, ConcurrencyModeSafe)
}

// NewSafeObservable is an explicit alias of NewObservable.
func NewSafeObservable[T any](subscribe func(destination Observer[T]) Teardown) Observable[T] {
	return NewObservable(subscribe)
}

// NewSafeObservableWithContext is an explicit alias of NewObservableWithContext.
func NewSafeObservableWithContext[T any](subscribe func(ctx context.Context, destination Observer[T]) Teardown) Observable[T] {
	return NewObservableWithContext(subscribe)
}

// NewUnsafeObservable creates an Observable whose subscriber performs no
// synchronization at all. Only correct when the producer emits from a
// single goroutine without calling Next/Error/Complete reentrantly.
func NewUnsafeObservable[T any](subscribe func(destination Observer[T]) Teardown) Observable[T] {
	return NewUnsafeObservableWithContext(func(_ context.Context, destination Observer[T]) Teardown {
		return subscribe(destination)
	})
}

// NewUnsafeObservableWithContext is the context-threaded twin of NewUnsafeObservable.
func NewUnsafeObservableWithContext[T any](subscribe func(ctx context.Context, destination Observer[T]) Teardown) Observable[T] {
	return newObservableWithMode(subscribe, ConcurrencyModeUnsafe)
}

// NewEventuallySafeObservable creates an Observable whose subscriber drops a
// notification rather than blocking when the destination is momentarily
// busy with a previous one.
func NewEventuallySafeObservable[T any](subscribe func(destination Observer[T]) Teardown) Observable[T] {
	return NewEventuallySafeObservableWithContext(func(_ context.Context, destination Observer[T]) Teardown {
		return subscribe(destination)
	})
}

// NewEventuallySafeObservableWithContext is the context-threaded twin of NewEventuallySafeObservable.
func NewEventuallySafeObservableWithContext[T any](subscribe func(ctx context.Context, destination Observer[T]) Teardown) Observable[T] {
	return newObservableWithMode(subscribe, ConcurrencyModeEventuallySafe)
}

// NewSingleProducerObservable creates an Observable whose subscriber uses the
// lockless, atomics-only fast path. Only correct for a single producer.
func NewSingleProducerObservable[T any](subscribe func(destination Observer[T]) Teardown) Observable[T] {
	return NewSingleProducerObservableWithContext(func(_ context.Context, destination Observer[T]) Teardown {
		return subscribe(destination)
	})
}

// NewSingleProducerObservableWithContext is the context-threaded twin of NewSingleProducerObservable.
func NewSingleProducerObservableWithContext[T any](subscribe func(ctx context.Context, destination Observer[T]) Teardown) Observable[T] {
	return newObservableWithMode(subscribe, ConcurrencyModeSingleProducer)
}

func newObservableWithMode[T any](subscribe subscribeFunc[T], mode ConcurrencyMode) Observable[T] {
	return &observableImpl[T]{subscribe: subscribe, mode: mode}
}

// Subscribe runs the producer against destination with a background context.
func (o *observableImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return o.SubscribeWithContext(context.Background(), destination)
}

// SubscribeWithContext runs the producer against destination. destination is
// wrapped in a Subscriber using the Observable's concurrency mode so that
// every operator built on top inherits the serialization invariant: Next,
// Error, and Complete are never delivered concurrently to the same consumer,
// and nothing is delivered after a terminal notification.
func (o *observableImpl[T]) SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription {
	subscriber := NewSubscriberWithConcurrencyMode(destination, o.mode)

	if impl, ok := subscriber.(*subscriberImpl[T]); ok {
		capture := !isObserverPanicCaptureDisabled(ctx)
		impl.setDirectors(destination, capture)
	}

	teardown := tryCatchTeardown(func() Teardown {
		return o.subscribe(ctx, subscriber)
	}, subscriber, ctx)

	subscriber.Add(teardown)

	return subscriber
}

// tryCatchTeardown runs a producer function, converting a panic raised
// before the first notification into an Error delivered to destination
// instead of crashing the subscribing goroutine.
func tryCatchTeardown[T any](fn func() Teardown, destination Observer[T], ctx context.Context) Teardown {
	var teardown Teardown

	err := tryCatch(func() {
		teardown = fn()
	})

	if err != nil {
		destination.ErrorWithContext(ctx, newObserverError(err))
	}

	return teardown
}

// Operator transforms an Observable of T into an Observable of R. Every
// transformation in this module (Map, Filter, Merge, Share, …) is expressed
// as an Operator, obtained by partial application of the operator's
// configuration, so that it can be threaded through Pipe.
type Operator[T, R any] func(source Observable[T]) Observable[R]

// Pipe applies a single operator. Defined mainly so call sites can use the
// functional form uniformly regardless of chain length.
func Pipe[T, R any](source Observable[T], op Operator[T, R]) Observable[R] {
	return op(source)
}

// Pipe2 threads source through two operators left to right.
func Pipe2[T, A, R any](source Observable[T], op1 Operator[T, A], op2 Operator[A, R]) Observable[R] {
	return op2(op1(source))
}

// Pipe3 threads source through three operators left to right.
func Pipe3[T, A, B, R any](source Observable[T], op1 Operator[T, A], op2 Operator[A, B], op3 Operator[B, R]) Observable[R] {
	return op3(op2(op1(source)))
}

// Pipe4 threads source through four operators left to right.
func Pipe4[T, A, B, C, R any](source Observable[T], op1 Operator[T, A], op2 Operator[A, B], op3 Operator[B, C], op4 Operator[C, R]) Observable[R] {
	return op4(op3(op2(op1(source))))
}

// Pipe5 threads source through five operators left to right.
func Pipe5[T, A, B, C, D, R any](source Observable[T], op1 Operator[T, A], op2 Operator[A, B], op3 Operator[B, C], op4 Operator[C, D], op5 Operator[D, R]) Observable[R] {
	return op5(op4(op3(op2(op1(source)))))
}
