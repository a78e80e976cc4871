// Copyright 2025 samber.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://github.com/samber/ro/blob/main/licenses/LICENSE.apache.md
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package stream

import (
	"context"
	"fmt"
	"sync/atomic"
)

// WithObserverPanicCaptureDisabled returns a context that opts a single
// subscription out of panic capture, regardless of the package-level
// CaptureObserverPanics default. Benchmarks and latency-sensitive pipelines
// that already guarantee their callbacks never panic use this to skip the
// recover() overhead on every notification.
func WithObserverPanicCaptureDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyObserverPanicCaptureDisabled, true)
}

func isObserverPanicCaptureDisabled(ctx context.Context) bool {
	disabled, ok := ctx.Value(ctxKeyObserverPanicCaptureDisabled).(bool)
	return ok && disabled
}

// Observer is the consumer half of the subscription handshake: it receives
// the Notification[T] sequence an Observable pushes (zero or more Next
// values, then at most one terminal Error or Complete) and must not forward
// anything once it has been closed by a terminal notification.
type Observer[T any] interface {
	Next(value T)
	NextWithContext(ctx context.Context, value T)
	Error(err error)
	ErrorWithContext(ctx context.Context, err error)
	Complete()
	CompleteWithContext(ctx context.Context)

	// IsClosed reports whether a terminal notification (Error or Complete)
	// has already reached this Observer.
	IsClosed() bool
	// HasThrown reports whether the terminal notification was an Error.
	HasThrown() bool
	// IsCompleted reports whether the terminal notification was a Complete.
	IsCompleted() bool
}

var _ Observer[int] = (*observerImpl[int])(nil)

// NewObserver builds an Observer from plain callbacks, capturing panics
// raised inside them per CaptureObserverPanics.
func NewObserver[T any](onNext func(value T), onError func(err error), onComplete func()) Observer[T] {
	return NewObserverWithContext(
		func(_ context.Context, value T) { onNext(value) },
		func(_ context.Context, err error) { onError(err) },
		func(_ context.Context) { onComplete() },
	)
}

// NewObserverWithContext builds an Observer from context-aware callbacks,
// capturing panics raised inside them per CaptureObserverPanics.
func NewObserverWithContext[T any](onNext func(ctx context.Context, value T), onError func(ctx context.Context, err error), onComplete func(ctx context.Context)) Observer[T] {
	return &observerImpl[T]{
		capturePanics: CaptureObserverPanics(),
		onNext:        onNext,
		onError:       onError,
		onComplete:    onComplete,
	}
}

// NewUnsafeObserver builds an Observer from plain callbacks that never
// captures panics: a panicking callback unwinds the calling goroutine.
func NewUnsafeObserver[T any](onNext func(value T), onError func(err error), onComplete func()) Observer[T] {
	return NewObserverWithContextUnsafe(
		func(_ context.Context, value T) { onNext(value) },
		func(_ context.Context, err error) { onError(err) },
		func(_ context.Context) { onComplete() },
	)
}

// NewObserverWithContextUnsafe builds a context-aware Observer that never
// captures panics.
func NewObserverWithContextUnsafe[T any](onNext func(ctx context.Context, value T), onError func(ctx context.Context, err error), onComplete func(ctx context.Context)) Observer[T] {
	return &observerImpl[T]{
		capturePanics: false,
		onNext:        onNext,
		onError:       onError,
		onComplete:    onComplete,
	}
}

type observerImpl[T any] struct {
	status        int32 // 0: open, 1: errored, 2: completed — mirrors Kind's Error/Complete ordinals
	capturePanics bool
	onNext        func(context.Context, T)
	onError       func(context.Context, error)
	onComplete    func(context.Context)
}

func (o *observerImpl[T]) Next(value T) { o.NextWithContext(context.Background(), value) }

func (o *observerImpl[T]) NextWithContext(ctx context.Context, value T) {
	if o.onNext == nil || atomic.LoadInt32(&o.status) != 0 {
		OnDroppedNotification(ctx, NewNotificationNext(value))
		return
	}
	o.tryNext(ctx, value)
}

func (o *observerImpl[T]) Error(err error) { o.ErrorWithContext(context.Background(), err) }

func (o *observerImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	if o.onError == nil || !atomic.CompareAndSwapInt32(&o.status, 0, int32(KindError)) {
		OnDroppedNotification(ctx, NewNotificationError[T](err))
		return
	}
	o.tryError(ctx, err)
}

func (o *observerImpl[T]) Complete() { o.CompleteWithContext(context.Background()) }

func (o *observerImpl[T]) CompleteWithContext(ctx context.Context) {
	if o.onComplete == nil || !atomic.CompareAndSwapInt32(&o.status, 0, int32(KindComplete)) {
		OnDroppedNotification(ctx, NewNotificationComplete[T]())
		return
	}
	o.tryComplete(ctx)
}

// runGuarded invokes call, and — unless capture is false — recovers a panic
// from it and routes the resulting error through onPanic instead of letting
// it unwind the caller. Every capture-sensitive delivery path below
// (tryNext/tryError/tryComplete and their precomputed-capture counterparts)
// is a thin wrapper around this single guard, instead of repeating the
// recover/convert dance once per notification kind.
func (o *observerImpl[T]) runGuarded(capture bool, call func(), onPanic func(err error)) {
	if !capture {
		call()
		return
	}
	if err := tryCatch(call); err != nil {
		onPanic(newObserverError(err))
	}
}

func (o *observerImpl[T]) captureFor(ctx context.Context) bool {
	return o.capturePanics && !isObserverPanicCaptureDisabled(ctx)
}

func (o *observerImpl[T]) tryNext(ctx context.Context, value T) {
	o.tryNextWithCapture(ctx, value, o.captureFor(ctx))
}

func (o *observerImpl[T]) tryError(ctx context.Context, err error) {
	o.tryErrorWithCapture(ctx, err, o.captureFor(ctx))
}

func (o *observerImpl[T]) tryComplete(ctx context.Context) {
	o.tryCompleteWithCapture(ctx, o.captureFor(ctx))
}

// tryNextWithCapture is the direct-call counterpart of tryNext used by a
// subscriber's hot-path directors: the capture flag is precomputed once at
// subscription time instead of re-read from context on every notification.
func (o *observerImpl[T]) tryNextWithCapture(ctx context.Context, value T, capture bool) {
	o.runGuarded(capture, func() { o.onNext(ctx, value) }, func(err error) {
		if o.onError == nil {
			OnUnhandledError(ctx, err)
			return
		}
		if !atomic.CompareAndSwapInt32(&o.status, 0, int32(KindError)) {
			OnDroppedNotification(ctx, NewNotificationError[T](err))
			return
		}
		o.tryErrorWithCapture(ctx, err, capture)
	})
}

func (o *observerImpl[T]) tryErrorWithCapture(ctx context.Context, err error, capture bool) {
	o.runGuarded(capture, func() { o.onError(ctx, err) }, func(err error) {
		OnUnhandledError(ctx, err)
	})
}

func (o *observerImpl[T]) tryCompleteWithCapture(ctx context.Context, capture bool) {
	o.runGuarded(capture, func() { o.onComplete(ctx) }, func(err error) {
		OnUnhandledError(ctx, err)
	})
}

func (o *observerImpl[T]) IsClosed() bool    { return atomic.LoadInt32(&o.status) != 0 }
func (o *observerImpl[T]) HasThrown() bool   { return atomic.LoadInt32(&o.status) == int32(KindError) }
func (o *observerImpl[T]) IsCompleted() bool { return atomic.LoadInt32(&o.status) == int32(KindComplete) }

// OnNext builds an Observer that only reacts to Next values; errors and
// completion are silently dropped.
func OnNext[T any](onNext func(value T)) Observer[T] {
	return NewObserver(onNext, func(error) {}, func() {})
}

// OnNextWithContext is the context-aware counterpart of OnNext.
func OnNextWithContext[T any](onNext func(ctx context.Context, value T)) Observer[T] {
	return NewObserverWithContext(onNext, func(context.Context, error) {}, func(context.Context) {})
}

// OnError builds an Observer that only reacts to the terminal Error.
func OnError[T any](onError func(err error)) Observer[T] {
	return NewObserver(func(T) {}, onError, func() {})
}

// OnErrorWithContext is the context-aware counterpart of OnError.
func OnErrorWithContext[T any](onError func(ctx context.Context, err error)) Observer[T] {
	return NewObserverWithContext(func(context.Context, T) {}, onError, func(context.Context) {})
}

// OnComplete builds an Observer that only reacts to the terminal Complete.
func OnComplete[T any](onComplete func()) Observer[T] {
	return NewObserver(func(T) {}, func(error) {}, onComplete)
}

// OnCompleteWithContext is the context-aware counterpart of OnComplete.
func OnCompleteWithContext[T any](onComplete func(ctx context.Context)) Observer[T] {
	return NewObserverWithContext(func(context.Context, T) {}, func(context.Context, error) {}, onComplete)
}

// NoopObserver discards every notification it receives.
func NoopObserver[T any]() Observer[T] {
	return NewObserverWithContext(
		func(context.Context, T) {},
		func(context.Context, error) {},
		func(context.Context) {},
	)
}

// PrintObserver dumps every notification it receives to stdout, for
// exploratory debugging of a pipeline.
func PrintObserver[T any]() Observer[T] {
	return NewObserverWithContext(
		func(_ context.Context, value T) { fmt.Printf("Next: %v\n", value) },
		func(_ context.Context, err error) { fmt.Printf("Error: %s\n", err.Error()) },
		func(_ context.Context) { fmt.Printf("Completed\n") },
	)
}
