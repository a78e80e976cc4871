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
	"sync/atomic"

	"github.com/kesho/stream/internal/xsync"
)

// ConcurrencyMode selects how a Subscriber serializes calls into its
// destination Observer when more than one goroutine may call Next/Error/
// Complete on it concurrently.
type ConcurrencyMode int

const (
	// ConcurrencyModeSafe guards the destination with a real mutex. Correct
	// for any number of concurrent producers; the default.
	ConcurrencyModeSafe ConcurrencyMode = iota
	// ConcurrencyModeUnsafe performs no synchronization. Only correct when
	// the caller guarantees a single producer goroutine.
	ConcurrencyModeUnsafe
	// ConcurrencyModeEventuallySafe guards the destination with a real mutex
	// but drops a Next notification instead of blocking when the lock is
	// already held.
	ConcurrencyModeEventuallySafe
	// ConcurrencyModeSingleProducer skips locking entirely and tracks status
	// with atomics only. Only correct for a single producer goroutine; unlike
	// ConcurrencyModeUnsafe it also skips the no-op Lock/Unlock method calls.
	ConcurrencyModeSingleProducer
)

// Backpressure selects what a Subscriber does with a Next notification that
// arrives while its destination is busy handling a previous one.
type Backpressure int

const (
	// BackpressureBlock waits for the destination to become free.
	BackpressureBlock Backpressure = iota
	// BackpressureDrop discards the notification, reporting it to the
	// dropped-notification plugin hook.
	BackpressureDrop
)

// Subscriber is an Observer wrapped with Subscription capabilities
// (Unsubscribe, IsClosed, Wait). Every Observer passed to
// Observable.SubscribeWithContext is converted to one internally so
// operators get a uniform teardown/dispose surface; consumers rarely
// construct a Subscriber directly.
type Subscriber[T any] interface {
	Subscription
	Observer[T]
}

var _ Subscriber[int] = (*subscriberImpl[int])(nil)

// NewSubscriber wraps destination in a Subscriber using ConcurrencyModeSafe.
// If destination is already a Subscriber it is returned unchanged.
func NewSubscriber[T any](destination Observer[T]) Subscriber[T] {
	return NewSubscriberWithConcurrencyMode(destination, ConcurrencyModeSafe)
}

// NewSafeSubscriber is an alias for NewSubscriber, named to pair with
// NewUnsafeSubscriber/NewEventuallySafeSubscriber/NewSingleProducerSubscriber.
func NewSafeSubscriber[T any](destination Observer[T]) Subscriber[T] {
	return NewSubscriberWithConcurrencyMode(destination, ConcurrencyModeSafe)
}

// NewUnsafeSubscriber wraps destination in a Subscriber with no
// synchronization. Only correct for a single producer.
func NewUnsafeSubscriber[T any](destination Observer[T]) Subscriber[T] {
	return NewSubscriberWithConcurrencyMode(destination, ConcurrencyModeUnsafe)
}

// NewEventuallySafeSubscriber wraps destination in a Subscriber that drops
// a Next notification rather than blocking when concurrent producers
// contend for the lock.
func NewEventuallySafeSubscriber[T any](destination Observer[T]) Subscriber[T] {
	return NewSubscriberWithConcurrencyMode(destination, ConcurrencyModeEventuallySafe)
}

// NewSingleProducerSubscriber wraps destination in a Subscriber optimized
// for a single producer: no locking, atomics-only status tracking.
func NewSingleProducerSubscriber[T any](destination Observer[T]) Subscriber[T] {
	return NewSubscriberWithConcurrencyMode(destination, ConcurrencyModeSingleProducer)
}

// NewSubscriberWithConcurrencyMode wraps destination in a Subscriber using
// the synchronization strategy mode selects. If destination is already a
// Subscriber it is returned unchanged regardless of mode.
func NewSubscriberWithConcurrencyMode[T any](destination Observer[T], mode ConcurrencyMode) Subscriber[T] {
	switch mode {
	case ConcurrencyModeSafe:
		return newSubscriberImpl(mode, xsync.NewMutexWithLock(), BackpressureBlock, destination, false)
	case ConcurrencyModeUnsafe:
		return newSubscriberImpl(mode, xsync.NewMutexWithoutLock(), BackpressureBlock, destination, false)
	case ConcurrencyModeEventuallySafe:
		return newSubscriberImpl(mode, xsync.NewMutexWithLock(), BackpressureDrop, destination, false)
	case ConcurrencyModeSingleProducer:
		// mu is nil here: the lockless fast path never touches it.
		return newSubscriberImpl(mode, nil, BackpressureBlock, destination, true)
	default:
		panic("stream: invalid concurrency mode")
	}
}

func newSubscriberImpl[T any](mode ConcurrencyMode, mu xsync.Mutex, backpressure Backpressure, destination Observer[T], lockless bool) Subscriber[T] {
	if subscriber, ok := destination.(Subscriber[T]); ok {
		return subscriber
	}

	subscriber := &subscriberImpl[T]{
		backpressure: backpressure,
		mu:           mu,
		destination:  destination,
		Subscription: NewSubscription(nil),
		mode:         mode,
		lockless:     lockless,
	}

	if subscription, ok := destination.(Subscription); ok {
		subscription.Add(subscriber.Unsubscribe)
	}

	return subscriber
}

// subscriberImpl adapts an Observer to a Subscription by tracking the same
// open/errored/completed state machine Notification's Kind enumerates
// (status mirrors Kind's ordinals directly: 0, which is also KindNext's
// ordinal, means "open", since Next is not a terminal Notification;
// KindError and KindComplete are the two states status can CAS into).
type subscriberImpl[T any] struct {
	status       int32
	backpressure Backpressure

	_ [59]byte // padding to prevent false sharing between status and mu

	mu          xsync.Mutex
	destination Observer[T]

	Subscription

	mode     ConcurrencyMode
	lockless bool

	// Per-subscription direct-call helpers, set once at subscription time by
	// setDirectors (see observable.go) to skip interface dispatch and, for an
	// *observerImpl destination, context-based panic-capture lookups on every
	// notification.
	nextDirect     func(context.Context, T)
	errorDirect    func(context.Context, error)
	completeDirect func(context.Context)
}

func (s *subscriberImpl[T]) Next(v T) { s.NextWithContext(context.Background(), v) }

func (s *subscriberImpl[T]) NextWithContext(ctx context.Context, v T) {
	if s.destination == nil {
		return
	}

	if s.lockless {
		if atomic.LoadInt32(&s.status) != 0 {
			OnDroppedNotification(ctx, NewNotificationNext(v))
			return
		}
		s.forwardNext(ctx, v)
		return
	}

	if s.backpressure == BackpressureDrop {
		if !s.mu.TryLock() {
			OnDroppedNotification(ctx, NewNotificationNext(v))
			return
		}
	} else {
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if atomic.LoadInt32(&s.status) != 0 {
		OnDroppedNotification(ctx, NewNotificationNext(v))
		return
	}

	s.forwardNext(ctx, v)
}

func (s *subscriberImpl[T]) forwardNext(ctx context.Context, v T) {
	if s.nextDirect != nil {
		s.nextDirect(ctx, v)
	} else {
		s.destination.NextWithContext(ctx, v)
	}
}

func (s *subscriberImpl[T]) Error(err error) { s.ErrorWithContext(context.Background(), err) }

func (s *subscriberImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	s.deliverTerminal(ctx, KindError, NewNotificationError[T](err), func(ctx context.Context) {
		if s.errorDirect != nil {
			s.errorDirect(ctx, err)
		} else {
			s.destination.ErrorWithContext(ctx, err)
		}
	})
}

func (s *subscriberImpl[T]) Complete() { s.CompleteWithContext(context.Background()) }

func (s *subscriberImpl[T]) CompleteWithContext(ctx context.Context) {
	s.deliverTerminal(ctx, KindComplete, NewNotificationComplete[T](), func(ctx context.Context) {
		if s.completeDirect != nil {
			s.completeDirect(ctx)
		} else {
			s.destination.CompleteWithContext(ctx)
		}
	})
}

// deliverTerminal CASes status from open to kind (KindError or KindComplete)
// and, only if it wins that race, calls deliver and then always unsubscribes.
// Error and Complete are both terminal and mutually exclusive, so sharing
// this path guarantees at most one of them ever reaches the destination.
func (s *subscriberImpl[T]) deliverTerminal(ctx context.Context, kind Kind, dropped Notification[T], deliver func(context.Context)) {
	if s.lockless {
		if !atomic.CompareAndSwapInt32(&s.status, 0, int32(kind)) {
			OnDroppedNotification(ctx, dropped)
			s.unsubscribe()
			return
		}
		if s.destination != nil {
			deliver(ctx)
		}
		s.unsubscribe()
		return
	}

	s.mu.Lock()
	if !atomic.CompareAndSwapInt32(&s.status, 0, int32(kind)) {
		s.mu.Unlock()
		OnDroppedNotification(ctx, dropped)
		s.unsubscribe()
		return
	}
	if s.destination != nil {
		deliver(ctx)
	}
	s.mu.Unlock()

	s.unsubscribe()
}

func (s *subscriberImpl[T]) IsClosed() bool    { return atomic.LoadInt32(&s.status) != 0 }
func (s *subscriberImpl[T]) HasThrown() bool   { return atomic.LoadInt32(&s.status) == int32(KindError) }
func (s *subscriberImpl[T]) IsCompleted() bool { return atomic.LoadInt32(&s.status) == int32(KindComplete) }

func (s *subscriberImpl[T]) Unsubscribe() {
	if atomic.CompareAndSwapInt32(&s.status, 0, int32(KindComplete)) {
		s.unsubscribe()
	}
}

func (s *subscriberImpl[T]) unsubscribe() {
	s.Subscription.Unsubscribe() // already idempotent/concurrency-safe
}

// setDirectors configures the per-subscription direct-call helpers. capture
// is the panic-capture decision made once at subscription time; when
// destination is an *observerImpl, routing through its *WithCapture methods
// avoids a context.Value lookup per notification.
func (s *subscriberImpl[T]) setDirectors(destination Observer[T], capture bool) {
	s.nextDirect = func(ctx context.Context, v T) { destination.NextWithContext(ctx, v) }
	s.errorDirect = func(ctx context.Context, err error) { destination.ErrorWithContext(ctx, err) }
	s.completeDirect = func(ctx context.Context) { destination.CompleteWithContext(ctx) }

	if oi, ok := destination.(*observerImpl[T]); ok {
		s.nextDirect = func(ctx context.Context, v T) { oi.tryNextWithCapture(ctx, v, capture) }
		s.errorDirect = func(ctx context.Context, err error) { oi.tryErrorWithCapture(ctx, err, capture) }
		s.completeDirect = func(ctx context.Context) { oi.tryCompleteWithCapture(ctx, capture) }
	}
}
