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
	"sync"
	"sync/atomic"

	"github.com/samber/lo"
)

// Subject is both an Observer and an Observable: pushing a value into it
// (via the Observer side) fans it out to every currently subscribed
// Observer (via the Observable side). It is the primitive the multicast
// operators (Publish, Share, Replay) are built on.
type Subject[T any] interface {
	Observable[T]
	Observer[T]

	// HasObserver reports whether at least one Observer is currently subscribed.
	HasObserver() bool
	// CountObservers returns the number of currently subscribed Observers.
	CountObservers() int

	AsObservable() Observable[T]
	AsObserver() Observer[T]
}

var _ Subject[int] = (*publishSubjectImpl[int])(nil)

// NewPublishSubject broadcasts a value to observers (fanout).
// Values received before subscription are not transmitted.
func NewPublishSubject[T any]() Subject[T] {
	return &publishSubjectImpl[T]{
		status:        KindNext,
		observers:     sync.Map{},
		observerIndex: 0,
		err:           lo.Tuple2[context.Context, error]{},
	}
}

type publishSubjectImpl[T any] struct {
	status Kind

	observers     sync.Map
	observerIndex uint32

	err lo.Tuple2[context.Context, error]
}

// Implements Observable.
func (s *publishSubjectImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return s.SubscribeWithContext(context.Background(), destination)
}

// Implements Observable.
func (s *publishSubjectImpl[T]) SubscribeWithContext(subscriberCtx context.Context, destination Observer[T]) Subscription {
	subscription := NewSubscriber(destination)

	switch s.status {
	case KindNext:
		// fallthrough
	case KindError:
		subscription.ErrorWithContext(s.err.A, s.err.B)
		return subscription
	case KindComplete:
		subscription.CompleteWithContext(subscriberCtx)
		return subscription
	}

	index := atomic.AddUint32(&s.observerIndex, 1) - 1
	s.observers.Store(index, subscription)

	subscription.Add(func() {
		s.observers.Delete(index)
	})

	return subscription
}

func (s *publishSubjectImpl[T]) unsubscribeAll() {
	s.observers.Range(func(key, _ any) bool {
		s.observers.Delete(key)
		return true
	})
}

// Implements Observer.
func (s *publishSubjectImpl[T]) Next(value T) {
	s.NextWithContext(context.Background(), value)
}

// Implements Observer.
func (s *publishSubjectImpl[T]) NextWithContext(ctx context.Context, value T) {
	if s.status == KindNext {
		s.broadcastNext(ctx, value)
	} else {
		OnDroppedNotification(ctx, NewNotificationNext(value))
	}
}

// Implements Observer.
func (s *publishSubjectImpl[T]) Error(err error) {
	s.ErrorWithContext(context.Background(), err)
}

// Implements Observer.
func (s *publishSubjectImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	if s.status == KindNext {
		s.err = lo.T2(ctx, err)
		s.status = KindError
		s.broadcastError(ctx, err)
	} else {
		OnDroppedNotification(ctx, NewNotificationError[T](err))
	}

	s.unsubscribeAll()
}

// Implements Observer.
func (s *publishSubjectImpl[T]) Complete() {
	s.CompleteWithContext(context.Background())
}

// Implements Observer.
func (s *publishSubjectImpl[T]) CompleteWithContext(ctx context.Context) {
	if s.status == KindNext {
		s.status = KindComplete
		s.broadcastComplete(ctx)
	} else {
		OnDroppedNotification(ctx, NewNotificationComplete[T]())
	}

	s.unsubscribeAll()
}

func (s *publishSubjectImpl[T]) HasObserver() (has bool) {
	has = false

	s.observers.Range(func(key, value any) bool {
		has = true
		return false
	})

	return has
}

func (s *publishSubjectImpl[T]) CountObservers() int {
	count := 0

	s.observers.Range(func(key, value any) bool {
		count++
		return true
	})

	return count
}

// Implements Observer.
func (s *publishSubjectImpl[T]) IsClosed() bool {
	return s.status != KindNext
}

// Implements Observer.
func (s *publishSubjectImpl[T]) HasThrown() bool {
	return s.status == KindError
}

// Implements Observer.
func (s *publishSubjectImpl[T]) IsCompleted() bool {
	return s.status == KindComplete
}

func (s *publishSubjectImpl[T]) AsObservable() Observable[T] {
	return s
}

func (s *publishSubjectImpl[T]) AsObserver() Observer[T] {
	return s
}

func (s *publishSubjectImpl[T]) broadcastNext(ctx context.Context, value T) {
	s.observers.Range(func(_, observer any) bool {
		observer.(Observer[T]).NextWithContext(ctx, value) //nolint:errcheck,forcetypeassert
		return true
	})
}

func (s *publishSubjectImpl[T]) broadcastError(ctx context.Context, err error) {
	s.observers.Range(func(_, observer any) bool {
		observer.(Observer[T]).ErrorWithContext(ctx, err) //nolint:errcheck,forcetypeassert
		return true
	})
}

func (s *publishSubjectImpl[T]) broadcastComplete(ctx context.Context) {
	s.observers.Range(func(_, observer any) bool {
		observer.(Observer[T]).CompleteWithContext(ctx) //nolint:errcheck,forcetypeassert
		return true
	})
}

// NewBehaviorSubject is a PublishSubject seeded with an initial value: every
// new subscriber immediately receives the most recently emitted value (or
// the seed, if nothing has been emitted yet) before joining the broadcast.
func NewBehaviorSubject[T any](seed T) Subject[T] {
	b := &behaviorSubjectImpl[T]{inner: NewPublishSubject[T]().(*publishSubjectImpl[T])}
	b.value.Store(&seed)
	return b
}

type behaviorSubjectImpl[T any] struct {
	inner *publishSubjectImpl[T]
	value atomic.Pointer[T]
}

func (b *behaviorSubjectImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return b.SubscribeWithContext(context.Background(), destination)
}

func (b *behaviorSubjectImpl[T]) SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription {
	if b.inner.status == KindNext {
		destination.NextWithContext(ctx, *b.value.Load())
	}
	return b.inner.SubscribeWithContext(ctx, destination)
}

func (b *behaviorSubjectImpl[T]) Next(value T) { b.NextWithContext(context.Background(), value) }
func (b *behaviorSubjectImpl[T]) NextWithContext(ctx context.Context, value T) {
	b.value.Store(&value)
	b.inner.NextWithContext(ctx, value)
}
func (b *behaviorSubjectImpl[T]) Error(err error) { b.inner.Error(err) }
func (b *behaviorSubjectImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	b.inner.ErrorWithContext(ctx, err)
}
func (b *behaviorSubjectImpl[T]) Complete() { b.inner.Complete() }
func (b *behaviorSubjectImpl[T]) CompleteWithContext(ctx context.Context) {
	b.inner.CompleteWithContext(ctx)
}
func (b *behaviorSubjectImpl[T]) IsClosed() bool             { return b.inner.IsClosed() }
func (b *behaviorSubjectImpl[T]) HasThrown() bool            { return b.inner.HasThrown() }
func (b *behaviorSubjectImpl[T]) IsCompleted() bool          { return b.inner.IsCompleted() }
func (b *behaviorSubjectImpl[T]) HasObserver() bool          { return b.inner.HasObserver() }
func (b *behaviorSubjectImpl[T]) CountObservers() int        { return b.inner.CountObservers() }
func (b *behaviorSubjectImpl[T]) AsObservable() Observable[T] { return b }
func (b *behaviorSubjectImpl[T]) AsObserver() Observer[T]     { return b }

// Value returns the most recently emitted value (or the seed).
func (b *behaviorSubjectImpl[T]) Value() T { return *b.value.Load() }

// NewAsyncSubject only relays its last Next value to observers, and only
// once Complete is called; an Error is relayed as-is with no last value.
func NewAsyncSubject[T any]() Subject[T] {
	return &asyncSubjectImpl[T]{inner: NewPublishSubject[T]().(*publishSubjectImpl[T])}
}

type asyncSubjectImpl[T any] struct {
	inner    *publishSubjectImpl[T]
	mu       sync.Mutex
	hasValue bool
	last     T
}

func (a *asyncSubjectImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return a.SubscribeWithContext(context.Background(), destination)
}

func (a *asyncSubjectImpl[T]) SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription {
	return a.inner.SubscribeWithContext(ctx, destination)
}

func (a *asyncSubjectImpl[T]) Next(value T) { a.NextWithContext(context.Background(), value) }
func (a *asyncSubjectImpl[T]) NextWithContext(ctx context.Context, value T) {
	a.mu.Lock()
	a.hasValue = true
	a.last = value
	a.mu.Unlock()
}
func (a *asyncSubjectImpl[T]) Error(err error) { a.inner.Error(err) }
func (a *asyncSubjectImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	a.inner.ErrorWithContext(ctx, err)
}
func (a *asyncSubjectImpl[T]) Complete() { a.CompleteWithContext(context.Background()) }
func (a *asyncSubjectImpl[T]) CompleteWithContext(ctx context.Context) {
	a.mu.Lock()
	hasValue, last := a.hasValue, a.last
	a.mu.Unlock()

	if hasValue {
		a.inner.NextWithContext(ctx, last)
	}
	a.inner.CompleteWithContext(ctx)
}
func (a *asyncSubjectImpl[T]) IsClosed() bool             { return a.inner.IsClosed() }
func (a *asyncSubjectImpl[T]) HasThrown() bool            { return a.inner.HasThrown() }
func (a *asyncSubjectImpl[T]) IsCompleted() bool          { return a.inner.IsCompleted() }
func (a *asyncSubjectImpl[T]) HasObserver() bool          { return a.inner.HasObserver() }
func (a *asyncSubjectImpl[T]) CountObservers() int        { return a.inner.CountObservers() }
func (a *asyncSubjectImpl[T]) AsObservable() Observable[T] { return a }
func (a *asyncSubjectImpl[T]) AsObserver() Observer[T]     { return a }

// NewReplaySubject buffers up to size notifications (0 means unbounded) and
// replays them to every new subscriber before joining the live broadcast.
// This is the subject ShareReplay/Replay are built on.
func NewReplaySubject[T any](size int) Subject[T] {
	return &replaySubjectImpl[T]{
		inner:  NewPublishSubject[T]().(*publishSubjectImpl[T]),
		policy: newReplayBuffer[T](size, 0, nil),
	}
}

type replaySubjectImpl[T any] struct {
	inner  *publishSubjectImpl[T]
	policy *replayBuffer[T]
}

func (r *replaySubjectImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return r.SubscribeWithContext(context.Background(), destination)
}

func (r *replaySubjectImpl[T]) SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription {
	for _, n := range r.policy.snapshot() {
		if !dispatchNotificationToObserverWithContext(ctx, n, destination) {
			return NewSubscriber(destination)
		}
	}
	return r.inner.SubscribeWithContext(ctx, destination)
}

func (r *replaySubjectImpl[T]) Next(value T) { r.NextWithContext(context.Background(), value) }
func (r *replaySubjectImpl[T]) NextWithContext(ctx context.Context, value T) {
	r.policy.push(NewNotificationNext(value))
	r.inner.NextWithContext(ctx, value)
}
func (r *replaySubjectImpl[T]) Error(err error) { r.ErrorWithContext(context.Background(), err) }
func (r *replaySubjectImpl[T]) ErrorWithContext(ctx context.Context, err error) {
	r.policy.push(NewNotificationError[T](err))
	r.inner.ErrorWithContext(ctx, err)
}
func (r *replaySubjectImpl[T]) Complete() { r.CompleteWithContext(context.Background()) }
func (r *replaySubjectImpl[T]) CompleteWithContext(ctx context.Context) {
	r.policy.push(NewNotificationComplete[T]())
	r.inner.CompleteWithContext(ctx)
}
func (r *replaySubjectImpl[T]) IsClosed() bool             { return r.inner.IsClosed() }
func (r *replaySubjectImpl[T]) HasThrown() bool            { return r.inner.HasThrown() }
func (r *replaySubjectImpl[T]) IsCompleted() bool          { return r.inner.IsCompleted() }
func (r *replaySubjectImpl[T]) HasObserver() bool          { return r.inner.HasObserver() }
func (r *replaySubjectImpl[T]) CountObservers() int        { return r.inner.CountObservers() }
func (r *replaySubjectImpl[T]) AsObservable() Observable[T] { return r }
func (r *replaySubjectImpl[T]) AsObserver() Observer[T]     { return r }
