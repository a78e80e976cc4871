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
	"testing"

	"github.com/kesho/stream/internal/xsync"
	"github.com/stretchr/testify/assert"
)

func newLocklessSubscriber(destination Observer[int]) *subscriberImpl[int] {
	return &subscriberImpl[int]{
		backpressure: BackpressureBlock,
		destination:  destination,
		Subscription: NewSubscription(nil),
		mode:         ConcurrencyModeSingleProducer,
		lockless:     true,
	}
}

func TestSubscriberImpl_ErrorWithContext_locklessNilDestination(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	subscriber := newLocklessSubscriber(nil)

	subscriber.ErrorWithContext(context.Background(), assert.AnError)
	is.Equal(int32(KindError), subscriber.status)
	is.True(subscriber.HasThrown())
	is.True(subscriber.IsClosed())
}

func TestSubscriberImpl_CompleteWithContext_locklessNilDestination(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	subscriber := newLocklessSubscriber(nil)

	subscriber.CompleteWithContext(context.Background())
	is.Equal(int32(KindComplete), subscriber.status)
	is.True(subscriber.IsCompleted())
	is.True(subscriber.IsClosed())
}

func TestSubscriberImpl_deliverTerminal_secondCallDropsAndReportsOnce(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var delivered int
	var dropped []fmt.Stringer
	WithDroppedNotification(t, func(_ context.Context, n fmt.Stringer) {
		dropped = append(dropped, n)
	}, func() {
		subscriber := newLocklessSubscriber(NewObserver(
			func(int) {},
			func(error) {},
			func() { delivered++ },
		))

		subscriber.Complete()
		subscriber.Complete() // second call must be a no-op, not a second delivery

		is.Equal(1, delivered)
		is.Len(dropped, 1, "the second Complete should report exactly one dropped notification")
	})
}

// flagObserver is an Observer that is not an *observerImpl; it only records
// which of its callbacks ran.
type flagObserver struct {
	nextCalled     bool
	errorCalled    bool
	completeCalled bool
}

func (o *flagObserver) Next(int)                                { o.nextCalled = true }
func (o *flagObserver) NextWithContext(context.Context, int)    { o.nextCalled = true }
func (o *flagObserver) Error(error)                             { o.errorCalled = true }
func (o *flagObserver) ErrorWithContext(context.Context, error) { o.errorCalled = true }
func (o *flagObserver) Complete()                               { o.completeCalled = true }
func (o *flagObserver) CompleteWithContext(context.Context)     { o.completeCalled = true }
func (o *flagObserver) IsClosed() bool                          { return false }
func (o *flagObserver) HasThrown() bool                         { return false }
func (o *flagObserver) IsCompleted() bool                       { return false }

func TestSubscriberImpl_setDirectors_nonObserverImpl(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	custom := &flagObserver{}
	var observer Observer[int] = custom

	subscriber := &subscriberImpl[int]{
		backpressure: BackpressureBlock,
		mu:           xsync.NewMutexWithLock(),
		destination:  observer,
		Subscription: NewSubscription(nil),
		mode:         ConcurrencyModeSafe,
	}

	// A destination that isn't an *observerImpl falls back to the plain
	// interface-dispatch directors.
	subscriber.setDirectors(observer, true)

	is.NotNil(subscriber.nextDirect)
	is.NotNil(subscriber.errorDirect)
	is.NotNil(subscriber.completeDirect)

	subscriber.nextDirect(context.Background(), 1)
	is.True(custom.nextCalled)

	subscriber.errorDirect(context.Background(), assert.AnError)
	is.True(custom.errorCalled)

	subscriber.completeDirect(context.Background())
	is.True(custom.completeCalled)
}

func TestSubscriberImpl_setDirectors_withObserverImpl(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var nextCalled, errorCalled, completeCalled bool

	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) { nextCalled = true },
		onError:       func(ctx context.Context, err error) { errorCalled = true },
		onComplete:    func(ctx context.Context) { completeCalled = true },
	}

	subscriber := &subscriberImpl[int]{
		backpressure: BackpressureBlock,
		mu:           xsync.NewMutexWithLock(),
		destination:  observer,
		Subscription: NewSubscription(nil),
		mode:         ConcurrencyModeSafe,
	}

	// An *observerImpl destination gets the optimized tryXxxWithCapture path.
	subscriber.setDirectors(observer, true)

	is.NotNil(subscriber.nextDirect)
	is.NotNil(subscriber.errorDirect)
	is.NotNil(subscriber.completeDirect)

	subscriber.nextDirect(context.Background(), 1)
	is.True(nextCalled)

	subscriber.errorDirect(context.Background(), assert.AnError)
	is.True(errorCalled)

	subscriber.completeDirect(context.Background())
	is.True(completeCalled)

	is.False(observer.HasThrown(), "errorDirect bypasses observerImpl's own CAS status since the subscriber owns status here")
}

func TestSubscriberImpl_setDirectors_noCapture_propagatesPanics(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) { panic("onNext panic") },
		onError:       func(ctx context.Context, err error) { panic("onError panic") },
		onComplete:    func(ctx context.Context) { panic("onComplete panic") },
	}

	subscriber := &subscriberImpl[int]{
		backpressure: BackpressureBlock,
		mu:           xsync.NewMutexWithLock(),
		destination:  observer,
		Subscription: NewSubscription(nil),
		mode:         ConcurrencyModeSafe,
	}

	// capture=false at setDirectors time wins over observer.capturePanics,
	// since the tryXxxWithCapture variants take their capture flag as an
	// explicit argument rather than re-reading observer.capturePanics.
	subscriber.setDirectors(observer, false)

	is.NotNil(subscriber.nextDirect)
	is.NotNil(subscriber.errorDirect)
	is.NotNil(subscriber.completeDirect)

	is.Panics(func() { subscriber.nextDirect(context.Background(), 1) })
	is.Panics(func() { subscriber.errorDirect(context.Background(), assert.AnError) })
	is.Panics(func() { subscriber.completeDirect(context.Background()) })
}

func TestSubscriberImpl_eventuallySafe_dropsUnderContention(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var delivered int
	sub := NewEventuallySafeSubscriber[int](NewObserver(
		func(int) { delivered++ },
		func(error) {},
		func() {},
	))

	impl := sub.(*subscriberImpl[int])
	impl.mu.Lock() // simulate a Next currently in flight
	impl.NextWithContext(context.Background(), 1)
	impl.mu.Unlock()

	is.Equal(0, delivered, "a Next arriving while the lock is held must be dropped, not blocked on")
}
