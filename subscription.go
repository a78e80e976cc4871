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
)

// Teardown releases a resource an Observable acquired while producing —
// closing a file, stopping a goroutine, canceling a dial. It runs exactly
// once, when its owning Subscription is unsubscribed.
type Teardown func()

// TeardownWithContext is the context-aware counterpart of Teardown.
type TeardownWithContext func(ctx context.Context)

// Unsubscribable is anything that can be told to stop.
type Unsubscribable interface {
	Unsubscribe()
	UnsubscribeWithContext(ctx context.Context)
}

// Subscription is the handle returned by subscribing to an Observable: it
// can be canceled, can accumulate more teardowns as an operator composes
// resources on top of it, and can be waited on for its terminal notification.
type Subscription interface {
	Unsubscribable

	Add(teardown Teardown)
	AddWithContext(teardown TeardownWithContext)
	AddUnsubscribable(unsubscribable Unsubscribable)
	IsClosed() bool
	Wait() // discouraged: blocks the calling goroutine until termination.
}

type subscriptionImpl struct {
	mu            sync.Mutex
	done          bool
	finalizers    []Teardown
	ctxFinalizers []TeardownWithContext
}

var _ Subscription = (*subscriptionImpl)(nil)

// NewSubscription builds a Subscription, registering teardown as its first
// finalizer (skipped if nil).
func NewSubscription(teardown Teardown) Subscription {
	s := &subscriptionImpl{}
	if teardown != nil {
		s.finalizers = append(s.finalizers, teardown)
	}
	return s
}

// NewSubscriptionWithContext is the context-aware counterpart of
// NewSubscription.
func NewSubscriptionWithContext(teardown TeardownWithContext) Subscription {
	s := &subscriptionImpl{}
	if teardown != nil {
		s.ctxFinalizers = append(s.ctxFinalizers, teardown)
	}
	return s
}

// Add registers teardown to run when the subscription is unsubscribed, or
// runs it immediately if the subscription is already closed. A nil teardown
// is ignored.
func (s *subscriptionImpl) Add(teardown Teardown) {
	if teardown == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		_ = runFinalizer(teardown)
		return
	}
	s.finalizers = append(s.finalizers, teardown)
}

// AddWithContext is the context-aware counterpart of Add.
func (s *subscriptionImpl) AddWithContext(teardown TeardownWithContext) {
	if teardown == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		_ = runFinalizerWithContext(teardown, context.Background())
		return
	}
	s.ctxFinalizers = append(s.ctxFinalizers, teardown)
}

// AddUnsubscribable chains unsubscribable's Unsubscribe into this
// subscription's own teardown sequence. A nil unsubscribable is ignored.
func (s *subscriptionImpl) AddUnsubscribable(unsubscribable Unsubscribable) {
	if unsubscribable == nil {
		return
	}
	s.Add(unsubscribable.Unsubscribe)
}

// Unsubscribe runs every registered finalizer exactly once, in registration
// order, with a background context for the context-aware ones.
func (s *subscriptionImpl) Unsubscribe() {
	s.UnsubscribeWithContext(context.Background())
}

// UnsubscribeWithContext is the context-aware counterpart of Unsubscribe:
// context-aware finalizers receive ctx instead of context.Background().
func (s *subscriptionImpl) UnsubscribeWithContext(ctx context.Context) {
	finals, ctxFinals, already := s.closeAndDrain()
	if already {
		return
	}

	if err := runFinalizers(finals, ctxFinals, ctx); err != nil {
		panic(err)
	}
}

// closeAndDrain marks the subscription done and hands back its registered
// finalizers, leaving none behind — a second call observes already=true and
// runs nothing, which is what makes Unsubscribe idempotent.
func (s *subscriptionImpl) closeAndDrain() (finals []Teardown, ctxFinals []TeardownWithContext, already bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, nil, true
	}

	s.done = true
	finals, ctxFinals = s.finalizers, s.ctxFinalizers
	s.finalizers, s.ctxFinalizers = nil, nil
	return finals, ctxFinals, false
}

// runFinalizers runs every plain finalizer, then every context-aware one
// with ctx, collecting failures into a single CompositeError rather than
// stopping at the first one — a finalizer failing should not prevent its
// siblings from running.
func runFinalizers(finals []Teardown, ctxFinals []TeardownWithContext, ctx context.Context) error {
	var errs []error

	for _, f := range finals {
		if err := runFinalizer(f); err != nil {
			errs = append(errs, err)
		}
	}
	for _, f := range ctxFinals {
		if err := runFinalizerWithContext(f, ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return newCompositeError(errs...)
}

// IsClosed reports whether the subscription has already been unsubscribed.
func (s *subscriptionImpl) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the subscription is unsubscribed, which happens when
// the Observable it watches errors, completes, or is canceled explicitly.
//
// Calling this defeats the point of a push-based, non-blocking pipeline;
// it exists for tests and for top-level callers that have no further async
// work to do once the stream ends.
func (s *subscriptionImpl) Wait() {
	done := make(chan struct{})
	s.Add(func() { close(done) })
	<-done
}

// runFinalizer executes finalizer, converting a panic into a
// ResourceCleanupError so the remaining finalizers still run;
// UnsubscribeWithContext panics with the collected failures once all of
// them have run.
func runFinalizer(finalizer Teardown) error {
	if err := tryCatch(finalizer); err != nil {
		return newUnsubscriptionError(err)
	}
	return nil
}

// runFinalizerWithContext is the context-aware counterpart of runFinalizer.
func runFinalizerWithContext(finalizer TeardownWithContext, ctx context.Context) error {
	return runFinalizer(func() { finalizer(ctx) })
}

// TODO: support removing a single registered finalizer. Go gives no way to
// compare func values, so a finalizer can only be identified by an index or
// handle captured at Add time; no SPEC_FULL caller currently needs that.
