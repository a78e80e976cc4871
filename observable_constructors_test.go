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
	"testing"

	"github.com/stretchr/testify/assert"
)

// observableConstructorTestKey is a dedicated, unexported context key for
// these tests so they don't risk colliding with a key the package itself
// installs (see ctxKey in test_context_key.go for the same reasoning).
type observableConstructorTestKey struct{}

// collectToCompletion subscribes observer-style callbacks to obs, waits for
// its terminal notification, and hands back every Next value observed plus
// the Subscriber itself so a caller can assert on IsCompleted/HasThrown.
func collectToCompletion(t *testing.T, obs Observable[int]) ([]int, Subscriber[int]) {
	t.Helper()

	var values []int
	sub := obs.Subscribe(NewObserver(
		func(value int) { values = append(values, value) },
		func(err error) { t.Fatalf("unexpected error: %v", err) },
		func() {},
	))
	sub.Wait()
	return values, sub.(Subscriber[int])
}

func TestNewUnsafeObservable(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	obs := NewUnsafeObservable(func(destination Observer[int]) Teardown {
		destination.Next(1)
		destination.Next(2)
		destination.Next(3)
		destination.Complete()
		return nil
	})

	values, sub := collectToCompletion(t, obs)
	is.Equal([]int{1, 2, 3}, values)
	is.True(sub.IsCompleted())
	is.False(sub.HasThrown())
}

func TestNewEventuallySafeObservable(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	obs := NewEventuallySafeObservable(func(destination Observer[int]) Teardown {
		destination.Next(1)
		destination.Next(2)
		destination.Next(3)
		destination.Complete()
		return nil
	})

	values, sub := collectToCompletion(t, obs)
	is.Equal([]int{1, 2, 3}, values)
	is.True(sub.IsCompleted())
}

func TestNewSingleProducerObservable(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	obs := NewSingleProducerObservable(func(destination Observer[int]) Teardown {
		destination.Next(1)
		destination.Next(2)
		destination.Next(3)
		destination.Complete()
		return nil
	})

	values, sub := collectToCompletion(t, obs)
	is.Equal([]int{1, 2, 3}, values)
	is.True(sub.IsCompleted())
}

func TestNewSingleProducerObservable_propagatesError(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	obs := NewSingleProducerObservable(func(destination Observer[int]) Teardown {
		destination.Next(1)
		destination.Error(assert.AnError)
		return nil
	})

	var values []int
	var errReceived error
	sub := obs.Subscribe(NewObserver(
		func(value int) { values = append(values, value) },
		func(err error) { errReceived = err },
		func() { t.Fatalf("unexpected complete") },
	))
	sub.Wait()

	is.Equal([]int{1}, values)
	is.ErrorIs(errReceived, assert.AnError)
	is.True(sub.(Subscriber[int]).HasThrown())
}

func TestNewSingleProducerObservableWithContext(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var ctxReceived context.Context
	obs := NewSingleProducerObservableWithContext(func(ctx context.Context, destination Observer[int]) Teardown {
		ctxReceived = ctx
		destination.NextWithContext(ctx, 1)
		destination.NextWithContext(ctx, 2)
		destination.NextWithContext(ctx, 3)
		destination.CompleteWithContext(ctx)
		return nil
	})

	ctx := context.WithValue(context.Background(), observableConstructorTestKey{}, "value")
	var values []int
	sub := obs.SubscribeWithContext(ctx, NewObserver(
		func(value int) { values = append(values, value) },
		func(err error) { t.Fatalf("unexpected error: %v", err) },
		func() {},
	))

	sub.Wait()
	is.Equal([]int{1, 2, 3}, values)
	is.NotNil(ctxReceived)
	is.Equal("value", ctxReceived.Value(observableConstructorTestKey{}))
}

func TestNewEventuallySafeObservableWithContext(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var ctxReceived context.Context
	obs := NewEventuallySafeObservableWithContext(func(ctx context.Context, destination Observer[int]) Teardown {
		ctxReceived = ctx
		destination.NextWithContext(ctx, 1)
		destination.NextWithContext(ctx, 2)
		destination.NextWithContext(ctx, 3)
		destination.CompleteWithContext(ctx)
		return nil
	})

	ctx := context.WithValue(context.Background(), observableConstructorTestKey{}, "value")
	var values []int
	sub := obs.SubscribeWithContext(ctx, NewObserver(
		func(value int) { values = append(values, value) },
		func(err error) { t.Fatalf("unexpected error: %v", err) },
		func() {},
	))

	sub.Wait()
	is.Equal([]int{1, 2, 3}, values)
	is.NotNil(ctxReceived)
	is.Equal("value", ctxReceived.Value(observableConstructorTestKey{}))
}
