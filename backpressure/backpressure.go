// Package backpressure bridges the engine's push-based Observable model
// with a pull-based, demand-tracking Publisher/Subscriber pair, for
// producers that genuinely need a consumer-paced firehose instead of
// ObserveOn's fixed-size buffer. Kept out of the root package: a consumer
// who never needs demand tracking never imports its bookkeeping.
package backpressure

import (
	"context"
	"math"
	"sync"

	"github.com/kesho/stream"
)

// Unbounded requests as much demand as a Subscription will ever need to
// track in one call.
const Unbounded int64 = math.MaxInt64

// Subscription is the consumer-facing handle a Publisher hands to a
// Subscriber's OnSubscribe callback.
type Subscription interface {
	// Request signals readiness to receive up to n more values.
	Request(n int64)
	// Cancel stops delivery; no further callbacks fire after it returns.
	Cancel()
}

// Subscriber receives values from a Publisher, paced by the demand it
// grants via the Subscription passed to OnSubscribe.
type Subscriber[T any] interface {
	OnSubscribe(sub Subscription)
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// Publisher is a pull-based source of values a Subscriber can throttle via
// Subscription.Request.
type Publisher[T any] interface {
	Subscribe(subscriber Subscriber[T])
}

// BackpressureStrategy selects what a Publisher built by FromObservable
// does when its Observable source outpaces the Subscriber's requested
// demand.
type BackpressureStrategy int

const (
	// BackpressureBuffer queues every value regardless of demand, applying
	// backpressure only by withholding delivery until demand exists.
	BackpressureBuffer BackpressureStrategy = iota
	// BackpressureDrop discards newly arriving values once the buffer is
	// full, keeping whatever was already queued.
	BackpressureDrop
	// BackpressureLatest, once the buffer is full, overwrites the newest
	// queued value with each arriving one: older queued values are kept, and
	// only the last slot tracks the most recent value.
	BackpressureLatest
	// BackpressureError terminates the subscription with an error once the
	// buffer is full.
	BackpressureError
)

// bufferLimit bounds BackpressureDrop/BackpressureLatest/BackpressureError
// queues; BackpressureBuffer ignores it.
const bufferLimit = 1024

type observablePublisher[T any] struct {
	source   stream.Observable[T]
	strategy BackpressureStrategy
}

// FromObservable adapts source into a pull-based Publisher, applying
// strategy whenever source produces faster than the Subscriber has
// requested.
func FromObservable[T any](source stream.Observable[T], strategy BackpressureStrategy) Publisher[T] {
	return &observablePublisher[T]{source: source, strategy: strategy}
}

func (p *observablePublisher[T]) Subscribe(subscriber Subscriber[T]) {
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var queue []T
	demand := int64(0)
	terminated := false
	sourceCompleted := false

	// drain flushes queued values to subscriber while demand allows, and
	// fires OnComplete once the queue empties after the source has
	// completed. Called with mu held; unlocks/relocks around each
	// Subscriber callback so none of them run while mu is held.
	drain := func() {
		for demand > 0 && len(queue) > 0 && !terminated {
			v := queue[0]
			queue = queue[1:]
			demand--
			mu.Unlock()
			subscriber.OnNext(v)
			mu.Lock()
		}
		if sourceCompleted && len(queue) == 0 && !terminated {
			terminated = true
			mu.Unlock()
			subscriber.OnComplete()
			mu.Lock()
		}
	}

	sub := &demandSubscription{
		request: func(n int64) {
			if n <= 0 {
				return
			}
			mu.Lock()
			if demand > math.MaxInt64-n {
				demand = math.MaxInt64
			} else {
				demand += n
			}
			drain()
			mu.Unlock()
		},
		cancel: func() {
			mu.Lock()
			terminated = true
			mu.Unlock()
			cancel()
		},
	}

	subscriber.OnSubscribe(sub)

	upstream := p.source.SubscribeWithContext(ctx, stream.NewObserverWithContext(
		func(_ context.Context, value T) {
			mu.Lock()
			if terminated {
				mu.Unlock()
				return
			}

			switch {
			case demand > 0 && len(queue) == 0:
				demand--
				mu.Unlock()
				subscriber.OnNext(value)
				return
			case p.strategy == BackpressureBuffer || len(queue) < bufferLimit:
				queue = append(queue, value)
			case p.strategy == BackpressureDrop:
				mu.Unlock()
				return
			case p.strategy == BackpressureLatest:
				queue[len(queue)-1] = value
			case p.strategy == BackpressureError:
				terminated = true
				mu.Unlock()
				subscriber.OnError(&stream.ProtocolViolation{Reason: "backpressure buffer overflow"})
				cancel()
				return
			}
			drain()
			mu.Unlock()
		},
		func(_ context.Context, err error) {
			mu.Lock()
			if terminated {
				mu.Unlock()
				return
			}
			terminated = true
			mu.Unlock()
			subscriber.OnError(err)
		},
		func(_ context.Context) {
			mu.Lock()
			if terminated {
				mu.Unlock()
				return
			}
			sourceCompleted = true
			drain()
			mu.Unlock()
		},
	))

	sub.onCancel = upstream.Unsubscribe
}

type demandSubscription struct {
	request  func(n int64)
	cancel   func()
	onCancel func()
}

func (s *demandSubscription) Request(n int64) { s.request(n) }
func (s *demandSubscription) Cancel() {
	s.cancel()
	if s.onCancel != nil {
		s.onCancel()
	}
}

// ToObservable adapts p back into a push-based Observable, requesting
// Unbounded demand as soon as a subscriber attaches.
func ToObservable[T any](p Publisher[T]) stream.Observable[T] {
	return stream.NewObservableWithContext(func(ctx context.Context, destination stream.Observer[T]) stream.Teardown {
		var sub Subscription
		p.Subscribe(bridgeSubscriber[T]{
			onSubscribe: func(s Subscription) {
				sub = s
				s.Request(Unbounded)
			},
			onNext:     func(v T) { destination.NextWithContext(ctx, v) },
			onError:    func(err error) { destination.ErrorWithContext(ctx, err) },
			onComplete: func() { destination.CompleteWithContext(ctx) },
		})

		return func() {
			if sub != nil {
				sub.Cancel()
			}
		}
	})
}

type bridgeSubscriber[T any] struct {
	onSubscribe func(Subscription)
	onNext      func(T)
	onError     func(error)
	onComplete  func()
}

func (b bridgeSubscriber[T]) OnSubscribe(sub Subscription) { b.onSubscribe(sub) }
func (b bridgeSubscriber[T]) OnNext(value T)               { b.onNext(value) }
func (b bridgeSubscriber[T]) OnError(err error)            { b.onError(err) }
func (b bridgeSubscriber[T]) OnComplete()                  { b.onComplete() }
