package stream

import (
	"context"
	"sync"
)

// GroupOverflowPolicy selects what a group does when a value for its key
// arrives while QueueSize deliveries to that group are already in progress.
type GroupOverflowPolicy int

const (
	// GroupOverflowDropNewest discards the incoming value and reports it to
	// the dropped-notification plugin hook. The default. Values reach a
	// group synchronously, so a slow consumer of one group still holds up
	// the source for every group.
	GroupOverflowDropNewest GroupOverflowPolicy = iota
	// GroupOverflowError terminates the group with an error instead of
	// dropping; the outer Observable and the other groups keep running.
	GroupOverflowError
)

// GroupByConfig configures GroupBy's per-group delivery limit.
type GroupByConfig struct {
	// QueueSize caps how many deliveries to one group may be in progress at
	// once; past it, OverflowPolicy applies. Groups keep no buffer: a value
	// reaches only the consumers already subscribed to its group when it
	// arrives. Defaults to 128 to match the module's general default buffer
	// size.
	QueueSize int
	// OverflowPolicy governs what happens when QueueSize is exceeded.
	OverflowPolicy GroupOverflowPolicy
}

const defaultBufferSize = 128

// GroupedObservable is the per-key Observable produced by GroupBy, carrying
// its key alongside the values sharing it.
type GroupedObservable[K comparable, T any] struct {
	Key K
	Observable[T]
}

// GroupBy partitions source by keySelector, emitting one GroupedObservable
// per distinct key the first time that key is seen. Subsequent values for
// an already-emitted key are routed to its existing GroupedObservable
// instead of emitting a new one.
func GroupBy[T any, K comparable](keySelector func(value T) K) Operator[T, GroupedObservable[K, T]] {
	return GroupByWithConfig(keySelector, GroupByConfig{QueueSize: defaultBufferSize})
}

// GroupByWithConfig is GroupBy with an explicit per-group delivery limit and
// overflow policy.
func GroupByWithConfig[T any, K comparable](keySelector func(value T) K, config GroupByConfig) Operator[T, GroupedObservable[K, T]] {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultBufferSize
	}

	return func(source Observable[T]) Observable[GroupedObservable[K, T]] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[GroupedObservable[K, T]]) Teardown {
			var mu sync.Mutex
			groups := map[K]*groupState[T]{}

			terminateAll := func(fn func(Observer[T])) {
				mu.Lock()
				all := make([]*groupState[T], 0, len(groups))
				for _, g := range groups {
					all = append(all, g)
				}
				mu.Unlock()
				for _, g := range all {
					fn(g.subject.AsObserver())
				}
			}

			sourceSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					key := keySelector(value)

					mu.Lock()
					g, ok := groups[key]
					isNew := !ok
					if !ok {
						g = newGroupState[T](config)
						groups[key] = g
					}
					mu.Unlock()

					if isNew {
						destination.NextWithContext(ctx, GroupedObservable[K, T]{Key: key, Observable: g.subject.AsObservable()})
					}

					g.push(ctx, value, config)
				},
				func(ctx context.Context, err error) {
					terminateAll(func(o Observer[T]) { o.ErrorWithContext(ctx, err) })
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					terminateAll(func(o Observer[T]) { o.CompleteWithContext(ctx) })
					destination.CompleteWithContext(ctx)
				},
			))

			return sourceSub.Unsubscribe
		})
	}
}

type groupState[T any] struct {
	subject Subject[T]
	mu      sync.Mutex
	size    int
}

func newGroupState[T any](config GroupByConfig) *groupState[T] {
	return &groupState[T]{subject: NewPublishSubject[T]()}
}

func (g *groupState[T]) push(ctx context.Context, value T, config GroupByConfig) {
	g.mu.Lock()
	if g.size >= config.QueueSize {
		g.mu.Unlock()

		if config.OverflowPolicy == GroupOverflowError {
			g.subject.ErrorWithContext(ctx, &ProtocolViolation{Reason: "group queue overflow"})
			return
		}
		OnDroppedNotification(ctx, NewNotificationNext(value))
		return
	}
	g.size++
	g.mu.Unlock()

	g.subject.NextWithContext(ctx, value)

	g.mu.Lock()
	g.size--
	g.mu.Unlock()
}
