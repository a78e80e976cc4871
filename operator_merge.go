package stream

import (
	"context"
	"sync"
)

// FlatMapConfig configures FlatMapWithConfig.
type FlatMapConfig struct {
	// MaxConcurrency caps how many inner Observables run at once; 0 means
	// unbounded (Merge's behavior).
	MaxConcurrency int
	// DelayErrors accumulates inner/outer errors into a CompositeError and
	// keeps running until everything finishes, instead of canceling
	// everything on the first error.
	DelayErrors bool
}

// FlatMap subscribes to every inner Observable produced by project as outer
// values arrive, forwarding their notifications interleaved, with unbounded
// concurrency and fail-fast error policy.
func FlatMap[T, R any](project func(value T) Observable[R]) Operator[T, R] {
	return FlatMapWithConfig(project, FlatMapConfig{})
}

// Merge subscribes to every source concurrently and forwards their
// notifications interleaved, completing once every source has completed.
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return FlatMap(func(value Observable[T]) Observable[T] { return value })(FromSlice(sources))
}

// FlatMapWithConfig is FlatMap with an explicit concurrency cap and error
// policy. Maintains a map of active inner subscriptions keyed by an id
// starting at 1 (0 marks the outer source in error handling), a queue of
// pending outer values awaiting a free slot, an outerDone flag, and the
// delayed errors. Inner values are forwarded to the destination as they
// arrive; the destination never sees concurrent notifications because the
// safe Subscriber that NewObservableWithContext wraps it in serializes them,
// even though inner sources may run on independent goroutines.
func FlatMapWithConfig[T, R any](project func(value T) Observable[R], config FlatMapConfig) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
			state := &flatMapState[T, R]{
				ctx:            ctx,
				destination:    destination,
				project:        project,
				maxConcurrency: config.MaxConcurrency,
				delayErrors:    config.DelayErrors,
				innerSubs:      map[uint64]Subscription{},
			}

			outerSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				state.onOuterNext,
				state.onOuterError,
				state.onOuterComplete,
			))

			state.mu.Lock()
			state.outerSub = outerSub
			state.mu.Unlock()

			return func() {
				outerSub.Unsubscribe()
				state.mu.Lock()
				subs := make([]Subscription, 0, len(state.innerSubs))
				for _, s := range state.innerSubs {
					subs = append(subs, s)
				}
				state.mu.Unlock()
				for _, s := range subs {
					s.Unsubscribe()
				}
			}
		})
	}
}

type flatMapState[T, R any] struct {
	ctx            context.Context
	destination    Observer[R]
	project        func(T) Observable[R]
	maxConcurrency int
	delayErrors    bool

	mu        sync.Mutex
	outerSub  Subscription
	innerSubs map[uint64]Subscription
	nextID    uint64
	active    int
	pending   []T
	outerDone bool
	errs      []error
	closed    bool
}

func (s *flatMapState[T, R]) onOuterNext(ctx context.Context, value T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.maxConcurrency > 0 && s.active >= s.maxConcurrency {
		s.pending = append(s.pending, value)
		s.mu.Unlock()
		return
	}
	s.active++
	s.mu.Unlock()

	s.subscribeInner(ctx, value)
}

func (s *flatMapState[T, R]) subscribeInner(ctx context.Context, value T) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	inner := s.project(value)
	sub := inner.SubscribeWithContext(ctx, NewObserverWithContext(
		func(ctx context.Context, v R) {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.destination.NextWithContext(ctx, v)
			}
		},
		func(ctx context.Context, err error) { s.onInnerError(ctx, id, err) },
		func(ctx context.Context) { s.onInnerComplete(ctx, id) },
	))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	s.innerSubs[id] = sub
	s.mu.Unlock()
}

func (s *flatMapState[T, R]) onInnerError(ctx context.Context, id uint64, err error) {
	s.handleError(ctx, id, err)
}

func (s *flatMapState[T, R]) onOuterError(ctx context.Context, err error) {
	s.handleError(ctx, 0, err)
}

func (s *flatMapState[T, R]) handleError(ctx context.Context, innerID uint64, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if !s.delayErrors {
		s.closed = true
		subs := s.collectSubsLocked()
		s.mu.Unlock()
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		s.destination.ErrorWithContext(ctx, err)
		return
	}

	s.errs = append(s.errs, err)
	if innerID != 0 {
		delete(s.innerSubs, innerID)
		s.active--
	} else {
		s.outerDone = true
	}
	s.mu.Unlock()

	s.maybeFinish(ctx)
}

func (s *flatMapState[T, R]) onInnerComplete(ctx context.Context, id uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.innerSubs, id)
	s.active--

	var next T
	hasNext := false
	if len(s.pending) > 0 && (s.maxConcurrency <= 0 || s.active < s.maxConcurrency) {
		next = s.pending[0]
		s.pending = s.pending[1:]
		hasNext = true
		s.active++
	}
	s.mu.Unlock()

	if hasNext {
		s.subscribeInner(ctx, next)
	}

	s.maybeFinish(ctx)
}

func (s *flatMapState[T, R]) onOuterComplete(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.outerDone = true
	s.mu.Unlock()

	s.maybeFinish(ctx)
}

func (s *flatMapState[T, R]) collectSubsLocked() []Subscription {
	subs := make([]Subscription, 0, len(s.innerSubs))
	for _, sub := range s.innerSubs {
		subs = append(subs, sub)
	}
	return subs
}

func (s *flatMapState[T, R]) maybeFinish(ctx context.Context) {
	s.mu.Lock()
	if s.closed || !s.outerDone || s.active != 0 || len(s.pending) != 0 {
		s.mu.Unlock()
		return
	}
	s.closed = true
	errs := s.errs
	s.mu.Unlock()

	if err := newCompositeError(errs...); err != nil {
		s.destination.ErrorWithContext(ctx, err)
		return
	}
	s.destination.CompleteWithContext(ctx)
}

// ConcatConfig configures ConcatMapWithConfig.
type ConcatConfig struct {
	// Prefetch is not read by ConcatMapWithConfig: the next inner
	// Observable is subscribed only after the current one completes, with
	// no look-ahead, and outer values waiting for their turn are queued
	// without a bound.
	Prefetch int
	// DelayErrors accumulates errors instead of canceling the remaining
	// queue on the first one.
	DelayErrors bool
}

// ConcatMap subscribes to inner Observables one at a time, in outer arrival
// order, starting the next only once the current one completes.
func ConcatMap[T, R any](project func(value T) Observable[R]) Operator[T, R] {
	return ConcatMapWithConfig(project, ConcatConfig{})
}

// ConcatMapWithConfig is ConcatMap with an explicit error policy; it is
// FlatMapWithConfig with MaxConcurrency fixed to 1, since running at most
// one inner at a time already gives strict in-order delivery. config.Prefetch
// is ignored.
func ConcatMapWithConfig[T, R any](project func(value T) Observable[R], config ConcatConfig) Operator[T, R] {
	return FlatMapWithConfig(project, FlatMapConfig{MaxConcurrency: 1, DelayErrors: config.DelayErrors})
}

// Concat subscribes to each source in order, one at a time.
func Concat[T any](sources ...Observable[T]) Observable[T] {
	return ConcatMap(func(value Observable[T]) Observable[T] { return value })(FromSlice(sources))
}

// SwitchMap subscribes to the inner Observable produced by the latest outer
// value, unsubscribing from any still-active previous inner as soon as a
// new outer value arrives.
func SwitchMap[T, R any](project func(value T) Observable[R]) Operator[T, R] {
	return func(source Observable[T]) Observable[R] {
		return NewObservableWithContext(func(ctx context.Context, destination Observer[R]) Teardown {
			activeInner := NewSerialDisposable()

			var mu sync.Mutex
			outerDone := false
			innerActive := false
			closed := false

			maybeComplete := func() {
				mu.Lock()
				defer mu.Unlock()
				if !closed && outerDone && !innerActive {
					closed = true
					destination.CompleteWithContext(ctx)
				}
			}

			outerSub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					innerActive = true
					mu.Unlock()

					activeInner.Set(nil)
					innerSub := project(value).SubscribeWithContext(ctx, NewObserverWithContext(
						func(ctx context.Context, v R) {
							mu.Lock()
							c := closed
							mu.Unlock()
							if !c {
								destination.NextWithContext(ctx, v)
							}
						},
						func(ctx context.Context, err error) {
							mu.Lock()
							if closed {
								mu.Unlock()
								return
							}
							closed = true
							mu.Unlock()
							destination.ErrorWithContext(ctx, err)
						},
						func(ctx context.Context) {
							mu.Lock()
							innerActive = false
							mu.Unlock()
							maybeComplete()
						},
					))
					activeInner.Set(disposableFromSubscription(innerSub))
				},
				func(ctx context.Context, err error) {
					mu.Lock()
					if closed {
						mu.Unlock()
						return
					}
					closed = true
					mu.Unlock()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					mu.Lock()
					outerDone = true
					mu.Unlock()
					maybeComplete()
				},
			))

			return func() {
				outerSub.Unsubscribe()
				activeInner.Dispose()
			}
		})
	}
}

func disposableFromSubscription(sub Subscription) Disposable {
	return NewActionDisposable(sub.Unsubscribe)
}
