package stream

import (
	"context"
	"sync"
	"time"
)

// replayBuffer stores notifications for a ReplaySubject/Replay operator
// under a size bound, a time bound, or both (0 means unbounded for either
// axis). Entries older than the time bound are trimmed lazily, on push and
// on snapshot, rather than by a background timer.
type replayBuffer[T any] struct {
	mu        sync.Mutex
	sizeBound int
	timeBound time.Duration
	now       func() time.Duration
	entries   []replayEntry[T]
}

type replayEntry[T any] struct {
	at time.Duration
	n  Notification[T]
}

func newReplayBuffer[T any](sizeBound int, timeBound time.Duration, now func() time.Duration) *replayBuffer[T] {
	if now == nil {
		now = schedulerNow
	}
	return &replayBuffer[T]{sizeBound: sizeBound, timeBound: timeBound, now: now}
}

func (b *replayBuffer[T]) push(n Notification[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, replayEntry[T]{at: b.now(), n: n})
	b.trimLocked()
}

func (b *replayBuffer[T]) trimLocked() {
	if b.timeBound > 0 {
		cutoff := b.now() - b.timeBound
		i := 0
		for i < len(b.entries) && b.entries[i].at < cutoff {
			i++
		}
		b.entries = b.entries[i:]
	}

	if b.sizeBound > 0 && len(b.entries) > b.sizeBound {
		b.entries = b.entries[len(b.entries)-b.sizeBound:]
	}
}

func (b *replayBuffer[T]) snapshot() []Notification[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trimLocked()

	out := make([]Notification[T], len(b.entries))
	for i, e := range b.entries {
		out[i] = e.n
	}
	return out
}

// ConnectableObservable is an Observable that doesn't start producing until
// Connect is called. Multiple Observers can subscribe to it beforehand;
// none receive anything until the single upstream subscription is made.
type ConnectableObservable[T any] interface {
	Observable[T]
	// Connect subscribes to the underlying source, fanning its
	// notifications out to every Observer subscribed so far (and any that
	// subscribe later, per the subject's own semantics). Calling Connect
	// more than once is a no-op until the returned Subscription is
	// unsubscribed.
	Connect() Subscription
}

// Publish returns a ConnectableObservable backed by a plain PublishSubject:
// late subscribers only see values emitted after they subscribe.
func Publish[T any](source Observable[T]) ConnectableObservable[T] {
	return PublishWithSubject(source, NewPublishSubject[T]())
}

// PublishWithSubject returns a ConnectableObservable multicasting through an
// arbitrary Subject (e.g. a BehaviorSubject to replay the latest value to
// late subscribers, or a ReplaySubject for a bounded history).
func PublishWithSubject[T any](source Observable[T], subject Subject[T]) ConnectableObservable[T] {
	return &connectableImpl[T]{source: source, subject: subject}
}

type connectableImpl[T any] struct {
	source Observable[T]

	mu         sync.Mutex
	subject    Subject[T]
	connection Subscription
}

func (c *connectableImpl[T]) Subscribe(destination Observer[T]) Subscription {
	return c.subject.Subscribe(destination)
}

func (c *connectableImpl[T]) SubscribeWithContext(ctx context.Context, destination Observer[T]) Subscription {
	return c.subject.SubscribeWithContext(ctx, destination)
}

func (c *connectableImpl[T]) Connect() Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connection != nil && !c.connection.IsClosed() {
		return c.connection
	}

	c.connection = c.source.Subscribe(c.subject.AsObserver())
	return c.connection
}

// ShareConfig controls how Share resets the underlying subject across
// connect/disconnect cycles, grounded on the retrieved ConnectableObservable
// fork's reset policy.
type ShareConfig[T any] struct {
	// Connector builds the Subject used for the next connection. Defaults
	// to NewPublishSubject if nil.
	Connector func() Subject[T]
	// ResetOnError recreates the subject (dropping late replay/behavior
	// state) after the source errors.
	ResetOnError bool
	// ResetOnComplete recreates the subject after the source completes.
	ResetOnComplete bool
	// ResetOnRefCountZero recreates the subject once the last subscriber
	// unsubscribes and the ref count returns to zero.
	ResetOnRefCountZero bool
}

// Share multicasts source to every subscriber through a ref-counted
// PublishSubject: the underlying subscription to source starts with the
// first subscriber and ends with the last, matching RxJS's share().
func Share[T any](source Observable[T]) Observable[T] {
	return ShareWithConfig(source, ShareConfig[T]{
		ResetOnError:        true,
		ResetOnComplete:     true,
		ResetOnRefCountZero: true,
	})
}

// ShareWithConfig is Share with an explicit reset policy and subject
// constructor (e.g. a BehaviorSubject-backed share, or a Connector that
// reuses state across reconnects).
func ShareWithConfig[T any](source Observable[T], config ShareConfig[T]) Observable[T] {
	if config.Connector == nil {
		config.Connector = func() Subject[T] { return NewPublishSubject[T]() }
	}

	s := &shareImpl[T]{source: source, config: config}
	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		return s.subscribe(ctx, destination)
	})
}

type shareImpl[T any] struct {
	source Observable[T]
	config ShareConfig[T]

	mu         sync.Mutex
	subject    Subject[T]
	refCount   int
	connection Subscription
}

func (s *shareImpl[T]) getOrCreateSubject() Subject[T] {
	if s.subject == nil {
		s.subject = s.config.Connector()
	}
	return s.subject
}

func (s *shareImpl[T]) reset() {
	s.subject = nil
	s.connection = nil
	s.refCount = 0
}

func (s *shareImpl[T]) subscribe(ctx context.Context, destination Observer[T]) Teardown {
	s.mu.Lock()

	subject := s.getOrCreateSubject()
	s.refCount++

	if s.connection == nil {
		proxy := NewObserverWithContext(
			func(ctx context.Context, v T) { subject.NextWithContext(ctx, v) },
			func(ctx context.Context, err error) {
				subject.ErrorWithContext(ctx, err)
				s.mu.Lock()
				if s.config.ResetOnError {
					s.reset()
				}
				s.mu.Unlock()
			},
			func(ctx context.Context) {
				subject.CompleteWithContext(ctx)
				s.mu.Lock()
				if s.config.ResetOnComplete {
					s.reset()
				}
				s.mu.Unlock()
			},
		)
		s.connection = s.source.SubscribeWithContext(ctx, proxy)
	}

	sub := subject.SubscribeWithContext(ctx, destination)
	s.mu.Unlock()

	return func() {
		sub.Unsubscribe()

		s.mu.Lock()
		s.refCount--
		if s.refCount <= 0 {
			connection := s.connection
			if s.config.ResetOnRefCountZero {
				s.reset()
			}
			s.mu.Unlock()

			if connection != nil {
				connection.Unsubscribe()
			}
			return
		}
		s.mu.Unlock()
	}
}

// RefCount adapts a ConnectableObservable into a plain Observable that
// connects on first subscriber and disconnects on last, without requiring
// the caller to call Connect directly.
func RefCount[T any](source ConnectableObservable[T]) Observable[T] {
	var mu sync.Mutex
	count := 0
	var connection Subscription

	return NewObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
		sub := source.SubscribeWithContext(ctx, destination)

		mu.Lock()
		count++
		if count == 1 {
			connection = source.Connect()
		}
		mu.Unlock()

		return func() {
			sub.Unsubscribe()

			mu.Lock()
			count--
			if count == 0 && connection != nil {
				c := connection
				connection = nil
				mu.Unlock()
				c.Unsubscribe()
				return
			}
			mu.Unlock()
		}
	})
}

// ReplayPolicy configures the buffer a Replay/ShareReplay operator keeps.
type ReplayPolicy struct {
	// SizeBound caps the number of buffered notifications; 0 means unbounded.
	SizeBound int
	// TimeBound caps how long a notification stays eligible for replay; 0
	// means unbounded. Ages are read from Worker's clock when Worker is
	// set, and from the default monotonic clock otherwise.
	TimeBound time.Duration
	Worker    Worker
}

// Replay returns a ConnectableObservable backed by a ReplaySubject-like
// buffer governed by policy (unbounded if the zero value is passed).
func Replay[T any](source Observable[T], policy ReplayPolicy) ConnectableObservable[T] {
	var now func() time.Duration
	if policy.Worker != nil {
		now = policy.Worker.Now
	}

	subject := &replaySubjectImpl[T]{
		inner:  NewPublishSubject[T]().(*publishSubjectImpl[T]),
		policy: newReplayBuffer[T](policy.SizeBound, policy.TimeBound, now),
	}

	return PublishWithSubject[T](source, subject)
}

// ShareReplay multicasts source through a bounded replay buffer, connecting
// on first subscriber and disconnecting on last (RxJS's shareReplay()).
func ShareReplay[T any](source Observable[T], bufferSize int) Observable[T] {
	return ShareReplayWithConfig(source, bufferSize, ShareReplayConfig{})
}

// ShareReplayConfig controls reset behavior for ShareReplayWithConfig.
type ShareReplayConfig struct {
	ResetOnRefCountZero bool
}

// ShareReplayWithConfig is ShareReplay with explicit ref-count reset policy.
func ShareReplayWithConfig[T any](source Observable[T], bufferSize int, config ShareReplayConfig) Observable[T] {
	return ShareWithConfig(source, ShareConfig[T]{
		Connector:           func() Subject[T] { return NewReplaySubject[T](bufferSize) },
		ResetOnRefCountZero: config.ResetOnRefCountZero,
	})
}
