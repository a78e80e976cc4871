package stream

import (
	"sync"
	"sync/atomic"
)

// Disposable is a single resource that can be released exactly once. It is
// the minimal primitive operators reach for when they don't need the full
// finalizer-set behavior of a Subscription: a single occupied slot.
type Disposable interface {
	Dispose()
	IsDisposed() bool
}

// EmptyDisposable is already disposed. Dispose is a no-op.
var EmptyDisposable Disposable = emptyDisposable{}

type emptyDisposable struct{}

func (emptyDisposable) Dispose()        {}
func (emptyDisposable) IsDisposed() bool { return true }

var _ Disposable = (*actionDisposable)(nil)

type actionDisposable struct {
	disposed int32
	action   func()
}

// NewActionDisposable runs action the first time Dispose is called and never
// again. Subsequent Dispose calls are no-ops.
func NewActionDisposable(action func()) Disposable {
	return &actionDisposable{action: action}
}

func (d *actionDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			_ = tryCatch(d.action)
		}
	}
}

func (d *actionDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) != 0
}

var _ Disposable = (*containerDisposable)(nil)

type containerDisposable struct {
	sub Subscription
}

// NewContainerDisposable returns a Disposable view over a fresh Subscription:
// a set of resources disposed together, in addition order. Operators that
// need to collect several child disposables but don't need Subscription's
// full surface (Wait, typed teardown overloads) use this instead.
func NewContainerDisposable() Disposable {
	return &containerDisposable{sub: NewSubscription(nil)}
}

// Add registers d to be disposed when the container is disposed.
func (c *containerDisposable) Add(d Disposable) {
	if d == nil {
		return
	}
	c.sub.Add(d.Dispose)
}

func (c *containerDisposable) Dispose()        { c.sub.Unsubscribe() }
func (c *containerDisposable) IsDisposed() bool { return c.sub.IsClosed() }

var _ Disposable = (*SerialDisposable)(nil)

// NewSerialDisposable returns an empty serial disposable. It holds at most
// one child Disposable: setting a new child disposes the previous occupant
// first (atomic swap semantics), and once disposed itself, any further Set
// disposes its argument immediately instead of storing it. SwitchMap,
// Debounce, Timeout, OnErrorResumeNext, the Retry/Repeat loop and the
// schedulers' periodic tasks use this to keep at most one live child at a
// time; the multicast operators do not.
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{}
}

// SerialDisposable is the exported handle returned by NewSerialDisposable.
type SerialDisposable struct {
	mu       sync.Mutex
	current  Disposable
	disposed bool
}

// Set disposes the previously held child (if any) and stores d as the new
// occupant. If the serial disposable has already been disposed, d is
// disposed immediately instead of being retained.
func (s *SerialDisposable) Set(d Disposable) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		if d != nil {
			d.Dispose()
		}
		return
	}

	previous := s.current
	s.current = d
	s.mu.Unlock()

	if previous != nil {
		previous.Dispose()
	}
}

// Dispose disposes the current occupant (if any) and marks the serial
// disposable as permanently disposed.
func (s *SerialDisposable) Dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		current.Dispose()
	}
}

// IsDisposed reports whether the serial disposable has been disposed.
func (s *SerialDisposable) IsDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
