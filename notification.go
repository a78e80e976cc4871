package stream

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
)

// hookSlot holds one globally-installed callback of type F behind an
// atomic.Value, so every Observer/Subscriber in the process can read it on
// the hot path without a lock while a caller swaps it out from anywhere.
type hookSlot[F any] struct {
	value atomic.Value
}

func newHookSlot[F any](initial F) *hookSlot[F] {
	s := &hookSlot[F]{}
	s.value.Store(initial)
	return s
}

func (s *hookSlot[F]) set(fn F, fallback F) {
	if any(fn) == nil {
		fn = fallback
	}
	s.value.Store(fn)
}

func (s *hookSlot[F]) get() F {
	return s.value.Load().(F)
}

var (
	unhandledErrorHook      = newHookSlot[func(ctx context.Context, err error)](IgnoreOnUnhandledError)
	droppedNotificationHook = newHookSlot[func(ctx context.Context, notification fmt.Stringer)](IgnoreOnDroppedNotification)
)

// SetOnUnhandledError installs the callback invoked whenever an error
// notification reaches an Observer that has no Error handler of its own, or
// a panic escapes a user callback with nothing downstream to catch it.
// Passing nil restores the no-op default.
func SetOnUnhandledError(fn func(ctx context.Context, err error)) {
	unhandledErrorHook.set(fn, IgnoreOnUnhandledError)
}

// GetOnUnhandledError returns the callback currently installed by
// SetOnUnhandledError.
func GetOnUnhandledError() func(ctx context.Context, err error) {
	return unhandledErrorHook.get()
}

// OnUnhandledError invokes the currently installed unhandled-error callback.
func OnUnhandledError(ctx context.Context, err error) {
	unhandledErrorHook.get()(ctx, err)
}

// SetOnDroppedNotification installs the callback invoked whenever a
// Notification arrives at an Observer that has already been closed (it
// already errored or completed). Passing nil restores the no-op default.
func SetOnDroppedNotification(fn func(ctx context.Context, notification fmt.Stringer)) {
	droppedNotificationHook.set(fn, IgnoreOnDroppedNotification)
}

// GetOnDroppedNotification returns the callback currently installed by
// SetOnDroppedNotification.
func GetOnDroppedNotification() func(ctx context.Context, notification fmt.Stringer) {
	return droppedNotificationHook.get()
}

// OnDroppedNotification invokes the currently installed dropped-notification
// callback.
func OnDroppedNotification(ctx context.Context, notification fmt.Stringer) {
	droppedNotificationHook.get()(ctx, notification)
}

// IgnoreOnUnhandledError discards the error. This is the engine's default
// unhandled-error hook.
func IgnoreOnUnhandledError(ctx context.Context, err error) {}

// IgnoreOnDroppedNotification discards the notification. This is the
// engine's default dropped-notification hook.
func IgnoreOnDroppedNotification(ctx context.Context, notification fmt.Stringer) {}

// DefaultOnUnhandledError logs the error via the standard logger. Install it
// with SetOnUnhandledError(stream.DefaultOnUnhandledError) for visibility
// during development; production consumers typically route this hook to
// their own structured logger instead.
func DefaultOnUnhandledError(ctx context.Context, err error) {
	if err != nil {
		log.Printf("stream: unhandled error: %s\n", err.Error())
	}
}

var _ fmt.Stringer = (*Notification[int])(nil) // see below

// DefaultOnDroppedNotification logs the dropped notification via the
// standard logger.
//
// SetOnDroppedNotification cannot accept a generic Notification[T] callback
// (Go does not let a variable hold a value of a generic interface type
// parameterized differently per call site), so the hook is typed against
// fmt.Stringer instead; every Notification[T] already implements it.
func DefaultOnDroppedNotification(ctx context.Context, notification fmt.Stringer) {
	log.Printf("stream: dropped notification: %s\n", notification.String())
}

// Kind tags which variant a Notification carries: Next, Error, or Complete.
type Kind uint8

// Kind constants.
const (
	KindNext Kind = iota
	KindError
	KindComplete
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNext:
		return "Next"
	case KindError:
		return "Error"
	case KindComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Notification is a materialized push: exactly one of a Next value, an
// Error, or a Complete signal, tagged by Kind. Materialize/Dematerialize
// convert between a live Observable[T] and an Observable[Notification[T]]
// of these.
type Notification[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// IsNext reports whether n carries a Next value.
func (n Notification[T]) IsNext() bool { return n.Kind == KindNext }

// IsError reports whether n carries an Error.
func (n Notification[T]) IsError() bool { return n.Kind == KindError }

// IsComplete reports whether n carries a Complete signal.
func (n Notification[T]) IsComplete() bool { return n.Kind == KindComplete }

func (n Notification[T]) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("Next(%+v)", n.Value)
	case KindError:
		if n.Err == nil {
			return "Error(nil)"
		}
		return fmt.Sprintf("Error(%s)", n.Err.Error())
	case KindComplete:
		return "Complete()"
	default:
		return "Unknown()"
	}
}

// NewNotificationNext wraps value as a Next notification.
func NewNotificationNext[T any](value T) Notification[T] {
	return Notification[T]{Kind: KindNext, Value: value}
}

// NewNotificationError wraps err as an Error notification.
func NewNotificationError[T any](err error) Notification[T] {
	return Notification[T]{Kind: KindError, Err: err}
}

// NewNotificationComplete builds a Complete notification.
func NewNotificationComplete[T any]() Notification[T] {
	return Notification[T]{Kind: KindComplete}
}

// dispatchNotification routes n to whichever of onNext/onError/onComplete
// matches its Kind and reports whether n was a Next (i.e. whether the
// producer it came from may still have more notifications coming).
func dispatchNotification[T any](n Notification[T], onNext func(T), onError func(error), onComplete func()) bool {
	switch n.Kind {
	case KindNext:
		onNext(n.Value)
		return true
	case KindError:
		onError(n.Err)
		return false
	case KindComplete:
		onComplete()
		return false
	default:
		panic("stream: notification with unknown kind")
	}
}

func dispatchNotificationWithContext[T any](ctx context.Context, n Notification[T], onNext func(context.Context, T), onError func(context.Context, error), onComplete func(context.Context)) bool {
	switch n.Kind {
	case KindNext:
		onNext(ctx, n.Value)
		return true
	case KindError:
		onError(ctx, n.Err)
		return false
	case KindComplete:
		onComplete(ctx)
		return false
	default:
		panic("stream: notification with unknown kind")
	}
}

func dispatchNotificationToObserver[T any](n Notification[T], destination Observer[T]) bool {
	return dispatchNotificationWithContext(context.Background(), n, destination.NextWithContext, destination.ErrorWithContext, destination.CompleteWithContext)
}

func dispatchNotificationToObserverWithContext[T any](ctx context.Context, n Notification[T], destination Observer[T]) bool {
	return dispatchNotificationWithContext(ctx, n, destination.NextWithContext, destination.ErrorWithContext, destination.CompleteWithContext)
}
