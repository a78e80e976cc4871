package stream

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// captureObserverPanicsDefault controls the default panic-capture behavior
// of observers created with NewObserver/NewObserverWithContext. Tests and
// latency-sensitive callers can disable it globally with
// SetCaptureObserverPanics, or per-subscription with
// WithObserverPanicCaptureDisabled.
var captureObserverPanicsDefault atomic.Bool

func init() {
	captureObserverPanicsDefault.Store(true)
}

// CaptureObserverPanics reports whether newly constructed safe observers
// capture panics raised by user callbacks.
func CaptureObserverPanics() bool {
	return captureObserverPanicsDefault.Load()
}

// SetCaptureObserverPanics toggles the default panic-capture behavior for
// observers created afterward. It returns the previous value so callers can
// restore it, e.g. `defer SetCaptureObserverPanics(SetCaptureObserverPanics(false))`.
func SetCaptureObserverPanics(capture bool) bool {
	return captureObserverPanicsDefault.Swap(capture)
}

// UpstreamError wraps an error delivered via onError from an upstream
// source, forwarded downstream per the operator's error policy.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("upstream error: %s", e.Err.Error()) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// UserFunctionError wraps a panic recovered from a user-supplied mapper,
// predicate, reducer, or other callback. The subscription is disposed once
// this error is delivered.
type UserFunctionError struct {
	Err error
}

func (e *UserFunctionError) Error() string {
	return fmt.Sprintf("user function panicked: %s", e.Err.Error())
}
func (e *UserFunctionError) Unwrap() error { return e.Err }

// ProtocolViolation reports a subscription handshake invariant broken by a
// source or operator (a callback delivered after a terminal notification, a
// second terminal notification, or concurrent calls into the same consumer).
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string { return "protocol violation: " + e.Reason }

// CompositeError aggregates multiple errors, produced when delayErrors is
// enabled on a concurrent operator or when a cleanup action fails alongside
// a terminal error.
type CompositeError struct {
	Errs []error
}

func (e *CompositeError) Error() string {
	if len(e.Errs) == 0 {
		return "composite error: (empty)"
	}
	msg := fmt.Sprintf("composite error (%d): %s", len(e.Errs), e.Errs[0].Error())
	for _, err := range e.Errs[1:] {
		msg += "; " + err.Error()
	}
	return msg
}

func (e *CompositeError) Unwrap() []error { return e.Errs }

// newCompositeError flattens nested CompositeErrors and drops nils, mirroring
// how delayErrors accumulation should behave across nested operators.
func newCompositeError(errs ...error) error {
	var flat []error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if composite, ok := err.(*CompositeError); ok {
			flat = append(flat, composite.Errs...)
			continue
		}
		flat = append(flat, err)
	}

	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &CompositeError{Errs: flat}
	}
}

// TimeoutError is synthesized when a timeout operator's window expires with
// no fallback source configured.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s with no value", e.Duration)
}

// MissingElementError is raised by single-element terminal operators
// (ToBlockingFirst, ToBlockingLast, ToBlockingSingle) against an empty stream.
type MissingElementError struct {
	Op string
}

func (e *MissingElementError) Error() string {
	return fmt.Sprintf("%s: stream produced no element", e.Op)
}

// ResourceCleanupError wraps a panic or error raised by a `Using` release
// function. When the release is eager it is composed with any terminal
// error; otherwise it is reported to the unhandled-error plugin hook.
type ResourceCleanupError struct {
	Err error
}

func (e *ResourceCleanupError) Error() string {
	return fmt.Sprintf("resource cleanup failed: %s", e.Err.Error())
}
func (e *ResourceCleanupError) Unwrap() error { return e.Err }

// recoverValueToError normalizes a recover() return value into an error,
// matching the teacher's convention of never letting a recovered panic
// value other than error/string escape as an `any`.
func recoverValueToError(v any) error {
	switch e := v.(type) {
	case nil:
		return nil
	case error:
		return e
	case string:
		return fmt.Errorf("%s", e)
	default:
		return fmt.Errorf("%v", e)
	}
}

// newObserverError wraps a panic recovered from an Observer callback as a
// UserFunctionError.
func newObserverError(err error) error {
	return &UserFunctionError{Err: err}
}

// newUnsubscriptionError wraps a panic recovered from a subscription
// teardown as a ResourceCleanupError.
func newUnsubscriptionError(err error) error {
	return &ResourceCleanupError{Err: err}
}

// newTimeoutError builds a TimeoutError for the given window.
func newTimeoutError(d time.Duration) error {
	return &TimeoutError{Duration: d}
}

// recoverUnhandledError runs fn and, if it panics, converts the recovered
// value into an error delivered to the unhandled-error plugin hook instead
// of crashing the goroutine. Sources that run their own driving goroutine
// (FromChannel, FromFuture, detachOn, the goroutine-backed schedulers)
// launch with this wrapper.
func recoverUnhandledError(fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				OnUnhandledError(context.Background(), newObserverError(recoverValueToError(r)))
			}
		}()
		fn()
	}
}

// tryCatch runs fn, converting a panic into an error via lo.TryCatchWithErrorValue.
func tryCatch(fn func()) (err error) {
	lo.TryCatchWithErrorValue(
		func() error {
			fn()
			return nil
		},
		func(e any) {
			err = recoverValueToError(e)
		},
	)
	return err
}
