package stream

import (
	"context"
	"fmt"
	"testing"
)

var allConcurrencyModes = []struct {
	name string
	mode ConcurrencyMode
}{
	{"Safe", ConcurrencyModeSafe},
	{"Unsafe", ConcurrencyModeUnsafe},
	{"EventuallySafe", ConcurrencyModeEventuallySafe},
	{"SingleProducer", ConcurrencyModeSingleProducer},
}

// BenchmarkSubscriberNextPath compares the hot-path cost of calling Next
// across every ConcurrencyMode: Safe pays for a real mutex, Unsafe calls a
// no-op mutex, EventuallySafe pays for TryLock, and SingleProducer never
// touches a lock at all. Panic capture is disabled to isolate
// synchronization cost from the recover() overhead measured separately by
// BenchmarkSubscriberPanicCapture.
func BenchmarkSubscriberNextPath(b *testing.B) {
	prev := CaptureObserverPanics()
	SetCaptureObserverPanics(false)
	defer SetCaptureObserverPanics(prev)

	for _, c := range allConcurrencyModes {
		b.Run(c.name, func(b *testing.B) {
			sub := NewSubscriberWithConcurrencyMode[int](NoopObserver[int](), c.mode)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sub.Next(i)
			}
		})
	}
}

// BenchmarkSubscriberTerminalPath measures delivering a single terminal
// Complete through deliverTerminal's CAS-then-unsubscribe path, a fresh
// subscriber per iteration since Complete can only ever fire once.
func BenchmarkSubscriberTerminalPath(b *testing.B) {
	for _, c := range allConcurrencyModes {
		b.Run(c.name, func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				sub := NewSubscriberWithConcurrencyMode[int](NoopObserver[int](), c.mode)
				sub.Complete()
			}
		})
	}
}

// BenchmarkSubscriberPanicCapture measures the overhead of observer
// panic-capture by toggling CaptureObserverPanics and constructing
// subscribers after each toggle, for every concurrency mode.
func BenchmarkSubscriberPanicCapture(b *testing.B) {
	for _, capture := range []bool{false, true} {
		for _, m := range allConcurrencyModes {
			b.Run(fmt.Sprintf("%s/capture=%v", m.name, capture), func(b *testing.B) {
				prev := CaptureObserverPanics()
				SetCaptureObserverPanics(capture)
				defer SetCaptureObserverPanics(prev)

				sub := NewSubscriberWithConcurrencyMode[int](NoopObserver[int](), m.mode)
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					sub.Next(i)
				}
			})
		}
	}
}

// BenchmarkDispatchNotification measures routing a materialized
// Notification[T] back out to an Observer via
// dispatchNotificationToObserverWithContext, the path Delay, DelayEach and
// ReplaySubject drive on every element.
func BenchmarkDispatchNotification(b *testing.B) {
	destination := NoopObserver[int]()
	notifications := []Notification[int]{
		NewNotificationNext(1),
		NewNotificationNext(2),
		NewNotificationNext(3),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dispatchNotificationToObserverWithContext(context.Background(), notifications[i%len(notifications)], destination)
	}
}
