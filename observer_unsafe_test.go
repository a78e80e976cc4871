package stream

import (
	"context"
	"errors"
	"testing"
)

func TestNewObserverUnsafe_panicsPropagate(t *testing.T) {
	t.Parallel()
	obs := NewUnsafeObserver[int](
		func(v int) { panic(errors.New("boom")) },
		func(err error) {},
		func() {},
	)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		obs.Next(1)
	}()

	if recovered == nil {
		t.Fatalf("expected panic to propagate from NewUnsafeObserver")
	}
	if err, ok := recovered.(error); !ok || err.Error() != "boom" {
		t.Fatalf("expected the original error value to propagate unwrapped, got %#v", recovered)
	}
	if obs.IsClosed() {
		t.Fatalf("a propagated panic must not CAS status to closed: the caller never learns the delivery happened")
	}
}

func TestNewObserverWithContextUnsafe_panicsPropagate(t *testing.T) {
	t.Parallel()
	obs := NewObserverWithContextUnsafe[int](
		func(ctx context.Context, v int) { panic(42) }, // non-string, non-error panic value
		func(ctx context.Context, err error) {},
		func(ctx context.Context) {},
	)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		obs.NextWithContext(context.Background(), 1)
	}()

	if recovered != 42 {
		t.Fatalf("expected the raw panic value 42 to propagate untouched, got %#v", recovered)
	}
}

func TestNewObserver_defaultCapturesPanic(t *testing.T) {
	t.Parallel()
	var caught error
	obs := NewObserver[int](
		func(v int) { panic("boom2") },
		func(err error) { caught = err },
		func() {},
	)

	// This must not panic; the onError handler is invoked with the wrapped
	// panic instead, and status moves straight to errored (never "open").
	obs.Next(1)

	if caught == nil {
		t.Fatalf("expected NewObserver to capture the panic and call onError")
	}
	var userErr *UserFunctionError
	if !errors.As(caught, &userErr) {
		t.Fatalf("expected the captured panic to be wrapped in a UserFunctionError, got %T", caught)
	}
	if !obs.HasThrown() {
		t.Fatalf("expected observer status to be errored after the captured panic routed to onError")
	}
}

func TestWithObserverPanicCaptureDisabled_overridesDefault(t *testing.T) {
	t.Parallel()
	obs := NewObserverWithContext[int](
		func(ctx context.Context, v int) { panic("boom3") },
		func(ctx context.Context, err error) {},
		func(ctx context.Context) {},
	)

	ctx := WithObserverPanicCaptureDisabled(context.Background())

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		obs.NextWithContext(ctx, 1)
	}()

	if recovered == nil {
		t.Fatalf("expected WithObserverPanicCaptureDisabled to defeat the package-level capture default")
	}
}
