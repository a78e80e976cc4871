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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func panicsAndRecovers(t *testing.T, fn func()) any {
	t.Helper()
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		fn()
	}()
	return recovered
}

func TestObserverImpl_tryNextWithCapture_withCapture(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var errorCaught error
	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) { panic("next panic") },
		onError:       func(ctx context.Context, err error) { errorCaught = err },
		onComplete:    func(ctx context.Context) {},
	}

	observer.tryNextWithCapture(context.Background(), 42, true)

	is.Error(errorCaught)
	is.Contains(errorCaught.Error(), "next panic")
	var userErr *UserFunctionError
	is.True(errors.As(errorCaught, &userErr), "a captured onNext panic must be wrapped in UserFunctionError")
}

func TestObserverImpl_tryNextWithCapture_noErrorHandler_routesToUnhandled(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var unhandled error
	prev := GetOnUnhandledError()
	SetOnUnhandledError(func(ctx context.Context, err error) { unhandled = err })
	defer SetOnUnhandledError(prev)

	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) { panic("orphan panic") },
		onComplete:    func(ctx context.Context) {},
		// onError left nil: a captured Next panic with nowhere to go must
		// reach OnUnhandledError instead of tryError dereferencing a nil func.
	}

	observer.tryNextWithCapture(context.Background(), 7, true)

	is.Error(unhandled)
	is.Contains(unhandled.Error(), "orphan panic")
}

func TestObserverImpl_tryNextWithCapture_withoutCapture(t *testing.T) {
	t.Parallel()

	observer := &observerImpl[int]{
		capturePanics: false,
		onNext:        func(ctx context.Context, value int) { panic("next panic") },
		onError:       func(ctx context.Context, err error) {},
		onComplete:    func(ctx context.Context) {},
	}

	recovered := panicsAndRecovers(t, func() {
		observer.tryNextWithCapture(context.Background(), 42, false)
	})
	if recovered == nil {
		t.Fatalf("expected panic to propagate when capture=false")
	}
}

func TestObserverImpl_tryErrorWithCapture_withCapture(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var unhandledError error
	prev := GetOnUnhandledError()
	SetOnUnhandledError(func(ctx context.Context, err error) { unhandledError = err })
	defer SetOnUnhandledError(prev)

	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) {},
		onError:       func(ctx context.Context, err error) { panic("error panic") },
		onComplete:    func(ctx context.Context) {},
	}

	observer.tryErrorWithCapture(context.Background(), assert.AnError, true)
	is.Error(unhandledError)
	is.Contains(unhandledError.Error(), "error panic")
}

func TestObserverImpl_tryErrorWithCapture_withoutCapture(t *testing.T) {
	t.Parallel()

	observer := &observerImpl[int]{
		capturePanics: false,
		onNext:        func(ctx context.Context, value int) {},
		onError:       func(ctx context.Context, err error) { panic("error panic") },
		onComplete:    func(ctx context.Context) {},
	}

	recovered := panicsAndRecovers(t, func() {
		observer.tryErrorWithCapture(context.Background(), assert.AnError, false)
	})
	if recovered == nil {
		t.Fatalf("expected panic to propagate when capture=false")
	}
}

func TestObserverImpl_tryCompleteWithCapture_withCapture(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	var unhandledError error
	prev := GetOnUnhandledError()
	SetOnUnhandledError(func(ctx context.Context, err error) { unhandledError = err })
	defer SetOnUnhandledError(prev)

	observer := &observerImpl[int]{
		capturePanics: true,
		onNext:        func(ctx context.Context, value int) {},
		onError:       func(ctx context.Context, err error) {},
		onComplete:    func(ctx context.Context) { panic("complete panic") },
	}

	observer.tryCompleteWithCapture(context.Background(), true)
	is.Error(unhandledError)
	is.Contains(unhandledError.Error(), "complete panic")
}

func TestObserverImpl_tryCompleteWithCapture_withoutCapture(t *testing.T) {
	t.Parallel()

	observer := &observerImpl[int]{
		capturePanics: false,
		onNext:        func(ctx context.Context, value int) {},
		onError:       func(ctx context.Context, err error) {},
		onComplete:    func(ctx context.Context) { panic("complete panic") },
	}

	recovered := panicsAndRecovers(t, func() {
		observer.tryCompleteWithCapture(context.Background(), false)
	})
	if recovered == nil {
		t.Fatalf("expected panic to propagate when capture=false")
	}
}

func TestObserverImpl_runGuarded_capturesOnlyWhenRequested(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	observer := &observerImpl[int]{}

	var gotErr error
	observer.runGuarded(true, func() { panic("guarded") }, func(err error) { gotErr = err })
	is.Error(gotErr)
	is.Contains(gotErr.Error(), "guarded")

	recovered := panicsAndRecovers(t, func() {
		observer.runGuarded(false, func() { panic("unguarded") }, func(error) {
			t.Fatalf("onPanic must not run when capture=false")
		})
	})
	is.Equal("unguarded", recovered)
}

func TestObserverImpl_captureFor_respectsContextOverride(t *testing.T) {
	t.Parallel()
	is := assert.New(t)

	observer := &observerImpl[int]{capturePanics: true}
	is.True(observer.captureFor(context.Background()))
	is.False(observer.captureFor(WithObserverPanicCaptureDisabled(context.Background())))
}
