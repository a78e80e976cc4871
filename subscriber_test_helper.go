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
	"fmt"
	"testing"
)

// WithDroppedNotification installs handler as the package's
// dropped-notification hook for the duration of fn, then restores whatever
// hook was installed before — including another test's override nested
// inside fn. Because the hook lives behind SetOnDroppedNotification's own
// atomic.Value (see notification.go's hookSlot), nested or parallel uses of
// this helper never race each other the way a bare package-level var
// assignment would.
func WithDroppedNotification(t *testing.T, handler func(ctx context.Context, notification fmt.Stringer), fn func()) {
	t.Helper()

	prev := GetOnDroppedNotification()
	SetOnDroppedNotification(handler)
	defer SetOnDroppedNotification(prev)

	fn()
}

// WithUnhandledError is WithDroppedNotification's counterpart for the
// unhandled-error hook, used by tests asserting on panics an Observer
// captures but has no onError handler to route them to.
func WithUnhandledError(t *testing.T, handler func(ctx context.Context, err error), fn func()) {
	t.Helper()

	prev := GetOnUnhandledError()
	SetOnUnhandledError(handler)
	defer SetOnUnhandledError(prev)

	fn()
}
