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
	"testing"

	"go.uber.org/goleak"
)

// TestMain leak-checks every test in the package. Schedulers, SerialDisposable
// holders, and the detachOn-based SubscribeOn/ObserveOn goroutines are the
// usual suspects when a subscription forgets to unwind on Unsubscribe.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// The default scheduler's goroutine pool for computation/io workers is
		// process-lifetime by design and is not expected to unwind between tests.
		goleak.IgnoreTopFunction("github.com/kesho/stream.(*goroutineWorker).loop"),
	)
}
