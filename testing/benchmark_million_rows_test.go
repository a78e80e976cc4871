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

package testing

import (
	"context"
	stdtesting "testing"

	"github.com/kesho/stream"
)

// concurrencyModeCases is shared by every million-row benchmark below so
// each one exercises the same four ConcurrencyMode choices against its own
// pipeline shape.
func concurrencyModeCases() []struct {
	name   string
	source stream.Observable[int64]
} {
	return []struct {
		name   string
		source stream.Observable[int64]
	}{
		{name: "single-producer", source: stream.Range(0, 1_000_000)},
		{name: "unsafe-mutex", source: stream.RangeWithMode(0, 1_000_000, stream.ConcurrencyModeUnsafe)},
		{name: "safe-mutex", source: stream.RangeWithMode(0, 1_000_000, stream.ConcurrencyModeSafe)},
		{name: "eventually-safe", source: stream.RangeWithMode(0, 1_000_000, stream.ConcurrencyModeEventuallySafe)},
	}
}

// BenchmarkMillionRowChallenge runs a Map/Filter/Map pipeline over a million
// rows and sums the result, across every ConcurrencyMode the Range source
// can be built with.
func BenchmarkMillionRowChallenge(b *stdtesting.B) {
	b.ReportAllocs()
	// A per-subscription context disables observer panic capture for the
	// benchmark, avoiding mutation of the package-level default while still
	// keeping sub-benchmarks parallel-friendly.
	ctx := stream.WithObserverPanicCaptureDisabled(context.Background())

	const expectedSum int64 = 750001500000

	for _, tc := range concurrencyModeCases() {
		b.Run(tc.name, func(b *stdtesting.B) {
			pipeline := stream.Pipe3(
				tc.source,
				stream.Map(func(value int64) int64 { return value + 1 }),
				stream.Filter(func(value int64) bool { return value%2 == 0 }),
				stream.Map(func(value int64) int64 { return value * 3 }),
			)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var sum int64

				subscription := pipeline.SubscribeWithContext(ctx, stream.NewObserver(
					func(value int64) { sum += value },
					func(err error) { b.Fatalf("unexpected error: %v", err) },
					func() {},
				))

				subscription.Wait()

				if sum != expectedSum {
					b.Fatalf("unexpected sum: %d", sum)
				}
			}
		})
	}
}

// BenchmarkMillionRowReduce measures the Reduce terminal operator over the
// same row count and ConcurrencyMode matrix: unlike Map/Filter/Map, which
// delivers every intermediate value downstream, Reduce only ever emits its
// final accumulator, so this isolates the per-Next accumulation cost from
// per-Next delivery cost.
func BenchmarkMillionRowReduce(b *stdtesting.B) {
	b.ReportAllocs()
	ctx := stream.WithObserverPanicCaptureDisabled(context.Background())

	const expectedSum int64 = 499999500000 // sum(0..999999)

	for _, tc := range concurrencyModeCases() {
		b.Run(tc.name, func(b *stdtesting.B) {
			pipeline := stream.Reduce(int64(0), func(acc int64, value int64) int64 { return acc + value })(tc.source)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var result int64
				var gotNext bool

				subscription := pipeline.SubscribeWithContext(ctx, stream.NewObserver(
					func(value int64) { result, gotNext = value, true },
					func(err error) { b.Fatalf("unexpected error: %v", err) },
					func() {},
				))

				subscription.Wait()

				if !gotNext || result != expectedSum {
					b.Fatalf("unexpected reduce result: %d (gotNext=%v)", result, gotNext)
				}
			}
		})
	}
}
