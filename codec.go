package stream

import (
	"context"
	"encoding/json"
)

// MarshalJSON maps every value from source to its JSON encoding.
// UserFunctionError wraps any marshal failure so it is distinguishable from
// upstream errors by consumers inspecting the error chain.
func MarshalJSON[T any]() Operator[T, []byte] {
	return func(source Observable[T]) Observable[[]byte] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[[]byte]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, value T) {
					encoded, err := json.Marshal(value)
					if err != nil {
						destination.ErrorWithContext(ctx, &UserFunctionError{Err: err})
						return
					}
					destination.NextWithContext(ctx, encoded)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}

// UnmarshalJSON decodes every []byte value from source into a T, the
// inverse of MarshalJSON.
func UnmarshalJSON[T any]() Operator[[]byte, T] {
	return func(source Observable[[]byte]) Observable[T] {
		return NewUnsafeObservableWithContext(func(ctx context.Context, destination Observer[T]) Teardown {
			sub := source.SubscribeWithContext(ctx, NewObserverWithContext(
				func(ctx context.Context, raw []byte) {
					var value T
					if err := json.Unmarshal(raw, &value); err != nil {
						destination.ErrorWithContext(ctx, &UserFunctionError{Err: err})
						return
					}
					destination.NextWithContext(ctx, value)
				},
				destination.ErrorWithContext,
				destination.CompleteWithContext,
			))
			return sub.Unsubscribe
		})
	}
}
