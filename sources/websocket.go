package sources

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/kesho/stream"
)

// FromWebSocket dials url and emits every message frame received on the
// connection as a []byte, until the server closes the connection, the
// subscription's context is canceled, or Unsubscribe is called.
func FromWebSocket(url string) stream.Observable[[]byte] {
	return stream.NewObservableWithContext(func(ctx context.Context, destination stream.Observer[[]byte]) stream.Teardown {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			destination.ErrorWithContext(ctx, err)
			return nil
		}

		done := make(chan struct{})

		go func() {
			defer close(done)
			for {
				_, message, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						destination.CompleteWithContext(ctx)
						return
					}
					destination.ErrorWithContext(ctx, err)
					return
				}
				destination.NextWithContext(ctx, message)
			}
		}()

		return func() {
			_ = conn.Close()
			<-done
		}
	})
}

// ToWebSocket dials url and writes every []byte value from source to the
// connection as a binary frame, completing (and closing the connection)
// once source does.
func ToWebSocket(url string) stream.Operator[[]byte, []byte] {
	return func(source stream.Observable[[]byte]) stream.Observable[[]byte] {
		return stream.NewUnsafeObservableWithContext(func(ctx context.Context, destination stream.Observer[[]byte]) stream.Teardown {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				destination.ErrorWithContext(ctx, err)
				return nil
			}

			sub := source.SubscribeWithContext(ctx, stream.NewObserverWithContext(
				func(ctx context.Context, value []byte) {
					if err := conn.WriteMessage(websocket.BinaryMessage, value); err != nil {
						destination.ErrorWithContext(ctx, err)
						return
					}
					destination.NextWithContext(ctx, value)
				},
				func(ctx context.Context, err error) {
					_ = conn.Close()
					destination.ErrorWithContext(ctx, err)
				},
				func(ctx context.Context) {
					_ = conn.Close()
					destination.CompleteWithContext(ctx)
				},
			))

			return sub.Unsubscribe
		})
	}
}
