// Package sources collects optional Observable producers that wrap a
// specific I/O integration — a filesystem watch, a websocket connection —
// instead of living in the root package, the way the core engine's
// zero-dependency constructors (FromSlice, FromChannel, Interval, …) do.
package sources

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kesho/stream"
)

// FileEventKind classifies a filesystem change reported by WatchDir.
type FileEventKind int

const (
	FileEventCreate FileEventKind = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
	FileEventChmod
)

// FileEvent is a single value emitted by WatchDir.
type FileEvent struct {
	Path string
	Kind FileEventKind
	At   time.Time
}

func fileEventKind(op fsnotify.Op) FileEventKind {
	switch {
	case op&fsnotify.Create != 0:
		return FileEventCreate
	case op&fsnotify.Remove != 0:
		return FileEventRemove
	case op&fsnotify.Rename != 0:
		return FileEventRename
	case op&fsnotify.Chmod != 0:
		return FileEventChmod
	default:
		return FileEventWrite
	}
}

// WatchDir emits a FileEvent for every filesystem change fsnotify reports
// under dir, until the subscription's context is canceled or Unsubscribe is
// called. Unlike a poll loop, events arrive as the OS reports them.
func WatchDir(dir string) stream.Observable[FileEvent] {
	return stream.NewObservableWithContext(func(ctx context.Context, destination stream.Observer[FileEvent]) stream.Teardown {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			destination.ErrorWithContext(ctx, err)
			return nil
		}

		if err := watcher.Add(dir); err != nil {
			destination.ErrorWithContext(ctx, err)
			_ = watcher.Close()
			return nil
		}

		done := make(chan struct{})

		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						destination.CompleteWithContext(ctx)
						return
					}
					destination.NextWithContext(ctx, FileEvent{
						Path: event.Name,
						Kind: fileEventKind(event.Op),
						At:   time.Now(),
					})
				case err, ok := <-watcher.Errors:
					if !ok {
						destination.CompleteWithContext(ctx)
						return
					}
					destination.ErrorWithContext(ctx, err)
					return
				}
			}
		}()

		return func() {
			_ = watcher.Close()
			<-done
		}
	})
}
