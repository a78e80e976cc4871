package stream

import (
	"bufio"
	"context"
	"os"
)

// FileSinkOptions configures WriteToFile beyond the append/permission pair a
// plain io.Writer sink would need: pipelines that write millions of rows
// (see the million-rows benchmarks) want a buffered writer and a choice of
// whether every line is durable before the next Next arrives.
type FileSinkOptions struct {
	// Append opens the file for appending instead of truncating it.
	Append bool
	// Perm is the file mode used if the file does not yet exist.
	Perm os.FileMode
	// Sync flushes and fsyncs after every written line. Off by default:
	// most pipelines only need the data durable once, at Complete/Error.
	Sync bool
}

// WriteToFile writes each string item emitted by the source Observable to
// path, one per line, and emits it downstream unchanged so the sink can sit
// in the middle of a pipeline (tee-to-disk) rather than only at its end.
// The file is opened lazily on the first Next, buffered, and flushed on
// Complete, Error, and Unsubscribe.
func WriteToFile(path string, opts FileSinkOptions) func(Observable[string]) Observable[string] {
	return func(source Observable[string]) Observable[string] {
		return NewUnsafeObservableWithContext(func(subscriberCtx context.Context, destination Observer[string]) Teardown {
			sink := &fileSink{path: path, opts: opts}

			sub := source.SubscribeWithContext(
				subscriberCtx,
				NewObserverWithContext(
					func(ctx context.Context, value string) {
						if err := sink.writeLine(value); err != nil {
							destination.ErrorWithContext(ctx, err)
							return
						}
						destination.NextWithContext(ctx, value)
					},
					func(ctx context.Context, err error) {
						if closeErr := sink.close(); closeErr != nil {
							OnUnhandledError(ctx, closeErr)
						}
						destination.ErrorWithContext(ctx, err)
					},
					func(ctx context.Context) {
						if closeErr := sink.close(); closeErr != nil {
							destination.ErrorWithContext(ctx, closeErr)
							return
						}
						destination.CompleteWithContext(ctx)
					},
				),
			)

			return func() {
				_ = sink.close()
				sub.Unsubscribe()
			}
		})
	}
}

// fileSink owns the lazily-opened file handle and its buffered writer. It is
// only ever touched from the single goroutine driving NextWithContext, so it
// carries no lock of its own.
type fileSink struct {
	path string
	opts FileSinkOptions

	file   *os.File
	writer *bufio.Writer
}

func (s *fileSink) open() error {
	if s.file != nil {
		return nil
	}

	flag := os.O_CREATE | os.O_WRONLY
	if s.opts.Append {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}

	perm := s.opts.Perm
	if perm == 0 {
		perm = 0o644
	}

	f, err := os.OpenFile(s.path, flag, perm)
	if err != nil {
		return err
	}

	s.file = f
	s.writer = bufio.NewWriter(f)
	return nil
}

func (s *fileSink) writeLine(line string) error {
	if err := s.open(); err != nil {
		return err
	}
	if _, err := s.writer.WriteString(line); err != nil {
		return err
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return err
	}
	if !s.opts.Sync {
		return nil
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

// close is idempotent: it is called from whichever of Complete, Error, or
// the teardown runs first, and from any of those paths again afterward with
// no effect, since it nils out s.file once done.
func (s *fileSink) close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.writer.Flush()
	closeErr := s.file.Close()
	s.file, s.writer = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
