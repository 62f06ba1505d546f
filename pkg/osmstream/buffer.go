// Package osmstream decouples reading OSM objects from processing them through a bounded buffer
// filled by one background producer.
package osmstream

import (
	"context"
	"errors"
	"sync"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/paulmach/osm"
	"golang.org/x/sync/errgroup"
)

var ErrClosed = errors.New("osmstream: buffer closed")

// OpenFunc opens the upstream object stream. It is called again on every Reset.
type OpenFunc func(ctx context.Context) (osm.Scanner, error)

// Buffer is an osm.Scanner reading ahead of its consumer. The producer blocks while the buffer is
// full and Scan blocks while it is empty. Scan, Object, Reset and Close belong to one consumer
// goroutine.
type Buffer struct {
	open OpenFunc
	size int

	objects chan osm.Object
	cancel  context.CancelFunc
	group   *errgroup.Group
	current osm.Object

	mu     sync.Mutex
	err    error
	closed bool
}

var _ osm.Scanner = (*Buffer)(nil)

// New opens the source and starts filling a buffer of size objects, pkg.DEFAULT_STREAM_BUFFER when
// size is not positive.
func New(open OpenFunc, size int) (*Buffer, error) {
	if size <= 0 {
		size = pkg.DEFAULT_STREAM_BUFFER
	}
	b := &Buffer{open: open, size: size}
	if err := b.start(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Buffer) start() error {
	ctx, cancel := context.WithCancel(context.Background())
	scanner, err := b.open(ctx)
	if err != nil {
		cancel()
		return err
	}
	objects := make(chan osm.Object, b.size)
	group := &errgroup.Group{}
	group.Go(func() error {
		defer close(objects)
		return fill(ctx, scanner, objects)
	})

	b.objects = objects
	b.cancel = cancel
	b.group = group
	b.current = nil
	b.setErr(nil)
	return nil
}

func fill(ctx context.Context, scanner osm.Scanner, objects chan<- osm.Object) error {
	for scanner.Scan() {
		select {
		case objects <- scanner.Object():
		case <-ctx.Done():
			return scanner.Close()
		}
	}
	return errors.Join(scanner.Err(), scanner.Close())
}

// stop cancels the producer and blocks until it has exited.
func (b *Buffer) stop() error {
	if b.cancel == nil {
		return nil
	}
	b.cancel()
	err := b.group.Wait()
	for range b.objects {
	}
	b.cancel = nil
	return err
}

func (b *Buffer) setErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

func (b *Buffer) Scan() bool {
	if b.isClosed() {
		b.setErr(ErrClosed)
		return false
	}
	obj, ok := <-b.objects
	if !ok {
		b.current = nil
		b.setErr(b.group.Wait())
		return false
	}
	b.current = obj
	return true
}

func (b *Buffer) Object() osm.Object {
	return b.current
}

// Err returns the error that ended the stream, nil at its regular end.
func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Reset stops the producer, waits for it, discards buffered objects and restarts from a freshly
// opened source. The buffer restarts even when the previous fill failed; that failure is returned
// joined with the result of reopening.
func (b *Buffer) Reset() error {
	if b.isClosed() {
		return ErrClosed
	}
	stopErr := b.stop()
	return errors.Join(stopErr, b.start())
}

func (b *Buffer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Close stops the producer and closes the source. Closing twice is a no-op.
func (b *Buffer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()
	return b.stop()
}

// FilterTypes returns a scanner over s yielding only objects of the given types.
func FilterTypes(s osm.Scanner, types ...osm.Type) osm.Scanner {
	keep := make(map[osm.Type]struct{}, len(types))
	for _, t := range types {
		keep[t] = struct{}{}
	}
	return &filtered{Scanner: s, keep: keep}
}

type filtered struct {
	osm.Scanner
	keep map[osm.Type]struct{}
}

func (f *filtered) Scan() bool {
	for f.Scanner.Scan() {
		if _, ok := f.keep[f.Scanner.Object().ObjectID().Type()]; ok {
			return true
		}
	}
	return false
}
