// Package bytesource normalizes the different things that can produce response
// bytes into one pull interface.
//
// A Source is pulled with Next until it reports exhaustion and released with
// Close. Adapt accepts an existing Source, an io.Reader (typically an
// http.Response body), or a channel of chunks; anything else becomes an empty
// Source so callers never have to special-case a missing body.
package bytesource

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the read buffer used for io.Reader sources.
const DefaultChunkSize = 32 * 1024

// ErrClosed is returned by a read interrupted by Close. It wraps
// context.Canceled so consumers treat it as a cancellation.
var ErrClosed = fmt.Errorf("byte source closed: %w", context.Canceled)

// Source provides pull-based access to a stream of byte chunks.
// Structurally compatible with stream.Iterator[[]byte].
type Source interface {
	// Next returns the next chunk. Returns (nil, false, nil) when exhausted.
	Next(ctx context.Context) ([]byte, bool, error)
	// Close stops the source early and releases the underlying resource.
	Close() error
}

type options struct {
	chunkSize int
}

// Option configures Adapt.
type Option func(*options)

// WithChunkSize sets the read buffer size for io.Reader sources.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// Adapt wraps v as a Source:
//
//   - a Source is returned unchanged;
//   - an io.Reader is read under an exclusive lock, one Read per Next;
//   - a <-chan []byte or <-chan string yields each received value;
//   - anything else, including nil, is an already exhausted Source.
func Adapt(v any, opts ...Option) Source {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}

	switch s := v.(type) {
	case nil:
		return Empty()
	case Source:
		return s
	case io.Reader:
		return FromReader(s, o.chunkSize)
	case <-chan []byte:
		return FromChannel(s)
	case chan []byte:
		return FromChannel(s)
	case <-chan string:
		return fromStringChannel(s)
	case chan string:
		return fromStringChannel(s)
	default:
		return Empty()
	}
}

// --- io.Reader ---

type readerSource struct {
	r   io.Reader
	buf []byte

	// lock is held for exactly one Read per Next and released on every path.
	lock    sync.Mutex
	eof     bool
	pending error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// FromReader returns a Source reading chunkSize bytes at a time from r.
// Closing the Source closes r when r is an io.Closer, which unblocks a Read
// in flight.
func FromReader(r io.Reader, chunkSize int) Source {
	if r == nil {
		return Empty()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &readerSource{r: r, buf: make([]byte, chunkSize)}
}

func (s *readerSource) Next(ctx context.Context) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed.Load() || s.eof {
		return nil, false, nil
	}
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		s.eof = true
		return nil, false, err
	}

	for {
		n, err := s.r.Read(s.buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			switch {
			case err == io.EOF:
				s.eof = true
			case err != nil:
				// Deliver the data now, the error on the next pull.
				s.pending = s.readErr(err)
			}
			return chunk, true, nil
		}
		if err == io.EOF {
			s.eof = true
			return nil, false, nil
		}
		if err != nil {
			s.eof = true
			return nil, false, s.readErr(err)
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
	}
}

func (s *readerSource) readErr(err error) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return err
}

func (s *readerSource) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if c, ok := s.r.(io.Closer); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}

// --- channels ---

// chanDone is the close signal shared by the channel sources. Close unblocks
// a receive in flight; the channel itself belongs to the producer and is
// never closed here.
type chanDone struct {
	done chan struct{}
	once sync.Once
}

func (d *chanDone) isClosed() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *chanDone) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}

type channelSource struct {
	chanDone
	ch <-chan []byte
}

// FromChannel returns a Source yielding every chunk received on ch until ch
// is closed. Closing the Source interrupts a pending receive with ErrClosed.
func FromChannel(ch <-chan []byte) Source {
	if ch == nil {
		return Empty()
	}
	return &channelSource{chanDone: chanDone{done: make(chan struct{})}, ch: ch}
}

func (s *channelSource) Next(ctx context.Context) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, nil
	}
	select {
	case chunk, open := <-s.ch:
		if !open {
			return nil, false, nil
		}
		return chunk, true, nil
	case <-s.done:
		return nil, false, ErrClosed
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

type stringChannelSource struct {
	chanDone
	ch <-chan string
}

func fromStringChannel(ch <-chan string) Source {
	if ch == nil {
		return Empty()
	}
	return &stringChannelSource{chanDone: chanDone{done: make(chan struct{})}, ch: ch}
}

func (s *stringChannelSource) Next(ctx context.Context) ([]byte, bool, error) {
	if s.isClosed() {
		return nil, false, nil
	}
	select {
	case text, open := <-s.ch:
		if !open {
			return nil, false, nil
		}
		return []byte(text), true, nil
	case <-s.done:
		return nil, false, ErrClosed
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// --- empty ---

type emptySource struct{}

// Empty returns a Source that is already exhausted.
func Empty() Source { return emptySource{} }

func (emptySource) Next(context.Context) ([]byte, bool, error) { return nil, false, nil }
func (emptySource) Close() error                                { return nil }
