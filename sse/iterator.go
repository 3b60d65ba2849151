package sse

import (
	"context"
	"fmt"
	"io"

	"github.com/kbukum/chatstream/bytesource"
	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/lines"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
)

type options struct {
	chunkSize int
	log       *logger.Logger
	metrics   *observability.StreamMetrics
}

// Option configures an Iterator.
type Option func(*options)

// WithChunkSize sets the read size used on the response body.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithLogger sets the logger used for stream lifecycle messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the instruments updated while decoding.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// Iterator pulls server-sent events out of a response body.
//
// Raw bytes are cut into blocks at blank-line boundaries, each block is split
// into lines, and the lines drive one Decoder whose state carries across
// blocks. A token firing mid-read ends iteration cleanly.
type Iterator struct {
	src   bytesource.Source
	token *cancellation.Token
	lines *lines.Decoder
	dec   *Decoder

	buf     []byte
	scanned int
	queue   []Event

	exhausted bool
	done      bool
	events    int

	log     *logger.Logger
	metrics *observability.StreamMetrics
}

// NewIterator returns an Iterator over body. A nil body cancels token and
// fails with a MISSING_BODY error. A nil token gets a fresh one.
func NewIterator(body io.Reader, token *cancellation.Token, opts ...Option) (*Iterator, error) {
	if token == nil {
		token = cancellation.New(context.Background())
	}
	if body == nil {
		err := apperrors.MissingBody()
		token.Cancel(err)
		return nil, err
	}
	o := newOptions(opts)
	src := bytesource.Adapt(body, bytesource.WithChunkSize(o.chunkSize))
	return newIterator(src, token, o), nil
}

// NewSourceIterator returns an Iterator over an already adapted byte source.
func NewSourceIterator(src bytesource.Source, token *cancellation.Token, opts ...Option) (*Iterator, error) {
	if token == nil {
		token = cancellation.New(context.Background())
	}
	if src == nil {
		err := apperrors.MissingBody()
		token.Cancel(err)
		return nil, err
	}
	return newIterator(src, token, newOptions(opts)), nil
}

func newOptions(opts []Option) options {
	o := options{chunkSize: bytesource.DefaultChunkSize, log: logger.Get(logger.ComponentSSE)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newIterator(src bytesource.Source, token *cancellation.Token, o options) *Iterator {
	it := &Iterator{
		src:     src,
		token:   token,
		lines:   lines.NewDecoder(),
		dec:     NewDecoder(),
		log:     o.log,
		metrics: o.metrics,
	}
	// Firing the token closes the body, which unblocks a read in flight.
	token.OnCancel(func() { _ = src.Close() })
	return it
}

// Token returns the cancellation token shared with the body.
func (it *Iterator) Token() *cancellation.Token { return it.token }

// Next returns the next complete event. It returns (Event{}, false, nil) once
// the body is exhausted or the token has fired.
func (it *Iterator) Next(ctx context.Context) (Event, bool, error) {
	for {
		if !it.done && it.token.IsCancelled() {
			it.stop(ctx)
			return Event{}, false, nil
		}
		if len(it.queue) > 0 {
			ev := it.queue[0]
			it.queue[0] = Event{}
			it.queue = it.queue[1:]
			it.events++
			it.metrics.RecordEvent(ctx, ev.Type())
			return ev, true, nil
		}
		if it.done {
			return Event{}, false, nil
		}

		chunk, ok, err := it.nextChunk(ctx)
		if err != nil {
			if apperrors.IsCancellation(err) || it.token.IsCancelled() {
				it.stop(ctx)
				return Event{}, false, nil
			}
			it.finish()
			it.metrics.RecordError(ctx, observability.KindSSE, string(apperrors.Wrap(err).Code))
			it.log.Warn("sse body read failed", logger.ErrorFields("read", err))
			return Event{}, false, fmt.Errorf("reading sse body: %w", err)
		}
		if !ok {
			it.feed(ctx, it.lines.Flush())
			it.finish()
			it.log.Debug("sse stream exhausted", logger.Fields(logger.FieldItems, it.events+len(it.queue)))
			continue
		}
		it.feed(ctx, it.lines.Decode(chunk))
	}
}

// Close stops iteration and closes the body. It does not fire the token;
// consumers that stop early cancel it themselves (see stream.Stream).
func (it *Iterator) Close() error {
	it.done = true
	it.queue = nil
	return it.src.Close()
}

// nextChunk returns the next blank-line delimited block, or the leftover
// bytes once the source is exhausted.
func (it *Iterator) nextChunk(ctx context.Context) ([]byte, bool, error) {
	for {
		if end := it.boundary(); end >= 0 {
			chunk := it.buf[:end:end]
			it.buf = it.buf[end:]
			it.scanned = 0
			return chunk, true, nil
		}
		if it.exhausted {
			if len(it.buf) == 0 {
				return nil, false, nil
			}
			chunk := it.buf
			it.buf = nil
			it.scanned = 0
			return chunk, true, nil
		}

		data, ok, err := it.src.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.exhausted = true
			continue
		}
		it.metrics.RecordBytes(ctx, observability.KindSSE, len(data))
		it.buf = append(it.buf, data...)
	}
}

// boundary finds the first blank-line boundary in buf, resuming near where
// the previous search stopped.
func (it *Iterator) boundary() int {
	// A boundary is at most 4 bytes, so one that straddles the old end starts
	// no earlier than 3 bytes before it.
	from := max(it.scanned-3, 0)
	idx := lines.FindBlankLineEnd(it.buf[from:])
	if idx < 0 {
		it.scanned = len(it.buf)
		return -1
	}
	return from + idx
}

func (it *Iterator) feed(ctx context.Context, ls []string) {
	it.metrics.RecordLines(ctx, observability.KindSSE, len(ls))
	for _, line := range ls {
		if ev, ok := it.dec.Decode(line); ok {
			it.queue = append(it.queue, ev)
		}
	}
}

// finish marks natural exhaustion.
func (it *Iterator) finish() {
	it.done = true
	it.token.Release()
	_ = it.src.Close()
}

// stop ends iteration after cancellation was observed.
func (it *Iterator) stop(ctx context.Context) {
	it.done = true
	it.queue = nil
	it.token.Cancel(nil)
	_ = it.src.Close()
	it.metrics.RecordCancellation(ctx, observability.KindSSE)
	it.log.Debug("sse stream cancelled", logger.Fields(
		logger.FieldItems, it.events,
		logger.FieldReason, fmt.Sprint(it.token.Cause()),
	))
}
