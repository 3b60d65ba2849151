package stream

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kbukum/chatstream/bytesource"
	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
)

// DefaultSentinel ends a line stream.
const DefaultSentinel = "[DONE]"

// DefaultDataPrefix is stripped from the front of a line before decoding.
const DefaultDataPrefix = "data: "

// Iterator provides pull-based sequential access to a stream of values.
// Structurally compatible with bytesource.Source and *sse.Iterator.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

type options struct {
	id         string
	log        *logger.Logger
	metrics    *observability.StreamMetrics
	sentinel   string
	dataPrefix string
	chunkSize  int
}

// Option configures a Stream.
type Option func(*options)

// WithID sets the stream ID used in logs. Defaults to a random UUID.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithLogger sets the logger used for stream lifecycle messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics sets the instruments updated while the stream is consumed.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithSentinel sets the line that ends a line stream.
func WithSentinel(s string) Option {
	return func(o *options) {
		if s != "" {
			o.sentinel = s
		}
	}
}

// WithDataPrefix sets the prefix stripped from each line before decoding.
// An empty prefix disables stripping.
func WithDataPrefix(p string) Option {
	return func(o *options) { o.dataPrefix = p }
}

// WithChunkSize sets the read size used on io.Reader sources.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

func newOptions(opts []Option) options {
	o := options{
		log:        logger.Get(logger.ComponentStream),
		sentinel:   DefaultSentinel,
		dataPrefix: DefaultDataPrefix,
		chunkSize:  bytesource.DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	o.log = o.log.WithStreamID(o.id)
	return o
}

// Stream is a lazy, single-use sequence of values sharing a cancellation
// token with whatever produces its bytes. No work happens until values are
// pulled via Iter, All, Collect or ToReader.
type Stream[T any] struct {
	create func(ctx context.Context) Iterator[T]
	token  *cancellation.Token
	kind   string
	used   atomic.Bool

	id      string
	log     *logger.Logger
	metrics *observability.StreamMetrics
}

// New creates a Stream from a factory that produces its Iterator. The factory
// runs at most once. A nil token gets a fresh one.
func New[T any](create func(ctx context.Context) Iterator[T], token *cancellation.Token, opts ...Option) *Stream[T] {
	o := newOptions(opts)
	return newStream(create, token, "custom", o)
}

// From creates a Stream over an existing Iterator.
func From[T any](it Iterator[T], token *cancellation.Token, opts ...Option) *Stream[T] {
	return New(func(context.Context) Iterator[T] { return it }, token, opts...)
}

func newStream[T any](create func(ctx context.Context) Iterator[T], token *cancellation.Token, kind string, o options) *Stream[T] {
	if token == nil {
		token = cancellation.New(context.Background())
	}
	return &Stream[T]{
		create:  create,
		token:   token,
		kind:    kind,
		id:      o.id,
		log:     o.log,
		metrics: o.metrics,
	}
}

// derive returns a Stream over create that shares s's token and identity.
func derive[T, O any](s *Stream[T], create func(ctx context.Context) Iterator[O]) *Stream[O] {
	return &Stream[O]{
		create:  create,
		token:   s.token,
		kind:    s.kind,
		id:      s.id,
		log:     s.log,
		metrics: s.metrics,
	}
}

// ID returns the stream ID.
func (s *Stream[T]) ID() string { return s.id }

// Token returns the cancellation token shared with the byte source.
func (s *Stream[T]) Token() *cancellation.Token { return s.token }

// open claims the stream and builds its raw iterator.
func (s *Stream[T]) open(ctx context.Context) (Iterator[T], error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, apperrors.InvalidState("")
	}
	return s.create(ctx), nil
}

// Iter returns the stream's Iterator. The caller must Close it; closing
// before exhaustion cancels the token. A second call fails with an
// INVALID_STATE error.
func (s *Stream[T]) Iter(ctx context.Context) (Iterator[T], error) {
	it, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Debug("stream opened", logger.Fields(logger.FieldKind, s.kind))
	return &consumerIter[T]{source: it, s: s}, nil
}

// All returns the stream as a range-over-func sequence. Breaking out of the
// loop cancels the token. Errors are yielded once, as the final pair.
func (s *Stream[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		it, err := s.Iter(ctx)
		if err != nil {
			yield(zero, err)
			return
		}
		defer it.Close()
		for {
			val, ok, err := it.Next(ctx)
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(val, nil) {
				return
			}
		}
	}
}

// Collect consumes the stream and returns all values as a slice.
func (s *Stream[T]) Collect(ctx context.Context) ([]T, error) {
	it, err := s.Iter(ctx)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var result []T
	for {
		val, ok, err := it.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// consumerIter is the iterator handed to consumers. It turns an observed
// cancellation into a clean end and cancels the token when closed early.
type consumerIter[T any] struct {
	source Iterator[T]
	s      *Stream[T]

	items     int
	exhausted bool
	stopped   bool
	closeOnce sync.Once
	closeErr  error
}

func (it *consumerIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.exhausted || it.stopped {
		return zero, false, nil
	}

	val, ok, err := it.source.Next(ctx)
	if err != nil {
		if apperrors.IsCancellation(err) {
			it.stop(ctx)
			return zero, false, nil
		}
		it.stopped = true
		code := string(apperrors.Wrap(err).Code)
		it.s.metrics.RecordError(ctx, it.s.kind, code)
		it.s.log.Warn("stream failed", logger.Fields(
			logger.FieldKind, it.s.kind,
			logger.FieldItems, it.items,
			logger.FieldError, err.Error(),
		))
		return zero, false, err
	}
	if !ok {
		it.exhausted = true
		it.s.token.Release()
		it.s.log.Debug("stream exhausted", logger.Fields(
			logger.FieldKind, it.s.kind,
			logger.FieldItems, it.items,
		))
		return zero, false, nil
	}

	it.items++
	it.s.metrics.RecordItem(ctx, it.s.kind)
	return val, true, nil
}

// stop records a cancellation observed mid-iteration.
func (it *consumerIter[T]) stop(ctx context.Context) {
	it.stopped = true
	it.s.token.Cancel(nil)
	it.s.metrics.RecordCancellation(ctx, it.s.kind)
	it.s.log.Debug("stream cancelled", logger.Fields(
		logger.FieldKind, it.s.kind,
		logger.FieldItems, it.items,
	))
}

func (it *consumerIter[T]) Close() error {
	it.closeOnce.Do(func() {
		if !it.exhausted {
			if it.s.token.Cancel(nil) {
				it.s.metrics.RecordCancellation(context.Background(), it.s.kind)
				it.s.log.Debug("stream closed early", logger.Fields(logger.FieldItems, it.items))
			}
		}
		it.closeErr = it.source.Close()
	})
	return it.closeErr
}

// errIter is an exhausted iterator that fails with err on the first Next.
type errIter[T any] struct {
	err error
}

func (it *errIter[T]) Next(context.Context) (T, bool, error) {
	var zero T
	err := it.err
	it.err = nil
	return zero, false, err
}

func (it *errIter[T]) Close() error { return nil }
