package stream

import (
	"context"
	"sync"

	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
)

// Map returns a Stream that applies fn to each value of s as it is pulled.
// Consuming the result consumes s.
func Map[T, O any](s *Stream[T], fn func(context.Context, T) (O, error)) *Stream[O] {
	return derive(s, func(ctx context.Context) Iterator[O] {
		src, err := s.open(ctx)
		if err != nil {
			return &errIter[O]{err: err}
		}
		return &mapIter[T, O]{source: src, fn: fn}
	})
}

type mapIter[I, O any] struct {
	source Iterator[I]
	fn     func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (result O, ok bool, err error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		var zero O
		return zero, false, err
	}
	out, err := it.fn(ctx, val)
	if err != nil {
		var zero O
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.source.Close() }

// Filter returns a Stream of the values of s for which keep is true.
// Consuming the result consumes s.
func Filter[T any](s *Stream[T], keep func(T) bool) *Stream[T] {
	return derive(s, func(ctx context.Context) Iterator[T] {
		src, err := s.open(ctx)
		if err != nil {
			return &errIter[T]{err: err}
		}
		return &filterIter[T]{source: src, keep: keep}
	})
}

type filterIter[T any] struct {
	source Iterator[T]
	keep   func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		val, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return val, false, err
		}
		if it.keep(val) {
			return val, true, nil
		}
	}
}

func (it *filterIter[T]) Close() error { return it.source.Close() }

// Tap calls fn for each value of s before passing it through unchanged. An
// error from fn ends the stream with that error.
func Tap[T any](s *Stream[T], fn func(context.Context, T) error) *Stream[T] {
	return derive(s, func(ctx context.Context) Iterator[T] {
		src, err := s.open(ctx)
		if err != nil {
			return &errIter[T]{err: err}
		}
		return &tapIter[T]{source: src, fn: fn}
	})
}

type tapIter[T any] struct {
	source Iterator[T]
	fn     func(context.Context, T) error
}

func (it *tapIter[T]) Next(ctx context.Context) (T, bool, error) {
	val, ok, err := it.source.Next(ctx)
	if err != nil || !ok {
		return val, ok, err
	}
	if err := it.fn(ctx, val); err != nil {
		var zero T
		return zero, false, err
	}
	return val, true, nil
}

func (it *tapIter[T]) Close() error { return it.source.Close() }

// Tee splits s into two Streams that each observe every value of s in order.
// The source is pulled once per value no matter how many branches read it;
// values a branch has not read yet are queued for it without bound. Errors
// and the end of s reach both branches. Both branches share s's token, so
// closing either before the end cancels the source for both.
//
// Tee consumes s; if s was already consumed both branches fail with an
// INVALID_STATE error.
func (s *Stream[T]) Tee() (*Stream[T], *Stream[T]) {
	shared := &teeSource[T]{token: s.token}
	if s.used.CompareAndSwap(false, true) {
		shared.create = s.create
	} else {
		shared.openErr = apperrors.InvalidState("")
	}

	branch := func(i int) *Stream[T] {
		return derive(s, func(context.Context) Iterator[T] {
			return &teeIter[T]{shared: shared, idx: i}
		})
	}
	return branch(0), branch(1)
}

type teeItem[T any] struct {
	val T
	err error
}

// teeSource is the pull shared by both tee branches.
type teeSource[T any] struct {
	mu      sync.Mutex
	token   *cancellation.Token
	create  func(ctx context.Context) Iterator[T]
	source  Iterator[T]
	openErr error

	queues [2][]teeItem[T]
	closed [2]bool
	// finished is set once the source reported its end or an error.
	finished bool
}

// next returns branch i's next item, pulling from the source when its queue
// is empty.
func (t *teeSource[T]) next(ctx context.Context, i int) (T, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	if q := t.queues[i]; len(q) > 0 {
		item := q[0]
		q[0] = teeItem[T]{}
		t.queues[i] = q[1:]
		if item.err != nil {
			return zero, false, item.err
		}
		return item.val, true, nil
	}
	if t.finished {
		return zero, false, nil
	}
	if t.openErr != nil {
		t.finished = true
		t.push(1-i, teeItem[T]{err: t.openErr})
		return zero, false, t.openErr
	}
	// Values already queued are still delivered after the token fires; new
	// pulls are not made.
	if t.token.IsCancelled() {
		t.finished = true
		return zero, false, nil
	}
	if t.source == nil {
		t.source = t.create(ctx)
	}

	val, ok, err := t.source.Next(ctx)
	switch {
	case err != nil:
		t.finished = true
		t.push(1-i, teeItem[T]{err: err})
		return zero, false, err
	case !ok:
		t.finished = true
		return zero, false, nil
	}
	t.push(1-i, teeItem[T]{val: val})
	return val, true, nil
}

func (t *teeSource[T]) push(i int, item teeItem[T]) {
	if !t.closed[i] {
		t.queues[i] = append(t.queues[i], item)
	}
}

// close detaches branch i and closes the source once both branches are done.
func (t *teeSource[T]) close(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed[i] = true
	t.queues[i] = nil
	if t.closed[0] && t.closed[1] && t.source != nil {
		src := t.source
		t.source = nil
		t.finished = true
		return src.Close()
	}
	return nil
}

type teeIter[T any] struct {
	shared *teeSource[T]
	idx    int
	closed bool
}

func (it *teeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.closed {
		var zero T
		return zero, false, nil
	}
	return it.shared.next(ctx, it.idx)
}

func (it *teeIter[T]) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.shared.close(it.idx)
}
