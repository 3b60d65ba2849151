package stream

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/sse"
)

// FromSSE creates a Stream of server-sent events decoded from body. A nil
// body cancels the token and fails with a MISSING_BODY error.
func FromSSE(body io.Reader, token *cancellation.Token, opts ...Option) (*Stream[sse.Event], error) {
	o := newOptions(opts)
	if token == nil {
		token = cancellation.New(context.Background())
	}
	it, err := sse.NewIterator(body, token,
		sse.WithChunkSize(o.chunkSize),
		sse.WithLogger(o.log),
		sse.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}
	create := func(context.Context) Iterator[sse.Event] { return it }
	return newStream(create, token, observability.KindSSE, o), nil
}

// FromSSEJSON creates a Stream of JSON values carried in the data of
// server-sent events. Data starting with the sentinel ends the stream, an
// "error" event fails it with a PROTOCOL_ERROR carrying the event data, and
// events without data are skipped.
func FromSSEJSON[T any](body io.Reader, token *cancellation.Token, opts ...Option) (*Stream[T], error) {
	events, err := FromSSE(body, token, opts...)
	if err != nil {
		return nil, err
	}
	sentinel := newOptions(opts).sentinel
	return derive(events, func(ctx context.Context) Iterator[T] {
		src, err := events.open(ctx)
		if err != nil {
			return &errIter[T]{err: err}
		}
		return &sseJSONIter[T]{source: src, sentinel: sentinel}
	}), nil
}

type sseJSONIter[T any] struct {
	source   Iterator[sse.Event]
	sentinel string
	done     bool
}

func (it *sseJSONIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for !it.done {
		ev, ok, err := it.source.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		if strings.HasPrefix(ev.Data, it.sentinel) {
			it.done = true
			return zero, false, nil
		}
		if ev.Event == sse.EventTypeError {
			return zero, false, apperrors.Protocol("upstream error event", nil).
				WithDetail("data", truncate(ev.Data, maxLineDetail))
		}
		if ev.Data == "" {
			continue
		}
		var val T
		if err := json.Unmarshal([]byte(ev.Data), &val); err != nil {
			return zero, false, apperrors.Protocol("invalid JSON event data", err).
				WithDetails(map[string]any{
					"event": ev.Type(),
					"data":  truncate(ev.Data, maxLineDetail),
				})
		}
		return val, true, nil
	}
	return zero, false, nil
}

func (it *sseJSONIter[T]) Close() error { return it.source.Close() }
