package stream

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kbukum/chatstream/bytesource"
	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/lines"
	"github.com/kbukum/chatstream/observability"
)

// maxLineDetail bounds how much of an undecodable line is kept in an error.
const maxLineDetail = 256

// FromLines creates a Stream of JSON values, one per line of source.
//
// source is anything bytesource.Adapt accepts. Lines are decoded as they
// arrive; a line equal to the sentinel ends the stream and everything after it
// is discarded. Blank lines are skipped, one leading data prefix is stripped,
// and the remainder is unmarshalled into a T. A line that is not valid JSON
// fails with a PROTOCOL_ERROR.
func FromLines[T any](source any, token *cancellation.Token, opts ...Option) *Stream[T] {
	o := newOptions(opts)
	if token == nil {
		token = cancellation.New(context.Background())
	}
	create := func(ctx context.Context) Iterator[T] {
		src := bytesource.Adapt(source, bytesource.WithChunkSize(o.chunkSize))
		token.OnCancel(func() { _ = src.Close() })
		return &lineIter[T]{
			src:        src,
			dec:        lines.NewDecoder(),
			sentinel:   o.sentinel,
			dataPrefix: o.dataPrefix,
			metrics:    o.metrics,
		}
	}
	return newStream(create, token, observability.KindLines, o)
}

type lineIter[T any] struct {
	src        bytesource.Source
	dec        *lines.Decoder
	pending    []string
	sentinel   string
	dataPrefix string
	metrics    *observability.StreamMetrics

	exhausted bool
	done      bool
}

func (it *lineIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	for {
		if it.done {
			return zero, false, nil
		}
		for len(it.pending) > 0 {
			line := it.pending[0]
			it.pending = it.pending[1:]

			val, ok, stop, err := it.decodeLine(line)
			if err != nil {
				return zero, false, err
			}
			if stop {
				it.done = true
				it.pending = nil
				_ = it.src.Close()
				return zero, false, nil
			}
			if ok {
				return val, true, nil
			}
		}
		if it.exhausted {
			it.done = true
			return zero, false, nil
		}

		chunk, ok, err := it.src.Next(ctx)
		if err != nil {
			return zero, false, err
		}
		if !ok {
			it.exhausted = true
			_ = it.src.Close()
			it.pending = it.dec.Flush()
		} else {
			it.metrics.RecordBytes(ctx, observability.KindLines, len(chunk))
			it.pending = it.dec.Decode(chunk)
		}
		it.metrics.RecordLines(ctx, observability.KindLines, len(it.pending))
	}
}

// decodeLine handles one line. stop reports the sentinel; ok reports a value.
func (it *lineIter[T]) decodeLine(line string) (val T, ok, stop bool, err error) {
	if line == it.sentinel {
		return val, false, true, nil
	}
	if line == "" {
		return val, false, false, nil
	}
	if it.dataPrefix != "" {
		if rest, found := strings.CutPrefix(line, it.dataPrefix); found {
			if rest == it.sentinel {
				return val, false, true, nil
			}
			line = rest
		}
	}
	if err := json.Unmarshal([]byte(line), &val); err != nil {
		return val, false, false, apperrors.Protocol("invalid JSON line", err).
			WithDetail("line", truncate(line, maxLineDetail))
	}
	return val, true, false, nil
}

func (it *lineIter[T]) Close() error {
	it.done = true
	return it.src.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
