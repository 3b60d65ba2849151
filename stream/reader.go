package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ToReader turns s back into bytes: one JSON document per value, each
// followed by a newline. Read returns io.EOF once s is exhausted. Closing the
// reader closes the stream's iterator, which cancels the token when it
// happens before the end.
func (s *Stream[T]) ToReader(ctx context.Context) io.ReadCloser {
	it, err := s.Iter(ctx)
	if err != nil {
		return &jsonReader[T]{err: err}
	}
	r := &jsonReader[T]{ctx: ctx, it: it}
	r.enc = json.NewEncoder(&r.buf)
	r.enc.SetEscapeHTML(false)
	return r
}

type jsonReader[T any] struct {
	ctx context.Context
	it  Iterator[T]
	buf bytes.Buffer
	enc *json.Encoder
	err error
}

func (r *jsonReader[T]) Read(p []byte) (int, error) {
	for r.buf.Len() == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if err := r.fill(); err != nil {
			r.err = err
		}
	}
	return r.buf.Read(p)
}

// fill encodes the next value into buf. It returns io.EOF at the end of the
// stream.
func (r *jsonReader[T]) fill() error {
	val, ok, err := r.it.Next(r.ctx)
	if err != nil {
		return err
	}
	if !ok {
		return io.EOF
	}
	if err := r.enc.Encode(val); err != nil {
		return fmt.Errorf("encoding stream item: %w", err)
	}
	return nil
}

func (r *jsonReader[T]) Close() error {
	if r.it == nil {
		return nil
	}
	return r.it.Close()
}
