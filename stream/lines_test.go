package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
)

func chunks(parts ...string) <-chan string {
	ch := make(chan string, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}

func TestFromLines_Sentinel(t *testing.T) {
	body := "data: {\"x\":1}\n[DONE]\ndata: {\"x\":2}\n"
	got, err := FromLines[chunk](strings.NewReader(body), nil).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(xs(got), []int{1}) {
		t.Errorf("got %v, want [1]", xs(got))
	}
}

func TestFromLines_PrefixedSentinel(t *testing.T) {
	body := "data: {\"x\":1}\n\ndata: [DONE]\n\n"
	got, err := FromLines[chunk](strings.NewReader(body), nil).Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(xs(got), []int{1}) {
		t.Errorf("got %v, want [1]", xs(got))
	}
}

func TestFromLines_Variants(t *testing.T) {
	tests := []struct {
		name   string
		source any
		opts   []Option
		want   []int
	}{
		{"plain ndjson", strings.NewReader("{\"x\":1}\n{\"x\":2}\n"), nil, []int{1, 2}},
		{"mixed terminators", strings.NewReader("{\"x\":1}\r\n{\"x\":2}\r{\"x\":3}\n"), nil, []int{1, 2, 3}},
		{"blank lines skipped", strings.NewReader("\n\n{\"x\":1}\n\n"), nil, []int{1}},
		{"no trailing newline", strings.NewReader("{\"x\":1}\n{\"x\":2}"), nil, []int{1, 2}},
		{"prefix stripped once", strings.NewReader("data: {\"x\":5}\n"), nil, []int{5}},
		{"string channel", chunks("{\"x\"", ":1}\n{\"x\":", "2}\n"), nil, []int{1, 2}},
		{"custom sentinel", strings.NewReader("{\"x\":1}\nEND\n{\"x\":2}\n"), []Option{WithSentinel("END")}, []int{1}},
		{"custom prefix", strings.NewReader("> {\"x\":7}\n"), []Option{WithDataPrefix("> ")}, []int{7}},
		{"nil source", nil, nil, nil},
		{"unsupported source", 42, nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromLines[chunk](tc.source, nil, tc.opts...).Collect(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if !intSliceEqual(xs(got), tc.want) {
				t.Errorf("got %v, want %v", xs(got), tc.want)
			}
		})
	}
}

func TestFromLines_ChunkBoundaryIndependence(t *testing.T) {
	body := "data: {\"x\":1}\r\n{\"x\":2}\r\r{\"x\":3}\n[DONE]\n{\"x\":4}\n"
	want := []int{1, 2, 3}
	for i := 0; i <= len(body); i++ {
		got, err := FromLines[chunk](chunks(body[:i], body[i:]), nil).Collect(context.Background())
		if err != nil {
			t.Fatalf("split at %d: %v", i, err)
		}
		if !intSliceEqual(xs(got), want) {
			t.Fatalf("split at %d: got %v, want %v", i, xs(got), want)
		}
	}
}

func TestFromLines_MalformedLine(t *testing.T) {
	body := "{\"x\":1}\nnot json\n{\"x\":2}\n"
	got, err := FromLines[chunk](strings.NewReader(body), nil).Collect(context.Background())
	if !errors.Is(err, apperrors.Protocol("", nil)) {
		t.Fatalf("expected PROTOCOL_ERROR, got %v", err)
	}
	appErr, _ := apperrors.AsAppError(err)
	if appErr.Details["line"] != "not json" {
		t.Errorf("details = %v", appErr.Details)
	}
	if !intSliceEqual(xs(got), []int{1}) {
		t.Errorf("expected [1] before the error, got %v", xs(got))
	}
}

func TestFromLines_SentinelLeavesTokenLive(t *testing.T) {
	s := FromLines[chunk](strings.NewReader("{\"x\":1}\n[DONE]\n"), nil)
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Token().IsCancelled() {
		t.Error("reaching the sentinel must not cancel the token")
	}
}

func TestFromLines_LazyUntilPulled(t *testing.T) {
	ch := make(chan string)
	s := FromLines[chunk](ch, nil)
	// Nothing reads ch until the stream is consumed.
	select {
	case ch <- "x":
		t.Fatal("source was read before iteration")
	default:
	}
	close(ch)
	if _, err := s.Collect(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestFromLines_CancelDuringChannelRead(t *testing.T) {
	tests := map[string]any{
		"bytes":  make(chan []byte),
		"string": make(chan string),
	}
	for name, ch := range tests {
		t.Run(name, func(t *testing.T) {
			tok := cancellation.New(context.Background())
			it, err := FromLines[chunk](ch, tok).Iter(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			defer it.Close()

			type result struct {
				v   chunk
				ok  bool
				err error
			}
			done := make(chan result, 1)
			go func() {
				v, ok, err := it.Next(context.Background())
				done <- result{v, ok, err}
			}()

			time.Sleep(10 * time.Millisecond)
			tok.Cancel(errors.New("user pressed stop"))

			select {
			case r := <-done:
				if r.ok || r.err != nil || r.v != (chunk{}) {
					t.Errorf("expected clean stop, got v=%v ok=%v err=%v", r.v, r.ok, r.err)
				}
			case <-time.After(time.Second):
				t.Fatal("token cancellation did not unblock the channel read")
			}
		})
	}
}

// trackedBody counts Close calls on a reader.
type trackedBody struct {
	io.Reader
	closes atomic.Int32
}

func (b *trackedBody) Close() error {
	b.closes.Add(1)
	return nil
}

func TestFromLines_ExhaustionClosesSource(t *testing.T) {
	body := &trackedBody{Reader: strings.NewReader("{\"x\":1}\n{\"x\":2}\n")}
	it, err := FromLines[chunk](body, nil).Iter(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []chunk
	for {
		v, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		got = append(got, v)
	}
	if !intSliceEqual(xs(got), []int{1, 2}) {
		t.Errorf("got %v", xs(got))
	}
	// The body is released without waiting for Close.
	if n := body.closes.Load(); n != 1 {
		t.Errorf("body closed %d times at exhaustion, want 1", n)
	}
	_ = it.Close()
	if n := body.closes.Load(); n != 1 {
		t.Errorf("body closed %d times after Close, want 1", n)
	}
}
