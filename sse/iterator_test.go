package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/kbukum/chatstream/bytesource"
	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
)

func collect(t *testing.T, it *Iterator) []Event {
	t.Helper()
	var out []Event
	for {
		ev, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func chunked(parts ...string) bytesource.Source {
	ch := make(chan []byte, len(parts))
	for _, p := range parts {
		ch <- []byte(p)
	}
	close(ch)
	return bytesource.FromChannel(ch)
}

func dataOf(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Data
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

const sampleStream = "event: message_start\ndata: {\"id\":1}\n\n" +
	": keep-alive\n\n" +
	"event: delta\r\ndata: {\"text\":\"hi\"}\r\ndata: {\"text\":\"there\"}\r\n\r\n" +
	"data: plain\r\r" +
	"event: message_stop\ndata: {}\n\n"

func TestIterator_Reader(t *testing.T) {
	it, err := NewIterator(strings.NewReader(sampleStream), nil, WithChunkSize(5))
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, it)

	wantTypes := []string{"message_start", "delta", "message", "message_stop"}
	if len(got) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(wantTypes), got)
	}
	for i, ev := range got {
		if ev.Type() != wantTypes[i] {
			t.Errorf("event %d type = %q, want %q", i, ev.Type(), wantTypes[i])
		}
	}
	if want := "{\"text\":\"hi\"}\n{\"text\":\"there\"}"; got[1].Data != want {
		t.Errorf("delta data = %q, want %q", got[1].Data, want)
	}
	if got[2].Data != "plain" {
		t.Errorf("plain data = %q", got[2].Data)
	}
}

func TestIterator_ChunkBoundaryIndependence(t *testing.T) {
	whole, err := NewSourceIterator(chunked(sampleStream), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := dataOf(collect(t, whole))

	for i := 0; i <= len(sampleStream); i++ {
		it, err := NewSourceIterator(chunked(sampleStream[:i], sampleStream[i:]), nil)
		if err != nil {
			t.Fatal(err)
		}
		got := dataOf(collect(t, it))
		if !equalStrings(got, want) {
			t.Fatalf("split at %d: got %q, want %q", i, got, want)
		}
	}
}

func TestIterator_BlankLineSplitAcrossChunks(t *testing.T) {
	it, err := NewSourceIterator(chunked("data: a\n", "\ndata: b\r\n\r", "\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := dataOf(collect(t, it))
	if !equalStrings(got, []string{"a", "b"}) {
		t.Errorf("got %q", got)
	}
}

func TestIterator_CarriageReturnBoundaries(t *testing.T) {
	it, err := NewSourceIterator(chunked("data: x\r\rdata: y\r\r"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := dataOf(collect(t, it))
	if !equalStrings(got, []string{"x", "y"}) {
		t.Errorf("got %q", got)
	}
}

func TestIterator_TrailingEventWithoutBlankLine(t *testing.T) {
	// An event is only complete once its blank line arrives.
	it, err := NewSourceIterator(chunked("data: a\n\ndata: b"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := dataOf(collect(t, it))
	if !equalStrings(got, []string{"a"}) {
		t.Errorf("got %q", got)
	}
}

func TestIterator_FinalLineFlushed(t *testing.T) {
	// The last blank line only arrives as a pending CR; Flush resolves it.
	it, err := NewSourceIterator(chunked("data: a\r", "\r"), nil)
	if err != nil {
		t.Fatal(err)
	}
	got := dataOf(collect(t, it))
	if !equalStrings(got, []string{"a"}) {
		t.Errorf("got %q", got)
	}
}

func TestIterator_MissingBody(t *testing.T) {
	tok := cancellation.New(context.Background())
	it, err := NewIterator(nil, tok)
	if it != nil {
		t.Error("expected nil iterator")
	}
	if !errors.Is(err, apperrors.MissingBody()) {
		t.Fatalf("expected MISSING_BODY, got %v", err)
	}
	if !tok.IsCancelled() {
		t.Error("expected token to be cancelled")
	}
}

func TestIterator_ExhaustionLeavesTokenLive(t *testing.T) {
	tok := cancellation.New(context.Background())
	it, err := NewIterator(strings.NewReader("data: a\n\n"), tok)
	if err != nil {
		t.Fatal(err)
	}
	collect(t, it)
	if tok.IsCancelled() {
		t.Error("natural exhaustion must not fire the token")
	}
	if err := it.Close(); err != nil {
		t.Errorf("Close after exhaustion: %v", err)
	}
	if tok.IsCancelled() {
		t.Error("Close after exhaustion must not fire the token")
	}
}

// closeTracker counts Close calls on an io.Reader.
type closeTracker struct {
	io.Reader
	closes int
}

func (c *closeTracker) Close() error {
	c.closes++
	return nil
}

func TestIterator_CloseEarlyClosesBody(t *testing.T) {
	tok := cancellation.New(context.Background())
	body := &closeTracker{Reader: strings.NewReader("data: a\n\ndata: b\n\n")}
	it, err := NewIterator(body, tok)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := it.Next(context.Background()); !ok || err != nil {
		t.Fatalf("first Next: ok=%v err=%v", ok, err)
	}
	_ = it.Close()
	if body.closes != 1 {
		t.Errorf("body closed %d times, want 1", body.closes)
	}
	if _, ok, err := it.Next(context.Background()); ok || err != nil {
		t.Errorf("Next after Close: ok=%v err=%v", ok, err)
	}
}

func TestIterator_CancelUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	tok := cancellation.New(context.Background())
	it, err := NewIterator(pr, tok)
	if err != nil {
		t.Fatal(err)
	}

	go func() { _, _ = pw.Write([]byte("data: first\n\n")) }()
	ev, ok, err := it.Next(context.Background())
	if err != nil || !ok || ev.Data != "first" {
		t.Fatalf("first Next: ev=%+v ok=%v err=%v", ev, ok, err)
	}

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, ok, err := it.Next(context.Background())
		done <- result{ok, err}
	}()

	time.Sleep(10 * time.Millisecond)
	tok.Cancel(errors.New("client went away"))

	select {
	case r := <-done:
		if r.ok || r.err != nil {
			t.Errorf("expected clean stop, got ok=%v err=%v", r.ok, r.err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock the pending read")
	}
}

func TestIterator_CancelledContextIsCleanStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tok := cancellation.New(context.Background())
	it, err := NewIterator(strings.NewReader("data: a\n\n"), tok)
	if err != nil {
		t.Fatal(err)
	}
	_, ok, err := it.Next(ctx)
	if ok || err != nil {
		t.Errorf("expected clean stop, got ok=%v err=%v", ok, err)
	}
	if !tok.IsCancelled() {
		t.Error("expected token to fire once cancellation was observed")
	}
}

func TestIterator_ReadErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	body := io.MultiReader(strings.NewReader("data: a\n\n"), iotest.ErrReader(boom))
	it, err := NewIterator(body, nil)
	if err != nil {
		t.Fatal(err)
	}

	ev, ok, err := it.Next(context.Background())
	if err != nil || !ok || ev.Data != "a" {
		t.Fatalf("first Next: ev=%+v ok=%v err=%v", ev, ok, err)
	}
	_, _, err = it.Next(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}
