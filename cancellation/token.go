// Package cancellation provides the per-request cancellation handle shared by
// a byte source and the stream consuming it.
//
// A Token wraps a context.Context. Firing it records a reason, closes Done,
// and runs every hook registered with OnCancel exactly once, which is how a
// blocked read on a response body gets unblocked.
package cancellation

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the reason recorded when Cancel is called with nil.
var ErrCancelled = errors.New("request cancelled")

// Token is a shared, idempotent cancellation handle. The zero value is not
// usable; create one with New.
type Token struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	once sync.Once

	mu    sync.Mutex
	stops []func() bool
}

// New returns a Token derived from parent. Cancelling parent cancels the token.
func New(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Context returns the token's context, suitable for outbound requests.
func (t *Token) Context() context.Context { return t.ctx }

// Done is closed once the token is cancelled.
func (t *Token) Done() <-chan struct{} { return t.ctx.Done() }

// IsCancelled reports whether the token (or its parent) has fired.
func (t *Token) IsCancelled() bool { return t.ctx.Err() != nil }

// Cancel fires the token. Only the first call records its reason; later calls
// are no-ops and return false.
func (t *Token) Cancel(reason error) bool {
	first := false
	t.once.Do(func() {
		if reason == nil {
			reason = ErrCancelled
		}
		first = true
		t.cancel(reason)
	})
	return first
}

// Cause returns the reason the token fired, or nil while it is live.
func (t *Token) Cause() error {
	if t.ctx.Err() == nil {
		return nil
	}
	return context.Cause(t.ctx)
}

// OnCancel registers fn to run once when the token fires. If the token has
// already fired, fn runs right away in its own goroutine. The returned func
// unregisters fn and reports whether it did so before fn started.
func (t *Token) OnCancel(fn func()) (stop func() bool) {
	s := context.AfterFunc(t.ctx, fn)
	t.mu.Lock()
	t.stops = append(t.stops, s)
	t.mu.Unlock()
	return s
}

// Release unregisters every pending OnCancel hook without firing the token.
// Streams call it once their source is exhausted.
func (t *Token) Release() {
	t.mu.Lock()
	stops := t.stops
	t.stops = nil
	t.mu.Unlock()
	for _, s := range stops {
		s()
	}
}
