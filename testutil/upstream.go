package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/kbukum/chatstream/component"
)

// RecordedRequest is what the fake upstream saw.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Upstream is a streaming HTTP server that writes its chunks one at a time,
// flushing after each. It implements component.Component.
type Upstream struct {
	// ContentType is sent with every response.
	ContentType string
	// Status is the response status. Zero means 200.
	Status int
	// Chunks are written in order.
	Chunks []string
	// Delay is slept before each chunk.
	Delay time.Duration
	// Hold keeps the response open after the last chunk until the client
	// goes away.
	Hold bool

	mu       sync.Mutex
	srv      *httptest.Server
	requests []RecordedRequest
}

var _ component.Component = (*Upstream)(nil)

// NewSSEUpstream returns an upstream answering text/event-stream.
func NewSSEUpstream(chunks ...string) *Upstream {
	return &Upstream{ContentType: "text/event-stream", Chunks: chunks}
}

// NewLinesUpstream returns an upstream answering application/x-ndjson.
func NewLinesUpstream(chunks ...string) *Upstream {
	return &Upstream{ContentType: "application/x-ndjson", Chunks: chunks}
}

// Name implements component.Component.
func (u *Upstream) Name() string { return "fake-upstream" }

// Start begins serving on a loopback port.
func (u *Upstream) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.srv = httptest.NewServer(http.HandlerFunc(u.serve))
	return nil
}

// Stop closes the server and any open streams.
func (u *Upstream) Stop(ctx context.Context) error {
	u.mu.Lock()
	srv := u.srv
	u.mu.Unlock()
	if srv != nil {
		srv.CloseClientConnections()
		srv.Close()
	}
	return nil
}

// Health implements component.Component.
func (u *Upstream) Health(ctx context.Context) component.Health {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.srv == nil {
		return component.Health{Name: u.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: u.Name(), Status: component.StatusHealthy}
}

// URL returns the server's base URL. Valid after Start.
func (u *Upstream) URL() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.srv == nil {
		return ""
	}
	return u.srv.URL
}

// Requests returns the requests received so far.
func (u *Upstream) Requests() []RecordedRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]RecordedRequest(nil), u.requests...)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.requests = append(u.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	u.mu.Unlock()

	if u.ContentType != "" {
		w.Header().Set("Content-Type", u.ContentType)
	}
	status := u.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	flusher, _ := w.(http.Flusher)

	for _, chunk := range u.Chunks {
		if u.Delay > 0 {
			select {
			case <-time.After(u.Delay):
			case <-r.Context().Done():
				return
			}
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	if u.Hold {
		<-r.Context().Done()
	}
}
