package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/resilience"
	"github.com/kbukum/chatstream/server/middleware"
	"github.com/kbukum/chatstream/testutil"
	"github.com/kbukum/chatstream/upstream"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const completionSSE = "event: message_start\ndata: {\"text\":\"\"}\n\n" +
	": ping\n\n" +
	"event: content_delta\ndata: {\"text\":\"Hel\"}\n\n" +
	"event: content_delta\ndata: {\"text\":\"lo\"}\n\n" +
	"data: [DONE]\n\n"

func upstreamServer(t *testing.T, contentType string, chunks ...string) *testutil.Upstream {
	t.Helper()
	up := &testutil.Upstream{ContentType: contentType, Chunks: chunks}
	testutil.Setup(t, up)
	return up
}

func testConfig(url string) Config {
	return Config{Upstream: upstream.Config{
		URL:   url,
		Retry: resilience.RetryConfig{MaxAttempts: 1},
	}}
}

func mustNew(t *testing.T, cfg Config, opts ...Option) *Handler {
	t.Helper()
	h, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func newEngine(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	h.Register(engine)
	return engine
}

func serve(engine http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, body []byte) apperrors.ErrorCode {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", body, err)
	}
	return resp.Error.Code
}

func TestRelay_SSE(t *testing.T) {
	up := upstreamServer(t, "text/event-stream", completionSSE)

	h := mustNew(t, testConfig(up.URL()), WithLogger(logger.Nop()))
	req := httptest.NewRequest(http.MethodGet, "/v1/stream?model=m1", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	rec := serve(newEngine(h), req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get(StreamIDHeader) == "" {
		t.Error("missing stream ID header")
	}
	want := "{\"text\":\"\"}\n{\"text\":\"Hel\"}\n{\"text\":\"lo\"}\n"
	if rec.Body.String() != want {
		t.Errorf("body = %q, want %q", rec.Body.String(), want)
	}

	reqs := up.Requests()
	if len(reqs) != 1 {
		t.Fatalf("upstream saw %d requests", len(reqs))
	}
	if id := reqs[0].Header.Get(middleware.RequestIDHeader); id != "req-1" {
		t.Errorf("upstream saw request ID %q", id)
	}
	if reqs[0].Query != "model=m1" {
		t.Errorf("upstream query = %q", reqs[0].Query)
	}
}

func TestRelay_Lines(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n" +
		"data: [DONE]\n"
	up := upstreamServer(t, "application/x-ndjson", body)

	rec := serve(newEngine(mustNew(t, testConfig(up.URL()), WithLogger(logger.Nop()))),
		httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), rec.Body.String())
	}
	if textOf(json.RawMessage(lines[1])) != "b" {
		t.Errorf("second line = %s", lines[1])
	}
}

func TestRelay_PostBodyForwarded(t *testing.T) {
	up := upstreamServer(t, "text/event-stream", "data: {\"text\":\"ok\"}\n\n")

	cfg := testConfig(up.URL())
	cfg.Upstream.Method = http.MethodPost
	req := httptest.NewRequest(http.MethodPost, "/v1/stream", strings.NewReader(`{"prompt":"hi"}`))
	rec := serve(newEngine(mustNew(t, cfg, WithLogger(logger.Nop()))), req)

	if rec.Code != http.StatusOK || rec.Body.String() != "{\"text\":\"ok\"}\n" {
		t.Errorf("status %d body %q", rec.Code, rec.Body.String())
	}
	reqs := up.Requests()
	if len(reqs) != 1 || reqs[0].Method != http.MethodPost || string(reqs[0].Body) != `{"prompt":"hi"}` {
		t.Errorf("upstream requests = %+v", reqs)
	}
}

func TestRelay_UpstreamFailure(t *testing.T) {
	up := upstreamServer(t, "text/plain", "overloaded")
	up.Status = http.StatusInternalServerError

	rec := serve(newEngine(mustNew(t, testConfig(up.URL()), WithLogger(logger.Nop()))),
		httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != apperrors.ErrCodeExternalService {
		t.Errorf("code = %s", code)
	}
}

func TestRelay_ProtocolErrorBeforeFirstItem(t *testing.T) {
	up := upstreamServer(t, "text/event-stream", "data: {not json\n\n")

	rec := serve(newEngine(mustNew(t, testConfig(up.URL()), WithLogger(logger.Nop()))),
		httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != apperrors.ErrCodeProtocol {
		t.Errorf("code = %s", code)
	}
}

func TestRelay_ProtocolErrorMidStream(t *testing.T) {
	up := upstreamServer(t, "text/event-stream", "data: {\"text\":\"a\"}\n\n", "data: {not json\n\n")

	rec := serve(newEngine(mustNew(t, testConfig(up.URL()), WithLogger(logger.Nop()))),
		httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	if len(lines) != 2 || lines[0] != "{\"text\":\"a\"}" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	var last apperrors.ErrorResponse
	if err := json.Unmarshal([]byte(lines[1]), &last); err != nil {
		t.Fatalf("decoding error record %q: %v", lines[1], err)
	}
	if last.Error.Code != apperrors.ErrCodeProtocol {
		t.Errorf("code = %s", last.Error.Code)
	}
	if id := rec.Header().Get(StreamIDHeader); id == "" || last.Error.StreamID != id {
		t.Errorf("record stream_id = %q, header = %q", last.Error.StreamID, id)
	}
}

func TestRelay_AtCapacity(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer up.Close()

	cfg := testConfig(up.URL)
	cfg.MaxConcurrent = 1
	engine := newEngine(mustNew(t, cfg, WithLogger(logger.Nop())))

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- serve(engine, httptest.NewRequest(http.MethodGet, "/v1/stream", nil)) }()
	<-arrived

	rec := serve(engine, httptest.NewRequest(http.MethodGet, "/v1/stream", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if code := errorCode(t, rec.Body.Bytes()); code != apperrors.ErrCodeUnavailable {
		t.Errorf("code = %s", code)
	}

	close(release)
	if r := <-first; r.Code != http.StatusOK {
		t.Errorf("first relay status = %d", r.Code)
	}
}

func TestRelay_ClientDisconnectCancelsUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"text\":\"first\"}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
		close(upstreamDone)
	}))
	defer up.Close()

	relaySrv := httptest.NewServer(newEngine(mustNew(t, testConfig(up.URL), WithLogger(logger.Nop()))))
	defer relaySrv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, relaySrv.URL+"/v1/stream", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "{\"text\":\"first\"}\n" {
		t.Errorf("first line = %q", line)
	}

	cancel()
	_ = resp.Body.Close()

	select {
	case <-upstreamDone:
	case <-time.After(2 * time.Second):
		t.Fatal("client disconnect did not cancel the upstream request")
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Path != "/v1/stream" || cfg.MaxConcurrent != defaultMaxConcurrent {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Upstream.Format != upstream.FormatAuto {
		t.Errorf("upstream format = %q", cfg.Upstream.Format)
	}
}
