package relay

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chatstream/cancellation"
	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/resilience"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/server/middleware"
	"github.com/kbukum/chatstream/stream"
	"github.com/kbukum/chatstream/upstream"
)

// ContentType is the media type of relayed responses.
const ContentType = "application/x-ndjson"

// StreamIDHeader carries the relayed stream's ID on the response.
const StreamIDHeader = "X-Stream-Id"

const copyBufferSize = 32 * 1024

// Relay statuses recorded on the relay duration histogram.
const (
	statusOK        = "ok"
	statusCancelled = "cancelled"
	statusError     = "error"
	statusRejected  = "rejected"
)

// Handler relays upstream streams to HTTP clients.
type Handler struct {
	cfg        Config
	client     *upstream.Client
	bulkhead   *resilience.Bulkhead
	streamOpts []stream.Option
	metrics    *observability.StreamMetrics
	log        *logger.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler's logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records relay and stream metrics.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithStreamOptions sets options applied to every relayed stream, such as
// chunk size and sentinel.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(h *Handler) { h.streamOpts = append(h.streamOpts, opts...) }
}

// WithClient replaces the upstream client built from Config.Upstream.
func WithClient(c *upstream.Client) Option {
	return func(h *Handler) { h.client = c }
}

// New creates a Handler. cfg is defaulted.
func New(cfg Config, opts ...Option) (*Handler, error) {
	cfg.ApplyDefaults()
	h := &Handler{
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrent, cfg.MaxWait),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logger.Get(logger.ComponentRelay)
	}
	if h.client == nil {
		client, err := upstream.New(cfg.Upstream, logger.Get(logger.ComponentUpstream))
		if err != nil {
			return nil, err
		}
		h.client = client
	}
	return h, nil
}

// Register mounts the relay on GET and POST at Config.Path.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET(h.cfg.Path, h.Stream)
	r.POST(h.cfg.Path, h.Stream)
}

// Stream is the gin handler for one relay.
func (h *Handler) Stream(c *gin.Context) {
	start := time.Now()
	ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanRelay)
	defer span.End()

	h.metrics.RecordRelayStart(ctx)
	status := statusOK
	defer func() { h.metrics.RecordRelayEnd(ctx, status, time.Since(start)) }()

	err := h.bulkhead.Execute(ctx, func() error {
		status = h.relay(ctx, c)
		return nil
	})
	if err != nil {
		status = statusRejected
		if apperrors.IsCancellation(err) {
			c.Abort()
			return
		}
		h.log.WithContext(ctx).Warn("Relay rejected", map[string]interface{}{
			logger.FieldReason: err.Error(),
			"in_use":           h.bulkhead.InUse(),
		})
		server.RespondWithError(c, apperrors.Unavailable("relay at capacity").WithCause(err))
	}
}

// relay runs one relay and returns its status.
func (h *Handler) relay(ctx context.Context, c *gin.Context) string {
	log := h.log.WithContext(ctx)
	token := cancellation.New(ctx)
	defer token.Release()

	req, err := h.upstreamRequest(c)
	if err != nil {
		server.RespondWithError(c, err)
		return statusError
	}

	resp, err := h.client.Open(token.Context(), req)
	if err != nil {
		if apperrors.IsCancellation(err) {
			c.Abort()
			return statusCancelled
		}
		log.Warn("Upstream open failed", logger.ErrorFields("upstream_open", err))
		observability.SetSpanError(ctx, err)
		server.RespondWithError(c, err)
		return statusError
	}
	defer resp.Close()

	s, err := h.decode(ctx, resp, token)
	if err != nil {
		observability.SetSpanError(ctx, err)
		server.RespondWithError(c, err)
		return statusError
	}
	log = log.WithStreamID(s.ID())
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String(observability.AttrStreamID, s.ID()),
		attribute.String(observability.AttrStreamKind, string(resp.Format)),
	)

	client, transcript := s.Tee()
	summary := make(chan summaryResult, 1)
	go func() {
		t, err := summarize(ctx, transcript)
		summary <- summaryResult{t, err}
	}()

	status, sent := writeStream(ctx, c, client.ToReader(ctx), s.ID())
	res := <-summary

	fields := map[string]interface{}{
		logger.FieldItems:    res.transcript.Items,
		logger.FieldBytes:    sent,
		logger.FieldUpstream: h.client.Config().URL,
		logger.FieldKind:     string(resp.Format),
		"status":             status,
		"chars":              len(res.transcript.Text()),
		"preview":            res.transcript.Preview(),
	}
	if res.err != nil {
		fields[logger.FieldError] = res.err.Error()
	}
	log.Info("Relay finished", fields)
	return status
}

type summaryResult struct {
	transcript *Transcript
	err        error
}

func (h *Handler) upstreamRequest(c *gin.Context) (upstream.Request, error) {
	req := upstream.Request{
		Query:   c.Request.URL.Query(),
		Headers: map[string]string{},
	}
	if id := middleware.GetRequestID(c); id != "" {
		req.Headers[middleware.RequestIDHeader] = id
	}
	if c.Request.Method == http.MethodPost && c.Request.Body != nil {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody+1))
		if err != nil {
			return req, apperrors.InvalidInput("body", err.Error())
		}
		if len(body) > maxRequestBody {
			return req, apperrors.InvalidInput("body", "request body too large")
		}
		if len(body) > 0 {
			req.Body = body
		}
	}
	return req, nil
}

// decode builds the relayed stream for the upstream body.
func (h *Handler) decode(ctx context.Context, resp *upstream.Response, token *cancellation.Token) (*stream.Stream[json.RawMessage], error) {
	opts := append([]stream.Option{
		stream.WithLogger(logger.Get(logger.ComponentStream).WithContext(ctx)),
		stream.WithMetrics(h.metrics),
	}, h.streamOpts...)

	if resp.Format == upstream.FormatSSE {
		return stream.FromSSEJSON[json.RawMessage](resp.Body, token, opts...)
	}
	return stream.FromLines[json.RawMessage](resp.Body, token, opts...), nil
}

// writeStream copies r to the client, flushing after every read. The response is
// committed only once the first bytes are ready, so an error before that is
// still answered with an error status. It returns the relay status and the
// number of bytes sent.
func writeStream(ctx context.Context, c *gin.Context, r io.ReadCloser, streamID string) (string, int) {
	defer r.Close()

	buf := make([]byte, copyBufferSize)
	committed := false
	sent := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if !committed {
				commit(c, streamID)
				committed = true
			}
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				// Client gone; closing r cancels the stream and the upstream.
				return statusCancelled, sent
			}
			sent += n
			c.Writer.Flush()
		}
		if err == nil {
			continue
		}
		if stderrors.Is(err, io.EOF) {
			if !committed {
				commit(c, streamID)
			}
			if ctx.Err() != nil {
				return statusCancelled, sent
			}
			return statusOK, sent
		}

		observability.SetSpanError(ctx, err)
		if !committed {
			server.RespondWithError(c, err)
			return statusError, sent
		}
		writeErrorLine(c, err, streamID)
		return statusError, sent
	}
}

func commit(c *gin.Context, streamID string) {
	h := c.Writer.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	h.Set(StreamIDHeader, streamID)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
}

// writeErrorLine ends a committed response with an error record.
func writeErrorLine(c *gin.Context, err error, streamID string) {
	_, _ = c.Writer.Write(apperrors.StreamRecord(err, streamID))
	c.Writer.Flush()
}
