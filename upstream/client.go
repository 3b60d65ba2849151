package upstream

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/resilience"
)

// Request carries the per-call parts of the upstream request.
type Request struct {
	// Query is merged into the configured URL's query.
	Query url.Values
	// Headers override the configured ones.
	Headers map[string]string
	// Body is sent as-is, for POST upstreams.
	Body []byte
}

// Response is an open upstream stream. The caller owns Body.
type Response struct {
	StatusCode int
	Header     http.Header
	// Format is resolved: never FormatAuto.
	Format Format
	Body   io.ReadCloser
}

// Close closes the body.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Client opens upstream streams.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

// New creates a Client. cfg is defaulted; a nil log uses the "upstream"
// registry logger. It fails only when the TLS settings cannot be loaded.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get(logger.ComponentUpstream)
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout
	if tlsCfg != nil {
		transport.TLSClientConfig = tlsCfg
	}

	c := &Client{
		http: &http.Client{Transport: transport},
		cfg:  cfg,
		log:  log,
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = isRetryable
	breakerCfg.OnStateChange = func(name string, from, to resilience.State) {
		c.log.Warn("Upstream circuit state changed", map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
	}
	c.breaker = resilience.NewCircuitBreaker(breakerCfg)
	return c, nil
}

// Config returns the defaulted configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// Open sends the request and returns once response headers arrived with a
// 2xx status. Retryable failures are retried per Config.Retry.
func (c *Client) Open(ctx context.Context, req Request) (*Response, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanUpstreamOpen,
		trace.WithAttributes(attribute.String(observability.AttrUpstream, c.cfg.URL)))
	defer span.End()

	retry := c.cfg.Retry
	retry.RetryIf = isRetryable
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		c.log.WithContext(ctx).Warn("Retrying upstream open", map[string]interface{}{
			"attempt":            attempt,
			"backoff_ms":         backoff.Milliseconds(),
			logger.FieldError:    err.Error(),
			logger.FieldUpstream: c.cfg.URL,
		})
	}

	resp, err := resilience.Retry(ctx, retry, func() (*Response, error) {
		var resp *Response
		err := c.breaker.Execute(func() error {
			var err error
			resp, err = c.openOnce(ctx, req)
			return err
		})
		return resp, classifyBreaker(err)
	})
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(observability.AttrStreamKind, string(resp.Format)))
	return resp, nil
}

func (c *Client) openOnce(ctx context.Context, req Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, body)
	}

	c.log.WithContext(ctx).Debug("Upstream opened", map[string]interface{}{
		logger.FieldUpstream: c.cfg.URL,
		"status":             resp.StatusCode,
		"content_type":       resp.Header.Get("Content-Type"),
	})
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Format:     resolveFormat(c.cfg.Format, resp.Header.Get("Content-Type")),
		Body:       resp.Body,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, c.cfg.Method, c.cfg.URL, body)
	if err != nil {
		return nil, err
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	accept := "text/event-stream, application/x-ndjson"
	switch c.cfg.Format {
	case FormatSSE:
		accept = "text/event-stream"
	case FormatLines:
		accept = "application/x-ndjson"
	}
	httpReq.Header.Set("Accept", accept)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.BearerToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	}
	return httpReq, nil
}

func resolveFormat(configured Format, contentType string) Format {
	if configured != FormatAuto {
		return configured
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "text/event-stream" {
		return FormatSSE
	}
	return FormatLines
}
