// Package upstream opens the streaming HTTP response the relay decodes.
//
// It is a streaming-only HTTP client: no whole-body reads, no client-wide
// timeout (Timeout bounds the wait for response headers only), default
// headers and bearer auth from Config, and non-2xx statuses classified into
// AppErrors before any byte is handed to a decoder.
//
// Opening is retried on retryable failures and guarded by a circuit breaker.
// Once a response is returned the stream belongs to the caller and is never
// retried.
//
//	client, err := upstream.New(cfg, log)
//	resp, err := client.Open(ctx, upstream.Request{Query: r.URL.Query()})
//	defer resp.Close()
//	switch resp.Format {
//	case upstream.FormatSSE:
//	    s, err := stream.FromSSE(resp.Body, tok)
//	    ...
//	}
package upstream
