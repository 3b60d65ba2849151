// Package stream turns a chunked response body into a lazy, single-use
// sequence of values.
//
// A Stream shares a cancellation.Token with the request feeding it. Pulling
// values is the only thing that reads the body; when the token fires the body
// is closed and iteration ends cleanly, and when a consumer stops early the
// token is fired for it, so no read outlives the consumer.
//
// # Sources
//
//   - FromLines: one JSON value per line, ending at a "[DONE]" line
//   - FromSSE: server-sent events
//   - FromSSEJSON: JSON values carried in server-sent event data
//   - New, From: any Iterator
//
// # Consuming
//
// A Stream can be consumed once, through exactly one of:
//
//   - Iter: explicit Next/Close
//   - All: range-over-func; break cancels the stream
//   - Collect: every value as a slice
//   - ToReader: newline-delimited JSON
//
// Map derives a transformed Stream and Tee splits one into two independently
// paced branches backed by a single pull.
//
// # Usage
//
//	s := stream.FromLines[Chunk](resp.Body, token)
//	for chunk, err := range s.All(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    handle(chunk)
//	}
package stream
