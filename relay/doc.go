// Package relay serves a chat-completion stream to HTTP clients.
//
// A request to the relay path opens the configured upstream, decodes its body
// (SSE or newline-delimited JSON) into a stream of JSON chunks and tees it:
// one branch is written to the client as NDJSON, flushed per read, the other
// is folded into a transcript that is logged when the relay ends.
//
// The stream shares one cancellation token with the upstream body. A client
// that disconnects cancels the request context, which fires the token, which
// closes the upstream body and unblocks any pending read.
//
// Failures before the first byte is sent are answered with an ErrorResponse
// (502 for upstream errors, 503 when the relay is at capacity). Failures after
// that are written as a final {"error": ...} line.
package relay
