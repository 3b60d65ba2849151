// Package errors provides the structured error type shared by the stream
// decoders, the relay handler and the CLI.
//
// Every failure that crosses a package boundary is an *AppError carrying a
// machine-readable code, an HTTP status for the relay, and an optional cause.
// The stream taxonomy is:
//
//   - PROTOCOL_ERROR: a payload could not be decoded; propagated to the consumer.
//   - CANCELLED: the request's cancellation token fired; treated as a clean stop.
//   - MISSING_BODY: SSE iteration was started without a response body.
//   - INVALID_STATE: a single-use stream was iterated twice.
package errors
