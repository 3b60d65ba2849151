// Package server provides the HTTP server the relay is mounted on: a Gin
// engine served over HTTP/1.1 and HTTP/2 cleartext (h2c), so streamed
// responses work through HTTP/2-only proxies without TLS.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: panic recovery answered with an INTERNAL_ERROR body
//   - RequestID: X-Request-Id generation and propagation into the request context
//   - CORS: cross-origin headers and preflight for browser chat clients
//   - RequestLogger: one structured log line per request
//
// # Endpoints
//
//   - /health: liveness and the version being served
package server
