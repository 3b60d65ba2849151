// Package component defines lifecycle-managed pieces of the relay service.
//
// A Component starts, stops and reports health. The Registry starts
// components in registration order and stops them in reverse, so the HTTP
// server registered after telemetry is drained before exporters flush.
package component
