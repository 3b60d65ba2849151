// Package observability wires OpenTelemetry tracing and metrics for the
// stream decoders and the relay.
//
// Setup installs OTLP/HTTP exporters for traces and metrics when enabled.
// StreamMetrics holds the counters the decoders update; a nil *StreamMetrics
// is valid and records nothing, so packages can take it as an optional
// dependency.
package observability
