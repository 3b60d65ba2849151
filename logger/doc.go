// Package logger provides structured logging backed by zerolog.
//
// Stream components log through component-scoped loggers obtained from Get or
// WithComponent and attach stream identifiers with WithStreamID. The field
// keys used across the module are declared in fields.go.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("sse")
//	log.Debug("event decoded", logger.Fields(logger.FieldEvent, ev.Type()))
package logger
