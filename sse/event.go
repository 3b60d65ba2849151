// Package sse decodes Server-Sent Events from a chunked response body.
//
// Only the "event" and "data" fields are interpreted. Comment lines (leading
// ':') and any other field are kept in Event.Raw for diagnostics but otherwise
// ignored; there is no id/retry reconnection handling.
package sse

import "strings"

// Event represents a single server-sent event.
type Event struct {
	// Event is the SSE event type (from the last "event:" line). Empty both
	// when the block had no event field and when it was sent with an empty
	// value; HasEventField tells the two apart.
	Event string `json:"event,omitempty"`
	// Data is the payload from "data:" line(s). Multi-line data is joined with newlines.
	Data string `json:"data"`
	// Raw holds the block's non-blank lines in arrival order.
	Raw []string `json:"raw,omitempty"`
}

// Generic event type constants.
const (
	// EventTypeMessage is the default type for blocks without an event field.
	EventTypeMessage = "message"
	// EventTypeError marks a block whose data describes a stream failure.
	EventTypeError = "error"
)

// Type returns the event type, defaulting to "message".
func (e Event) Type() string {
	if e.Event == "" {
		return EventTypeMessage
	}
	return e.Event
}

// HasEventField reports whether the block carried an "event" field, even an
// empty one.
func (e Event) HasEventField() bool {
	for _, line := range e.Raw {
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, _, _ := strings.Cut(line, ":")
		if field == "event" {
			return true
		}
	}
	return false
}
