package sse

import "strings"

// Decoder assembles events from individual lines. It holds the fields of the
// event being built and is reset after each emission. Not safe for concurrent
// use.
type Decoder struct {
	event string
	data  []string
	raw   []string
}

// NewDecoder returns an idle Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode consumes one line (without its terminator). It returns the completed
// event and true when line is the blank line closing a block that carried an
// event or data field.
func (d *Decoder) Decode(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		if d.idle() {
			return Event{}, false
		}
		ev := Event{
			Event: d.event,
			Data:  strings.Join(d.data, "\n"),
			Raw:   d.raw,
		}
		d.event = ""
		d.data = nil
		d.raw = nil
		return ev, true
	}

	d.raw = append(d.raw, line)

	// Skip comments
	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value := parseLine(line)
	switch field {
	case "event":
		d.event = value
	case "data":
		d.data = append(d.data, value)
	}
	return Event{}, false
}

// idle reports whether no event or data field has been seen since the last
// emission. Comment-only blocks leave the decoder idle.
func (d *Decoder) idle() bool {
	return d.event == "" && len(d.data) == 0
}

// parseLine parses a single SSE line into field and value.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// Strip a single leading space after the colon.
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
