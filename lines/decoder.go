// Package lines splits a chunked byte stream into text lines.
//
// HTTP bodies relayed through proxies and vendors mix line-ending conventions,
// so the Decoder accepts "\n", "\r" and "\r\n" as terminators. A lone "\r" at
// the end of a chunk is held back until the next byte shows whether it starts
// a "\r\n" pair.
package lines

import (
	"bytes"

	"golang.org/x/text/encoding/unicode"
)

const (
	lf = '\n'
	cr = '\r'
)

// Decoder incrementally turns byte chunks into lines. It is not safe for
// concurrent use; create one per logical request.
type Decoder struct {
	buf []byte
	// pendingCR is the index in buf of a lone "\r" waiting for the next byte,
	// or -1.
	pendingCR int
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{pendingCR: -1}
}

// Decode appends chunk to the buffer and returns every line it completes, in
// order and without terminators. A nil or empty chunk is a no-op.
func (d *Decoder) Decode(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	if len(d.buf) == 0 {
		d.pendingCR = -1
	}
	d.buf = append(d.buf, chunk...)

	var out []string
	b := d.buf
	scan := 0
	if d.pendingCR >= 0 {
		scan = d.pendingCR + 1
	}
	for {
		idx := indexTerminator(b, scan)
		if idx < 0 {
			break
		}

		if d.pendingCR >= 0 {
			out = append(out, DecodeText(b[:d.pendingCR]))
			if b[idx] == lf && idx == d.pendingCR+1 {
				// "\r\n"
				b = b[idx+1:]
			} else {
				// The held "\r" stood alone; idx is looked at again.
				b = b[d.pendingCR+1:]
			}
			d.pendingCR = -1
			scan = 0
			continue
		}

		if b[idx] == cr {
			d.pendingCR = idx
			scan = idx + 1
			continue
		}

		out = append(out, DecodeText(b[:idx]))
		b = b[idx+1:]
		scan = 0
	}

	// Compact once per call.
	d.buf = append(d.buf[:0], b...)
	return out
}

// Flush emits whatever is buffered as a final line. It returns nothing when
// the buffer is empty.
func (d *Decoder) Flush() []string {
	if len(d.buf) == 0 {
		return nil
	}
	return d.Decode([]byte{lf})
}

// Buffered reports how many undecoded bytes are held.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func indexTerminator(b []byte, from int) int {
	if from >= len(b) {
		return -1
	}
	idx := bytes.IndexAny(b[from:], "\r\n")
	if idx < 0 {
		return -1
	}
	return from + idx
}

// DecodeText decodes UTF-8 bytes, replacing invalid sequences with U+FFFD.
// A nil slice decodes to "".
func DecodeText(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return string(bytes.ToValidUTF8(b, []byte("\uFFFD")))
	}
	return string(out)
}
