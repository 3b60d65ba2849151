package relay

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/kbukum/chatstream/stream"
)

const previewRunes = 120

// Transcript summarises a relayed stream.
type Transcript struct {
	Items int
	Bytes int
	text  strings.Builder
}

// Text returns the concatenated text deltas.
func (t *Transcript) Text() string { return t.text.String() }

// Preview returns at most previewRunes of Text.
func (t *Transcript) Preview() string {
	s := t.text.String()
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + "..."
}

func (t *Transcript) add(chunk json.RawMessage) {
	t.Items++
	t.Bytes += len(chunk)
	t.text.WriteString(textOf(chunk))
}

// summarize drains s into a Transcript. A cancelled stream ends it cleanly.
func summarize(ctx context.Context, s *stream.Stream[json.RawMessage]) (*Transcript, error) {
	t := &Transcript{}
	for chunk, err := range s.All(ctx) {
		if err != nil {
			return t, err
		}
		t.add(chunk)
	}
	return t, nil
}

// textOf extracts the text delta from common chat chunk shapes:
// {"text": ...}, {"content": ...}, {"delta": {...}} and
// {"choices": [{"delta": {...}}]}.
func textOf(raw json.RawMessage) string {
	var chunk map[string]json.RawMessage
	if json.Unmarshal(raw, &chunk) != nil {
		return ""
	}
	for _, key := range []string{"text", "content", "delta"} {
		v, ok := chunk[key]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(v, &s) == nil {
			return s
		}
		if key == "delta" {
			return textOf(v)
		}
	}
	if v, ok := chunk["choices"]; ok {
		var choices []json.RawMessage
		if json.Unmarshal(v, &choices) == nil && len(choices) > 0 {
			return textOf(choices[0])
		}
	}
	return ""
}
