package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kbukum/chatstream/version"
)

const capture = "event: message_start\ndata: {\"text\":\"\"}\n\n" +
	": ping\n\n" +
	"event: content_delta\ndata: {\"text\": \"Hel\"}\n\n" +
	"event: content_delta\ndata: {\"text\":\"lo\"}\n\n" +
	"data: [DONE]\n\n"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
		want  string
	}{
		{
			name:  "sse json payloads",
			input: capture,
			args:  []string{"decode"},
			want:  "{\"text\":\"\"}\n{\"text\":\"Hel\"}\n{\"text\":\"lo\"}\n",
		},
		{
			name:  "lines with prefix",
			input: "data: {\"n\":1}\n\ndata: {\"n\":2}\r\ndata: [DONE]\ndata: {\"n\":3}\n",
			args:  []string{"decode", "--format", "lines"},
			want:  "{\"n\":1}\n{\"n\":2}\n",
		},
		{
			name:  "custom sentinel",
			input: "{\"n\":1}\nEND\n{\"n\":2}\n",
			args:  []string{"decode", "-f", "lines", "--sentinel", "END"},
			want:  "{\"n\":1}\n",
		},
		{
			name:  "stdin dash",
			input: "data: {\"n\":1}\n\n",
			args:  []string{"decode", "-"},
			want:  "{\"n\":1}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := execute(t, tt.input, tt.args...)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode_RawEvents(t *testing.T) {
	got, err := execute(t, capture, "decode", "--format", "sse")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d events: %q", len(lines), got)
	}
	if !strings.Contains(lines[0], `"event":"message_start"`) {
		t.Errorf("first event = %s", lines[0])
	}
	if !strings.Contains(lines[3], `"data":"[DONE]"`) {
		t.Errorf("last event = %s", lines[3])
	}
}

func TestDecode_EventFilter(t *testing.T) {
	got, err := execute(t, capture, "decode", "-f", "sse", "--event", "content_delta")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d events: %q", len(lines), got)
	}
	for _, l := range lines {
		if !strings.Contains(l, `"event":"content_delta"`) {
			t.Errorf("unexpected event %s", l)
		}
	}
}

func TestDecode_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.sse")
	if err := os.WriteFile(path, []byte(capture), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := execute(t, "", "decode", path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(got, "\n") != 3 {
		t.Errorf("got %q", got)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		args    []string
		wantErr string
	}{
		{"unknown format", "", []string{"decode", "-f", "xml"}, "unknown format"},
		{"missing file", "", []string{"decode", "/nonexistent/capture.sse"}, "no such file"},
		{"malformed json", "data: {oops\n\n", []string{"decode"}, "PROTOCOL_ERROR"},
		{"error event", "event: error\ndata: {\"type\":\"overloaded\"}\n\n", []string{"decode"}, "PROTOCOL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.input, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	got, err := execute(t, "", "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(got) != version.Get().Short() {
		t.Errorf("got %q, want %q", got, version.Get().Short())
	}
}

func TestServeFlags(t *testing.T) {
	cmd := newServeCmd()
	for _, name := range []string{"config", "env-file", "upstream", "port"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestServeLoadConfigFlagsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := "server:\n  port: 9000\nrelay:\n  upstream:\n    url: http://file:1/stream\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	c := &serveCommander{
		configFile: path,
		envFile:    "/nonexistent/.env",
		upstream:   "http://flag:2/stream",
		port:       9100,
		debug:      true,
	}
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Relay.Upstream.URL != "http://flag:2/stream" || cfg.Server.Port != 9100 {
		t.Errorf("flags not applied: url=%q port=%d", cfg.Relay.Upstream.URL, cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
}
