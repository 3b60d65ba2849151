package upstream

import (
	"net/http"
	"time"

	"github.com/kbukum/chatstream/resilience"
)

// Format names the wire format of the upstream body.
type Format string

const (
	// FormatAuto picks SSE for text/event-stream responses and lines otherwise.
	FormatAuto Format = "auto"
	// FormatSSE decodes the body as Server-Sent Events.
	FormatSSE Format = "sse"
	// FormatLines decodes the body as newline-delimited JSON.
	FormatLines Format = "lines"
)

const defaultTimeout = 30 * time.Second

// Config configures the upstream stream.
type Config struct {
	// URL is the streaming endpoint.
	URL    string `yaml:"url" mapstructure:"url" validate:"required,http_url"`
	Method string `yaml:"method" mapstructure:"method" validate:"oneof=GET POST"`
	Format Format `yaml:"format" mapstructure:"format" validate:"oneof=auto sse lines"`

	// Timeout bounds the wait for response headers. The stream itself has no
	// deadline; cancellation ends it.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// Headers are sent with every request.
	Headers     map[string]string `yaml:"headers" mapstructure:"headers"`
	BearerToken string            `yaml:"-" mapstructure:"bearer_token"`

	TLS TLSConfig `yaml:"tls" mapstructure:"tls"`

	Retry   resilience.RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker resilience.BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	if c.Format == "" {
		c.Format = FormatAuto
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	c.Retry.ApplyDefaults()
	if c.Breaker.MaxFailures == 0 {
		c.Breaker.MaxFailures = resilience.DefaultBreakerConfig("").MaxFailures
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = "upstream"
	}
}
