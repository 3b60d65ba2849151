package relay

import (
	"time"

	"github.com/kbukum/chatstream/upstream"
)

const (
	defaultPath          = "/v1/stream"
	defaultMaxConcurrent = 64
	maxRequestBody       = 1 << 20
)

// Config configures the relay endpoint.
type Config struct {
	// Path is the route the relay answers GET and POST on.
	Path string `yaml:"path" mapstructure:"path" validate:"startswith=/"`
	// MaxConcurrent bounds simultaneous relays. Zero means unbounded.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent" validate:"gte=0"`
	// MaxWait is how long a request waits for a free slot before a 503.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait" validate:"gte=0"`

	Upstream upstream.Config `yaml:"upstream" mapstructure:"upstream"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	c.Upstream.ApplyDefaults()
}
