package config

import (
	"fmt"

	"github.com/kbukum/chatstream/bytesource"
	"github.com/kbukum/chatstream/logger"
	"github.com/kbukum/chatstream/observability"
	"github.com/kbukum/chatstream/relay"
	"github.com/kbukum/chatstream/server"
	"github.com/kbukum/chatstream/stream"
	"github.com/kbukum/chatstream/validation"
	"github.com/kbukum/chatstream/version"
)

// ServiceName names the service in logs, traces and config file lookup.
const ServiceName = "chatstream"

// EnvPrefix scopes the environment variables Load reads.
const EnvPrefix = "CHATSTREAM"

// Config is the root configuration.
type Config struct {
	BaseConfig    `yaml:",inline" mapstructure:",squash"`
	Logging       logger.Config        `yaml:"logging" mapstructure:"logging"`
	Stream        StreamConfig         `yaml:"stream" mapstructure:"stream"`
	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Relay         relay.Config         `yaml:"relay" mapstructure:"relay"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// StreamConfig holds decoding parameters shared by every stream.
type StreamConfig struct {
	// ChunkSize is the read size for byte sources.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=0"`
	// Sentinel ends a line or SSE JSON stream.
	Sentinel string `yaml:"sentinel" mapstructure:"sentinel"`
	// DataPrefix is stripped from lines before JSON decoding.
	DataPrefix string `yaml:"data_prefix" mapstructure:"data_prefix"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *StreamConfig) ApplyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = bytesource.DefaultChunkSize
	}
	if c.Sentinel == "" {
		c.Sentinel = stream.DefaultSentinel
	}
	if c.DataPrefix == "" {
		c.DataPrefix = stream.DefaultDataPrefix
	}
}

// Options converts the config into stream options.
func (c StreamConfig) Options() []stream.Option {
	return []stream.Option{
		stream.WithChunkSize(c.ChunkSize),
		stream.WithSentinel(c.Sentinel),
		stream.WithDataPrefix(c.DataPrefix),
	}
}

// ApplyDefaults applies defaults to every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = ServiceName
	}
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.BaseConfig.ApplyDefaults()
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	c.Logging.ApplyDefaults()
	c.Stream.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Relay.ApplyDefaults()

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.BaseConfig.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	return validation.Validate(c)
}

// Load reads, defaults and validates the configuration.
func Load(opts ...LoaderOption) (*Config, error) {
	var cfg Config
	opts = append([]LoaderOption{WithEnvPrefix(EnvPrefix)}, opts...)
	if err := LoadConfig(ServiceName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
