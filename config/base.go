package config

import "fmt"

var environments = []string{"development", "staging", "production"}

// BaseConfig contains the fields every deployment sets.
type BaseConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`
}

// ApplyDefaults applies default values to base configuration.
func (c *BaseConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
}

// Validate validates base configuration.
func (c *BaseConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("base.name is required")
	}
	for _, v := range environments {
		if c.Environment == v {
			return nil
		}
	}
	return fmt.Errorf("base.environment must be one of %v (got: %s)", environments, c.Environment)
}
