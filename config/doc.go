// Package config loads the chatstream configuration.
//
// Values come from a config.yml (searched under cmd/<service>/, config/ and
// the working directory, or given explicitly), then a .env file, then the
// environment. Environment variables are matched to nested keys by trying
// every split of their underscores, so CHATSTREAM_RELAY_UPSTREAM_URL sets
// relay.upstream.url:
//
//	cfg, err := config.Load(config.WithConfigFile("config.yml"))
//
// Load applies defaults and validates the result; LoadConfig only decodes
// into an arbitrary struct.
package config
