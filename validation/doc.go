// Package validation checks configuration and request structs against their
// `validate` struct tags.
//
//	type RelayConfig struct {
//	    UpstreamURL string `mapstructure:"upstream_url" validate:"required,http_url"`
//	}
//	err := validation.Validate(cfg)
//
// Failures are returned as a single INVALID_INPUT *errors.AppError whose
// Details["fields"] lists every offending field by its config key.
package validation
