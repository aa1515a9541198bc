package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.URL == "" {
		errs = append(errs, fmt.Errorf("backend.url is required"))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Auth.Type {
	case "none", "passthrough":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\" or \"passthrough\", got %q", c.Auth.Type))
	}

	if c.Gateway.BreakerEnabled && c.Gateway.BreakerFailureThreshold <= 0 {
		errs = append(errs, fmt.Errorf("gateway.breaker_failure_threshold must be > 0 when gateway.breaker_enabled is true, got %d", c.Gateway.BreakerFailureThreshold))
	}

	if c.Gateway.ClientChannelCapacity <= 0 {
		errs = append(errs, fmt.Errorf("gateway.client_channel_capacity must be > 0, got %d", c.Gateway.ClientChannelCapacity))
	}

	if c.Gateway.DumpEnabled && c.Gateway.DumpDir == "" {
		errs = append(errs, fmt.Errorf("gateway.dump_dir is required when gateway.dump_enabled is true"))
	}

	return errors.Join(errs...)
}
