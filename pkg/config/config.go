// Package config provides unified configuration for the gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RESPGW_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Backend       BackendConfig       `yaml:"backend"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`

	// LogLevel sets slog's verbosity: error, warn, info, debug. Default: info.
	LogLevel string `yaml:"log_level"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8282
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 600s, covers the longest streaming response
}

// BackendConfig holds settings for the upstream Chat Completions backend.
type BackendConfig struct {
	URL          string `yaml:"url"`           // required
	APIKey       string `yaml:"api_key"`       // optional
	APIKeyFile   string `yaml:"api_key_file"`  // _file variant for api_key
	DefaultModel string `yaml:"default_model"` // optional

	// Timeout bounds an entire streaming round trip (including time spent
	// waiting on deltas); the backend client applies it to a streamed
	// response as a context deadline. Default: 600s.
	Timeout time.Duration `yaml:"timeout"`
	// ConnectTimeout bounds dialing and TLS handshake only. Default: 10s.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// GatewayConfig holds settings specific to the protocol-translation layer:
// circuit breaker thresholds, model catalog refresh cadence, SSE parsing
// limits, and request/response dump-to-disk debugging.
type GatewayConfig struct {
	BreakerEnabled          bool          `yaml:"breaker_enabled"`           // default: true
	BreakerFailureThreshold int           `yaml:"breaker_failure_threshold"` // default: 5
	BreakerOpenDuration     time.Duration `yaml:"breaker_open_duration"`     // default: 30s

	// ModelCacheRefresh is how often the model catalog polls the backend's
	// /v1/models endpoint. Zero disables catalog validation entirely.
	ModelCacheRefresh time.Duration `yaml:"model_cache_refresh"` // default: 60s

	// SSEBufferCap is the hard per-line cap enforced while reading the
	// backend's SSE stream, guarding against an unbounded line consuming
	// memory. Default: 1 MiB.
	SSEBufferCap int `yaml:"sse_buffer_cap"`

	// ClientChannelCapacity sizes the bounded channel between the backend
	// SSE reader goroutine and the request's event translator. Default: 64.
	ClientChannelCapacity int `yaml:"client_channel_capacity"`

	// DumpEnabled and DumpDir are loaded and validated only; no component
	// of the gateway reads them, so no dump files are written.
	DumpEnabled bool   `yaml:"dump_enabled"` // default: false
	DumpDir     string `yaml:"dump_dir"`     // default: "./dumps"
}

// AuthConfig holds authentication settings. This gateway never validates
// credentials itself — it forwards whatever Authorization header it
// received to the backend unchanged. Type selects whether a credential is
// required at all ("none" lets every request through); JWTShapeCheck
// selects whether a JWT-shaped token additionally gets a structural check
// for earlier, clearer error messages.
type AuthConfig struct {
	Type          string `yaml:"type"`            // "passthrough" or "none", default: "passthrough"
	JWTShapeCheck bool   `yaml:"jwt_shape_check"` // default: true

	// AltHeader names an additional header checked for a credential when
	// Authorization is absent, after the built-in X-Api-Key fallback.
	// Empty disables the extra lookup.
	AltHeader string `yaml:"alt_header"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8282,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 600 * time.Second,
		},
		Backend: BackendConfig{
			Timeout:        600 * time.Second,
			ConnectTimeout: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			BreakerEnabled:          true,
			BreakerFailureThreshold: 5,
			BreakerOpenDuration:     30 * time.Second,
			ModelCacheRefresh:       60 * time.Second,
			SSEBufferCap:            1024 * 1024,
			ClientChannelCapacity:   64,
			DumpDir:                 "./dumps",
		},
		Auth: AuthConfig{
			Type:          "passthrough",
			JWTShapeCheck: true,
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		LogLevel: "info",
	}
}
