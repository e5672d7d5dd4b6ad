// Package config loads framesched settings from the environment.
//
// Command-line flags take precedence; the CLI applies them on top of the
// values returned by Load.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds every FRAMESCHED_* setting.
//
// The rates are host defaults for scenarios that do not set their own.
// Zero leaves the harness default in place.
type Config struct {
	// DB is the journal path. Empty disables journaling.
	DB string `env:"FRAMESCHED_DB"`
	// FrameRate is the host frame rate in frames per second.
	FrameRate float64 `env:"FRAMESCHED_FRAME_RATE"`
	// FixedRate is the FixedUpdate step rate in steps per second.
	FixedRate float64 `env:"FRAMESCHED_FIXED_RATE"`
	// SlowInterval is the minimum realtime between SlowUpdate passes, in
	// seconds.
	SlowInterval float64 `env:"FRAMESCHED_SLOW_INTERVAL"`
	Verbose      bool    `env:"FRAMESCHED_VERBOSE"`

	OTel OTel
}

// OTel configures opt-in trace export.
type OTel struct {
	Endpoint string `env:"FRAMESCHED_OTEL_ENDPOINT"`
	// Enabled defaults to true; tracing still needs an endpoint.
	Enabled bool `env:"FRAMESCHED_OTEL_ENABLED" envDefault:"true"`
}

// TracingOn reports whether spans should be exported.
func (o OTel) TracingOn() bool {
	return o.Enabled && o.Endpoint != ""
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects rates and intervals the host cannot run with.
func (c Config) Validate() error {
	if c.FrameRate < 0 {
		return fmt.Errorf("frame rate must not be negative, got %v", c.FrameRate)
	}
	if c.FixedRate < 0 {
		return fmt.Errorf("fixed rate must not be negative, got %v", c.FixedRate)
	}
	if c.SlowInterval < 0 {
		return fmt.Errorf("slow interval must not be negative, got %v", c.SlowInterval)
	}
	return nil
}
