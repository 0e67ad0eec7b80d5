// Package config loads 12-factor configuration from the environment.
//
// Every field has a default, so an empty environment yields a working
// local server. CLI flags in cmd/server override the loaded values.
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, CORS_ORIGINS
//   - SANDBOX_EVAL_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_CONSOLE
//   - TOOLS_DIR, TOOLS_PATTERN
//   - HUB_EVAL_TIMEOUT, HUB_MAX_IN_FLIGHT
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Sandbox   SandboxConfig
	Catalog   CatalogConfig
	Hub       HubConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"9573"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// CORSOrigins is a comma separated list; https://*.example.com style
	// patterns are allowed
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// Addr joins host and port
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// SandboxConfig bounds plugin evaluation.
type SandboxConfig struct {
	EvalTimeout  time.Duration `envconfig:"SANDBOX_EVAL_TIMEOUT" default:"30s"`
	MaxCallStack int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	Console      bool          `envconfig:"SANDBOX_CONSOLE" default:"true"`
}

// CatalogConfig locates plugin tools on disk. An empty Dir disables the
// catalog.
type CatalogConfig struct {
	Dir     string `envconfig:"TOOLS_DIR"`
	Pattern string `envconfig:"TOOLS_PATTERN" default:"**/*.js"`
}

// HubConfig bounds evaluations requested over the event bridge.
type HubConfig struct {
	EvalTimeout time.Duration `envconfig:"HUB_EVAL_TIMEOUT" default:"30s"`
	MaxInFlight int64         `envconfig:"HUB_MAX_IN_FLIGHT" default:"16"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case c.Sandbox.EvalTimeout <= 0:
		return fmt.Errorf("invalid config: SANDBOX_EVAL_TIMEOUT must be positive, got %s", c.Sandbox.EvalTimeout)
	case c.Sandbox.MaxCallStack <= 0:
		return fmt.Errorf("invalid config: SANDBOX_MAX_CALL_STACK must be positive, got %d", c.Sandbox.MaxCallStack)
	case c.Hub.EvalTimeout <= 0:
		return fmt.Errorf("invalid config: HUB_EVAL_TIMEOUT must be positive, got %s", c.Hub.EvalTimeout)
	case c.Hub.MaxInFlight <= 0:
		return fmt.Errorf("invalid config: HUB_MAX_IN_FLIGHT must be positive, got %d", c.Hub.MaxInFlight)
	case c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0):
		return fmt.Errorf("invalid config: rate limit needs positive RATE_LIMIT_RPS and RATE_LIMIT_BURST")
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid config: CORS_ORIGINS entry %q must be * or an http(s) origin", origin)
		}
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "9573",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},
		},
		Sandbox: SandboxConfig{
			EvalTimeout:  30 * time.Second,
			MaxCallStack: 1024,
			Console:      true,
		},
		Catalog: CatalogConfig{
			Pattern: "**/*.js",
		},
		Hub: HubConfig{
			EvalTimeout: 30 * time.Second,
			MaxInFlight: 16,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
