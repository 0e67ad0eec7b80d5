package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "9573", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9573", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)

	assert.Equal(t, 30*time.Second, cfg.Sandbox.EvalTimeout)
	assert.Equal(t, 1024, cfg.Sandbox.MaxCallStack)
	assert.True(t, cfg.Sandbox.Console)

	assert.Empty(t, cfg.Catalog.Dir)
	assert.Equal(t, "**/*.js", cfg.Catalog.Pattern)

	assert.Equal(t, 30*time.Second, cfg.Hub.EvalTimeout)
	assert.Equal(t, int64(16), cfg.Hub.MaxInFlight)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefaultOnEmptyEnvironment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	env := map[string]string{
		"PORT":                   "9000",
		"HOST":                   "127.0.0.1",
		"CORS_ORIGINS":           "https://app.example.com,https://*.example.org",
		"SANDBOX_EVAL_TIMEOUT":   "5s",
		"SANDBOX_MAX_CALL_STACK": "256",
		"SANDBOX_CONSOLE":        "false",
		"TOOLS_DIR":              "/srv/tools",
		"TOOLS_PATTERN":          "*.mjs",
		"HUB_EVAL_TIMEOUT":       "1m",
		"HUB_MAX_IN_FLIGHT":      "4",
		"LOG_LEVEL":              "debug",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "500",
		"RATE_LIMIT_BURST":       "1000",
		"RATE_LIMIT_ENABLED":     "false",
	}
	for key, value := range env {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.Equal(t, []string{"https://app.example.com", "https://*.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.Sandbox.EvalTimeout)
	assert.Equal(t, 256, cfg.Sandbox.MaxCallStack)
	assert.False(t, cfg.Sandbox.Console)
	assert.Equal(t, "/srv/tools", cfg.Catalog.Dir)
	assert.Equal(t, "*.mjs", cfg.Catalog.Pattern)
	assert.Equal(t, time.Minute, cfg.Hub.EvalTimeout)
	assert.Equal(t, int64(4), cfg.Hub.MaxInFlight)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparseable duration", key: "SANDBOX_EVAL_TIMEOUT", value: "soon"},
		{name: "zero eval timeout", key: "SANDBOX_EVAL_TIMEOUT", value: "0s"},
		{name: "negative call stack", key: "SANDBOX_MAX_CALL_STACK", value: "-1"},
		{name: "zero hub timeout", key: "HUB_EVAL_TIMEOUT", value: "0s"},
		{name: "zero in flight", key: "HUB_MAX_IN_FLIGHT", value: "0"},
		{name: "zero burst", key: "RATE_LIMIT_BURST", value: "0"},
		{name: "not a bool", key: "LOG_DEV", value: "maybe"},
		{name: "origin without scheme", key: "CORS_ORIGINS", value: "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantAddr string
	}{
		{name: "default values", wantAddr: "0.0.0.0:9573"},
		{name: "custom port", port: "9000", wantAddr: "0.0.0.0:9000"},
		{name: "custom host", host: "localhost", wantAddr: "localhost:9573"},
		{name: "ipv6 host", host: "::1", port: "3000", wantAddr: "[::1]:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()
			assert.Equal(t, tt.wantAddr, cfg.Server.Addr())
		})
	}
}
