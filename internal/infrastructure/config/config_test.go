package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "HOST", "CORS_ORIGINS", "LOG_LEVEL", "LOG_DEV",
	"EXEC_SHELL", "EXEC_MAX_OUTPUT_LINES", "EXEC_DEFAULT_TIMEOUT", "EXEC_KILL_GRACE",
	"EXEC_RETENTION", "EXEC_MAX_RETAINED", "EXEC_STRIP_ENV", "EXEC_STRIP_ENV_VARS", "EXEC_POLICY_FILE",
	"SESSION_SHELL", "SESSION_MAX", "SESSION_COLS", "SESSION_ROWS", "SESSION_IDLE_TIMEOUT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RATE_LIMIT_ENABLED",
}

// clearEnv unsets every variable Load reads for the rest of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8765", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "127.0.0.1:8765", cfg.Server.Addr())

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Exec config
	assert.Equal(t, "/bin/sh", cfg.Exec.Shell)
	assert.Equal(t, 200, cfg.Exec.MaxOutputLines)
	assert.Equal(t, 300*time.Second, cfg.Exec.DefaultTimeout)
	assert.False(t, cfg.Exec.StripEnv)
	assert.Contains(t, cfg.Exec.StripEnvVars, "*_TOKEN")

	// Session config
	assert.Equal(t, "/bin/bash", cfg.Session.Shell)
	assert.Equal(t, 10, cfg.Session.Max)
	assert.Equal(t, uint16(250), cfg.Session.Cols)
	assert.Zero(t, cfg.Session.IdleTimeout)

	// Rate limit config
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadMatchesDefault(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	clearEnv(t)
	envVars := map[string]string{
		"PORT":                  "9000",
		"HOST":                  "0.0.0.0",
		"LOG_LEVEL":             "debug",
		"LOG_DEV":               "true",
		"EXEC_SHELL":            "/bin/dash",
		"EXEC_MAX_OUTPUT_LINES": "50",
		"EXEC_DEFAULT_TIMEOUT":  "90s",
		"EXEC_KILL_GRACE":       "500ms",
		"EXEC_STRIP_ENV":        "true",
		"EXEC_STRIP_ENV_VARS":   "GITHUB_*,NPM_TOKEN",
		"EXEC_POLICY_FILE":      "/etc/agentsh/policy.yaml",
		"SESSION_MAX":           "3",
		"SESSION_IDLE_TIMEOUT":  "15m",
		"RATE_LIMIT_RPS":        "500",
		"RATE_LIMIT_BURST":      "1000",
		"RATE_LIMIT_ENABLED":    "false",
		"CORS_ORIGINS":          "http://localhost:3000",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, "/bin/dash", cfg.Exec.Shell)
	assert.Equal(t, 50, cfg.Exec.MaxOutputLines)
	assert.Equal(t, 90*time.Second, cfg.Exec.DefaultTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Exec.KillGrace)
	assert.True(t, cfg.Exec.StripEnv)
	assert.Equal(t, []string{"GITHUB_*", "NPM_TOKEN"}, cfg.Exec.StripEnvVars)
	assert.Equal(t, "/etc/agentsh/policy.yaml", cfg.Exec.PolicyFile)

	assert.Equal(t, 3, cfg.Session.Max)
	assert.Equal(t, 15*time.Minute, cfg.Session.IdleTimeout)

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
		{"unparsable duration", "EXEC_DEFAULT_TIMEOUT", "soon"},
		{"unparsable int", "SESSION_MAX", "many"},
		{"zero output lines", "EXEC_MAX_OUTPUT_LINES", "0"},
		{"zero sessions", "SESSION_MAX", "0"},
		{"negative idle timeout", "SESSION_IDLE_TIMEOUT", "-1m"},
		{"zero rate", "RATE_LIMIT_RPS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			cfg := LoadOrDefault()
			assert.Equal(t, Default(), cfg)
		})
	}
}
