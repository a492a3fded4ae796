package config

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Exec      ExecConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8765"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
	// CORSOrigins enables CORS for these origins; empty disables it.
	CORSOrigins []string `envconfig:"CORS_ORIGINS"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ExecConfig holds one-off and background command settings.
type ExecConfig struct {
	Shell          string        `envconfig:"EXEC_SHELL" default:"/bin/sh"`
	MaxOutputLines int           `envconfig:"EXEC_MAX_OUTPUT_LINES" default:"200"`
	DefaultTimeout time.Duration `envconfig:"EXEC_DEFAULT_TIMEOUT" default:"300s"`
	KillGrace      time.Duration `envconfig:"EXEC_KILL_GRACE" default:"2s"`
	Retention      time.Duration `envconfig:"EXEC_RETENTION" default:"30m"`
	MaxRetained    int           `envconfig:"EXEC_MAX_RETAINED" default:"1000"`
	StripEnv       bool          `envconfig:"EXEC_STRIP_ENV" default:"false"`
	StripEnvVars   []string      `envconfig:"EXEC_STRIP_ENV_VARS" default:"*_API_KEY,*_TOKEN,*_SECRET,*_PASSWORD,AWS_SECRET_ACCESS_KEY"`
	PolicyFile     string        `envconfig:"EXEC_POLICY_FILE"`
}

// SessionConfig holds persistent shell settings.
type SessionConfig struct {
	Shell       string        `envconfig:"SESSION_SHELL" default:"/bin/bash"`
	Max         int           `envconfig:"SESSION_MAX" default:"10"`
	Cols        uint16        `envconfig:"SESSION_COLS" default:"250"`
	Rows        uint16        `envconfig:"SESSION_ROWS" default:"24"`
	IdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"0s"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
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

// Validate rejects values the registries cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Exec.MaxOutputLines < 1:
		return fmt.Errorf("EXEC_MAX_OUTPUT_LINES must be positive, got %d", c.Exec.MaxOutputLines)
	case c.Exec.DefaultTimeout <= 0:
		return fmt.Errorf("EXEC_DEFAULT_TIMEOUT must be positive, got %s", c.Exec.DefaultTimeout)
	case c.Session.Max < 1:
		return fmt.Errorf("SESSION_MAX must be positive, got %d", c.Session.Max)
	case c.Session.IdleTimeout < 0:
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must not be negative, got %s", c.Session.IdleTimeout)
	case c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond < 1:
		return fmt.Errorf("RATE_LIMIT_RPS must be positive, got %d", c.RateLimit.RequestsPerSecond)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8765",
			Host: "127.0.0.1",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Exec: ExecConfig{
			Shell:          "/bin/sh",
			MaxOutputLines: 200,
			DefaultTimeout: 300 * time.Second,
			KillGrace:      2 * time.Second,
			Retention:      30 * time.Minute,
			MaxRetained:    1000,
			StripEnv:       false,
			StripEnvVars:   []string{"*_API_KEY", "*_TOKEN", "*_SECRET", "*_PASSWORD", "AWS_SECRET_ACCESS_KEY"},
		},
		Session: SessionConfig{
			Shell: "/bin/bash",
			Max:   10,
			Cols:  250,
			Rows:  24,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
