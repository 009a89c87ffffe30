// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/openmedrec/medrec-go/internal/store"
)

// Config holds the server configuration.
type Config struct {
	// ListenAddr is the address to listen on.
	// Example: ":9300"
	ListenAddr string `mapstructure:"listen_addr"`

	// Logging controls log output.
	Logging LoggingConfig `mapstructure:"logging"`

	// Auth holds lockout and token settings.
	Auth AuthConfig `mapstructure:"auth"`

	// RateLimit throttles the public authentication endpoints.
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`

	// Store selects and configures the persistence driver.
	Store store.DriverConfig `mapstructure:"store"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `mapstructure:"level"`
}

// AuthConfig holds lockout and token settings. The zero value of any field
// means "use the documented default".
type AuthConfig struct {
	// MaxFailedAttempts is the failure count that triggers a lock.
	MaxFailedAttempts int `mapstructure:"max_failed_attempts"`

	// LockDurationSeconds is how long a triggered lock holds.
	LockDurationSeconds int `mapstructure:"lock_duration_seconds"`

	// MaxActiveTokens caps concurrent bearer tokens per account.
	MaxActiveTokens int `mapstructure:"max_active_tokens"`

	// BcryptCost is the password hashing work factor.
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// ApplyDefaults sets the documented defaults for unset fields.
func (c *AuthConfig) ApplyDefaults() {
	if c.MaxFailedAttempts == 0 {
		c.MaxFailedAttempts = 10
	}
	if c.LockDurationSeconds == 0 {
		c.LockDurationSeconds = 3600
	}
	if c.MaxActiveTokens == 0 {
		c.MaxActiveTokens = 5
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
}

// LockDuration returns the lock window as a duration.
func (c *AuthConfig) LockDuration() time.Duration {
	return time.Duration(c.LockDurationSeconds) * time.Second
}

// RateLimitConfig throttles registration and login per client IP. Lockout
// protects a single account; the limiter slows sweeps across many.
type RateLimitConfig struct {
	// Enabled turns the limiter on.
	Enabled bool `mapstructure:"enabled"`

	// RequestsPerWindow is the allowed request count per window.
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`

	// WindowSeconds is the window length.
	WindowSeconds int `mapstructure:"window_seconds"`
}

// ApplyDefaults sets the documented defaults for unset fields.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 30
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
}

// Window returns the limiter window as a duration.
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// DefaultConfig returns a Config with sensible defaults for local development.
func DefaultConfig() *Config {
	cfg := &Config{
		ListenAddr: ":9300",
		Logging:    LoggingConfig{Level: "info"},
		RateLimit:  RateLimitConfig{Enabled: true},
		Store:      store.DriverConfig{},
	}
	cfg.Auth.ApplyDefaults()
	cfg.RateLimit.ApplyDefaults()
	cfg.Store.ApplyDefaults()
	return cfg
}

// Redacted returns a printable view of the configuration for startup
// logging. It is the one place that decides what is loggable; fields added
// here must never carry credential material.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  ListenAddr: %q,\n", c.ListenAddr))
	sb.WriteString("  Logging: {\n")
	sb.WriteString(fmt.Sprintf("    Level: %q,\n", c.Logging.Level))
	sb.WriteString("  },\n")
	sb.WriteString("  Auth: {\n")
	sb.WriteString(fmt.Sprintf("    MaxFailedAttempts: %d,\n", c.Auth.MaxFailedAttempts))
	sb.WriteString(fmt.Sprintf("    LockDurationSeconds: %d,\n", c.Auth.LockDurationSeconds))
	sb.WriteString(fmt.Sprintf("    MaxActiveTokens: %d,\n", c.Auth.MaxActiveTokens))
	sb.WriteString(fmt.Sprintf("    BcryptCost: %d,\n", c.Auth.BcryptCost))
	sb.WriteString("  },\n")
	sb.WriteString("  RateLimit: {\n")
	sb.WriteString(fmt.Sprintf("    Enabled: %v,\n", c.RateLimit.Enabled))
	sb.WriteString(fmt.Sprintf("    RequestsPerWindow: %d,\n", c.RateLimit.RequestsPerWindow))
	sb.WriteString(fmt.Sprintf("    WindowSeconds: %d,\n", c.RateLimit.WindowSeconds))
	sb.WriteString("  },\n")
	sb.WriteString("  Store: {\n")
	sb.WriteString(fmt.Sprintf("    Driver: %q,\n", c.Store.Driver))
	sb.WriteString(fmt.Sprintf("    DataDir: %q,\n", c.Store.DataDir))
	sb.WriteString("  },\n")
	sb.WriteString("}")
	return sb.String()
}

// Validate checks configuration constraints.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Auth.MaxFailedAttempts < 1 {
		return fmt.Errorf("auth.max_failed_attempts must be positive")
	}
	if c.Auth.LockDurationSeconds < 1 {
		return fmt.Errorf("auth.lock_duration_seconds must be positive")
	}
	if c.Auth.MaxActiveTokens < 1 {
		return fmt.Errorf("auth.max_active_tokens must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow < 1 {
			return fmt.Errorf("ratelimit.requests_per_window must be positive")
		}
		if c.RateLimit.WindowSeconds < 1 {
			return fmt.Errorf("ratelimit.window_seconds must be positive")
		}
	}
	if c.Store.Driver == "" {
		return fmt.Errorf("store.driver must not be empty")
	}
	return nil
}
