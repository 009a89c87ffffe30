package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/openmedrec/medrec-go/internal/cfg"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// nil or empty values mean "unset".
type FlagOverrides struct {
	ListenAddr   *string
	StoreDriver  *string
	DataDir      *string
	LoggingLevel *string
}

// Load builds the effective configuration with precedence:
// defaults -> TOML file -> CLI flags.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	config := DefaultConfig()

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return nil, fmt.Errorf("config file %s: %w", opts.ConfigPath, err)
		}

		var raw map[string]any
		if _, err := toml.DecodeFile(opts.ConfigPath, &raw); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", opts.ConfigPath, err)
		}

		// Decode over the defaults: keys absent from the file keep their
		// default values.
		unused, err := cfg.DecodeWithUnused(raw, config)
		if err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", opts.ConfigPath, err)
		}
		for _, key := range unused {
			logger.Warn("unknown config key ignored", "key", key)
		}
	}

	applyOverrides(config, opts.FlagOverrides)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func applyOverrides(config *Config, overrides FlagOverrides) {
	if v := overrides.ListenAddr; v != nil && *v != "" {
		config.ListenAddr = *v
	}
	if v := overrides.StoreDriver; v != nil && *v != "" {
		config.Store.Driver = *v
	}
	if v := overrides.DataDir; v != nil && *v != "" {
		config.Store.DataDir = *v
	}
	if v := overrides.LoggingLevel; v != nil && *v != "" {
		config.Logging.Level = *v
	}
}
