package app

import (
	"supplydash/internal/config"
)

// Config holds the application configuration
type Config struct {
	// Debug enables debug logging.
	Debug bool

	// Silent discards all log output.
	Silent bool

	// ConfigPath is the YAML configuration file. Empty means the default
	// file in the working directory, which may be absent.
	ConfigPath string

	// Settings is the loaded configuration. When set, ConfigPath is not read.
	Settings *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
	}
}
