package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"supplydash/pkg/logging"
)

// LookupFunc matches os.LookupEnv; tests inject a map-backed version.
type LookupFunc func(key string) (string, bool)

// LoadConfig loads configuration from path. A missing file at the default
// location yields the defaults; a missing file that was named explicitly is
// an error. Environment overrides are applied last, then defaults fill gaps.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	// .env is optional, like in most twelve-factor setups.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("ConfigLoader", "Failed to load .env file: %v", err)
	}

	cfg := GetDefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, newParseError(path, err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logging.Info("ConfigLoader", "No %s found, using defaults", path)
	default:
		return Config{}, newIOError(path, err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ParseConfig decodes YAML bytes over the defaults without touching the
// environment.
func ParseConfig(data []byte) (Config, error) {
	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, newParseError("", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// ApplyEnv overrides configuration values from the environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigurationError{
				ErrorType: ErrorTypeEnv,
				Message:   fmt.Sprintf("%s must be an integer, got %q", key, v),
				Err:       err,
			}
		}
		*dst = n
		return nil
	}

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	str("DB_HOST", &c.Database.Host)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	if err := num("DB_PORT", &c.Database.Port); err != nil {
		return err
	}
	if _, ok := lookup("DB_HOST"); ok {
		c.Database.Enabled = true
	}

	str("SUPPLYDASH_OAUTH_HOST", &c.OAuth.Host)
	str("SUPPLYDASH_OAUTH_CLIENT_ID", &c.OAuth.ClientID)
	str("SUPPLYDASH_OAUTH_CLIENT_SECRET", &c.OAuth.ClientSecret)
	str("SUPPLYDASH_TUNNEL_UPSTREAM_HOST", &c.Tunnel.UpstreamHost)
	str("SUPPLYDASH_REFRESH_TOKEN_FILE", &c.TokenStore.File.Path)
	if v, ok := lookup("SUPPLYDASH_REDIS_URL"); ok && v != "" {
		c.TokenStore.Redis.URL = v
		c.TokenStore.Type = TokenStoreRedis
	}
	return nil
}
