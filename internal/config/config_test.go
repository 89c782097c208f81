package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// validConfig is the default configuration with the one setting that has no
// usable default filled in.
func validConfig() Config {
	cfg := GetDefaultConfig()
	cfg.OAuth.Host = "tenant.example.com"
	cfg.applyDefaults()
	return cfg
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/oauth/token", cfg.OAuth.TokenPath)
	assert.Equal(t, []string{"user_default", "offline_access"}, cfg.OAuth.Scopes)
	assert.Equal(t, "/tunnel", cfg.Tunnel.MountPrefix)
	assert.Equal(t, []string{"access_token", "token"}, cfg.Tunnel.TokenParams)
	assert.Equal(t, "Qlik-Web-Integration-Id", cfg.Tunnel.IntegrationIDHeader)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore.Type)
	assert.Equal(t, "data/refresh_token", cfg.TokenStore.File.Path)
	assert.True(t, cfg.Guest.Enabled)
	assert.True(t, cfg.Guest.ClearOnInvalidGrant)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "supply_chain_db", cfg.Database.Name)
	assert.Empty(t, cfg.Tunnel.UpstreamHost)

	var verrs ValidationErrors
	require.ErrorAs(t, cfg.Validate(), &verrs)
	require.Len(t, verrs, 1)
	assert.Equal(t, "tunnel.upstreamHost", verrs[0].Field)

	valid := validConfig()
	require.NoError(t, valid.Validate())
	assert.Equal(t, "tenant.example.com", valid.Tunnel.UpstreamHost)
}

func TestDefaultScopesNotShared(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.OAuth.Scopes[0] = "changed"
	assert.Equal(t, "user_default", DefaultScopes[0])
}

func TestParseConfig(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
oauth:
  host: tenant.example.com
  clientId: cid
tunnel:
  aliasPrefixes: [/qlik-ws]
  dialTimeout: 5s
guest:
  enabled: true
  clearOnInvalidGrant: false
`))
		require.NoError(t, err)

		assert.Equal(t, "tenant.example.com", cfg.OAuth.Host)
		assert.Equal(t, "cid", cfg.OAuth.ClientID)
		assert.Equal(t, "/tunnel", cfg.Tunnel.MountPrefix)
		assert.Equal(t, []string{"/qlik-ws"}, cfg.Tunnel.AliasPrefixes)
		assert.Equal(t, 5*time.Second, cfg.Tunnel.DialTimeout)
		assert.Equal(t, "tenant.example.com", cfg.Tunnel.UpstreamHost, "upstream host falls back to oauth host")
		assert.True(t, cfg.Guest.CacheAccessTokens, "unset bool keeps default")
		assert.False(t, cfg.Guest.ClearOnInvalidGrant)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("server: [unterminated"))
		require.Error(t, err)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ErrorTypeParse, cfgErr.ErrorType)
		assert.Contains(t, cfgErr.DetailedError(), "Suggestions")
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, ErrorTypeIO, cfgErr.ErrorType)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "supplydash.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8088\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		if _, ok := os.LookupEnv("PORT"); !ok {
			assert.Equal(t, 8088, cfg.Server.Port)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		cfg := GetDefaultConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{
			"PORT":                           "4000",
			"DB_HOST":                        "db.internal",
			"DB_PORT":                        "6543",
			"DB_PASSWORD":                    "secret",
			"SUPPLYDASH_OAUTH_HOST":          "tenant.example.com",
			"SUPPLYDASH_OAUTH_CLIENT_SECRET": "s3cr3t",
			"SUPPLYDASH_REFRESH_TOKEN_FILE":  "/var/lib/supplydash/rt",
		}))
		require.NoError(t, err)

		assert.Equal(t, 4000, cfg.Server.Port)
		assert.True(t, cfg.Database.Enabled)
		assert.Equal(t, "db.internal", cfg.Database.Host)
		assert.Equal(t, 6543, cfg.Database.Port)
		assert.Equal(t, "secret", cfg.Database.Password)
		assert.Equal(t, "tenant.example.com", cfg.OAuth.Host)
		assert.Equal(t, "s3cr3t", cfg.OAuth.ClientSecret)
		assert.Equal(t, "/var/lib/supplydash/rt", cfg.TokenStore.File.Path)
		assert.Equal(t, TokenStoreFile, cfg.TokenStore.Type)
	})

	t.Run("tunnel upstream host", func(t *testing.T) {
		cfg := GetDefaultConfig()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
			"SUPPLYDASH_OAUTH_HOST":           "tenant.example.com",
			"SUPPLYDASH_TUNNEL_UPSTREAM_HOST": "engine.example.com:8443",
		})))
		cfg.applyDefaults()
		assert.Equal(t, "engine.example.com:8443", cfg.Tunnel.UpstreamHost)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("redis url selects redis store", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{"SUPPLYDASH_REDIS_URL": "redis://localhost:6379/0"})))
		assert.Equal(t, TokenStoreRedis, cfg.TokenStore.Type)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("bad integer", func(t *testing.T) {
		cfg := GetDefaultConfig()
		err := cfg.ApplyEnv(envMap(map[string]string{"PORT": "abc"}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PORT must be an integer")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			fields: []string{"server.port"},
		},
		{
			name:   "host with scheme",
			mutate: func(c *Config) { c.OAuth.Host = "https://tenant.example.com" },
			fields: []string{"oauth.host"},
		},
		{
			name: "bad tunnel settings",
			mutate: func(c *Config) {
				c.Tunnel.MountPrefix = "tunnel/"
				c.Tunnel.UpstreamScheme = "http"
				c.Tunnel.TokenParams = nil
			},
			fields: []string{"tunnel.mountPrefix", "tunnel.upstreamScheme", "tunnel.tokenParams"},
		},
		{
			name: "no upstream host",
			mutate: func(c *Config) {
				c.OAuth.Host = ""
				c.Tunnel.UpstreamHost = ""
			},
			fields: []string{"tunnel.upstreamHost"},
		},
		{
			name:   "upstream host with scheme",
			mutate: func(c *Config) { c.Tunnel.UpstreamHost = "wss://engine.example.com" },
			fields: []string{"tunnel.upstreamHost"},
		},
		{
			name:   "unknown store",
			mutate: func(c *Config) { c.TokenStore.Type = "s3" },
			fields: []string{"tokenStore.type"},
		},
		{
			name:   "redis without address",
			mutate: func(c *Config) { c.TokenStore.Type = TokenStoreRedis },
			fields: []string{"tokenStore.redis"},
		},
		{
			name: "database enabled without name",
			mutate: func(c *Config) {
				c.Database.Enabled = true
				c.Database.Name = ""
			},
			fields: []string{"database.name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var got []string
			for _, ve := range verrs {
				got = append(got, ve.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())
	assert.Equal(t, "no validation errors", errs.Error())

	errs.Add("a", "is wrong", 1)
	assert.Equal(t, "field 'a': is wrong", errs.Error())

	errs.Add("", "global problem")
	assert.Equal(t, "validation failed: field 'a': is wrong; global problem", errs.Error())
}
