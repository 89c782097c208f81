package config

import "time"

const (
	// DefaultConfigFile is looked up in the working directory when --config is not given.
	DefaultConfigFile = "supplydash.yaml"

	DefaultPort              = 3000
	DefaultHost              = "0.0.0.0"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second

	DefaultTokenPath     = "/oauth/token"
	DefaultAuthorizePath = "/oauth/authorize"
	DefaultRedirectURI   = "http://localhost:3000/"
	DefaultOAuthTimeout  = 30 * time.Second

	DefaultMountPrefix         = "/tunnel"
	DefaultUpstreamScheme      = "wss"
	DefaultIntegrationIDParam  = "qlik-client-id"
	DefaultIntegrationIDHeader = "Qlik-Web-Integration-Id"
	DefaultDialTimeout         = 15 * time.Second

	DefaultRefreshTokenFile = "data/refresh_token"
	DefaultRefreshTokenEnv  = "SUPPLYDASH_REFRESH_TOKEN"
	DefaultRedisKey         = "supplydash:refresh_token"

	DefaultDBHost           = "localhost"
	DefaultDBPort           = 5432
	DefaultDBUser           = "postgres"
	DefaultDBName           = "supply_chain_db"
	DefaultDBSSLMode        = "disable"
	DefaultDBMaxOpenConns   = 10
	DefaultDBConnMaxIdle    = 30 * time.Second
	DefaultDBConnectTimeout = 2 * time.Second
)

// DefaultScopes are requested on the interactive authorization redirect.
// offline_access is what makes the provider issue a refresh token.
var DefaultScopes = []string{"user_default", "offline_access"}

// DefaultTokenParams are the query parameters checked for the access token.
var DefaultTokenParams = []string{"access_token", "token"}

// GetDefaultConfig returns the configuration used when no file is present.
func GetDefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:              DefaultHost,
			Port:              DefaultPort,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		OAuth: OAuthConfig{
			TokenPath:     DefaultTokenPath,
			AuthorizePath: DefaultAuthorizePath,
			RedirectURI:   DefaultRedirectURI,
			Scopes:        append([]string(nil), DefaultScopes...),
			Timeout:       DefaultOAuthTimeout,
		},
		Tunnel: TunnelConfig{
			MountPrefix:         DefaultMountPrefix,
			UpstreamScheme:      DefaultUpstreamScheme,
			TokenParams:         append([]string(nil), DefaultTokenParams...),
			IntegrationIDParam:  DefaultIntegrationIDParam,
			IntegrationIDHeader: DefaultIntegrationIDHeader,
			DialTimeout:         DefaultDialTimeout,
		},
		TokenStore: TokenStoreConfig{
			Type: TokenStoreFile,
			File: FileStoreConfig{Path: DefaultRefreshTokenFile},
			Env:  EnvStoreConfig{Variable: DefaultRefreshTokenEnv},
			Redis: RedisStoreConfig{
				Key: DefaultRedisKey,
			},
		},
		Guest: GuestConfig{
			Enabled:             true,
			CacheAccessTokens:   true,
			ClearOnInvalidGrant: true,
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            DefaultDBHost,
			Port:            DefaultDBPort,
			User:            DefaultDBUser,
			Name:            DefaultDBName,
			SSLMode:         DefaultDBSSLMode,
			MaxOpenConns:    DefaultDBMaxOpenConns,
			ConnMaxIdleTime: DefaultDBConnMaxIdle,
			ConnectTimeout:  DefaultDBConnectTimeout,
		},
	}
}

// applyDefaults fills zero values left behind by a partial config file.
func (c *Config) applyDefaults() {
	d := GetDefaultConfig()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = d.Server.ReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}

	if c.OAuth.TokenPath == "" {
		c.OAuth.TokenPath = d.OAuth.TokenPath
	}
	if c.OAuth.AuthorizePath == "" {
		c.OAuth.AuthorizePath = d.OAuth.AuthorizePath
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = d.OAuth.RedirectURI
	}
	if len(c.OAuth.Scopes) == 0 {
		c.OAuth.Scopes = d.OAuth.Scopes
	}
	if c.OAuth.Timeout == 0 {
		c.OAuth.Timeout = d.OAuth.Timeout
	}

	if c.Tunnel.MountPrefix == "" {
		c.Tunnel.MountPrefix = d.Tunnel.MountPrefix
	}
	if c.Tunnel.UpstreamHost == "" {
		c.Tunnel.UpstreamHost = c.OAuth.Host
	}
	if c.Tunnel.UpstreamScheme == "" {
		c.Tunnel.UpstreamScheme = d.Tunnel.UpstreamScheme
	}
	if len(c.Tunnel.TokenParams) == 0 {
		c.Tunnel.TokenParams = d.Tunnel.TokenParams
	}
	if c.Tunnel.IntegrationIDParam == "" {
		c.Tunnel.IntegrationIDParam = d.Tunnel.IntegrationIDParam
	}
	if c.Tunnel.IntegrationIDHeader == "" {
		c.Tunnel.IntegrationIDHeader = d.Tunnel.IntegrationIDHeader
	}
	if c.Tunnel.DialTimeout == 0 {
		c.Tunnel.DialTimeout = d.Tunnel.DialTimeout
	}

	if c.TokenStore.Type == "" {
		c.TokenStore.Type = d.TokenStore.Type
	}
	if c.TokenStore.File.Path == "" {
		c.TokenStore.File.Path = d.TokenStore.File.Path
	}
	if c.TokenStore.Env.Variable == "" {
		c.TokenStore.Env.Variable = d.TokenStore.Env.Variable
	}
	if c.TokenStore.Redis.Key == "" {
		c.TokenStore.Redis.Key = d.TokenStore.Redis.Key
	}

	if c.Database.Host == "" {
		c.Database.Host = d.Database.Host
	}
	if c.Database.Port == 0 {
		c.Database.Port = d.Database.Port
	}
	if c.Database.User == "" {
		c.Database.User = d.Database.User
	}
	if c.Database.Name == "" {
		c.Database.Name = d.Database.Name
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = d.Database.SSLMode
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = d.Database.MaxOpenConns
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = d.Database.ConnMaxIdleTime
	}
	if c.Database.ConnectTimeout == 0 {
		c.Database.ConnectTimeout = d.Database.ConnectTimeout
	}
}
