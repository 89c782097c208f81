package config

import "time"

// Config is the top-level configuration structure for supplydash.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	Tunnel     TunnelConfig     `yaml:"tunnel"`
	TokenStore TokenStoreConfig `yaml:"tokenStore"`
	Guest      GuestConfig      `yaml:"guest"`
	Database   DatabaseConfig   `yaml:"database"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host              string        `yaml:"host,omitempty"`              // Host to bind to (default: 0.0.0.0)
	Port              int           `yaml:"port,omitempty"`              // Port to listen on (default: 3000)
	StaticDir         string        `yaml:"staticDir,omitempty"`         // Directory served at / (empty disables)
	AllowedOrigin     string        `yaml:"allowedOrigin,omitempty"`     // Access-Control-Allow-Origin value (empty disables CORS)
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout,omitempty"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout,omitempty"`   // default: 15s
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

// OAuthConfig describes the external identity provider and the client
// credentials used for token exchange.
type OAuthConfig struct {
	// Host is the provider (and analytics tenant) host name, without scheme.
	Host          string `yaml:"host,omitempty"`
	ClientID      string `yaml:"clientId,omitempty"`
	ClientSecret  string `yaml:"clientSecret,omitempty"`
	TokenPath     string `yaml:"tokenPath,omitempty"`     // default: /oauth/token
	AuthorizePath string `yaml:"authorizePath,omitempty"` // default: /oauth/authorize
	// RedirectURI is used when a code exchange request does not carry one.
	RedirectURI string        `yaml:"redirectUri,omitempty"`
	Scopes      []string      `yaml:"scopes,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"` // default: 30s
	// ForceIPv4 restricts outbound dialing to IPv4.
	ForceIPv4          bool `yaml:"forceIPv4,omitempty"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify,omitempty"`
}

// TunnelConfig configures the WebSocket upgrade proxy.
type TunnelConfig struct {
	MountPrefix string `yaml:"mountPrefix,omitempty"` // default: /tunnel
	// AliasPrefixes are additional mount points served by the same proxy.
	AliasPrefixes []string `yaml:"aliasPrefixes,omitempty"`
	// UpstreamHost is the fixed analytics engine host. Defaults to OAuth.Host.
	UpstreamHost string `yaml:"upstreamHost,omitempty"`
	// UpstreamScheme is wss (default) or ws.
	UpstreamScheme string `yaml:"upstreamScheme,omitempty"`
	// TokenParams lists query parameters checked, in order, for the access token.
	TokenParams         []string      `yaml:"tokenParams,omitempty"`
	IntegrationIDParam  string        `yaml:"integrationIdParam,omitempty"`
	IntegrationIDHeader string        `yaml:"integrationIdHeader,omitempty"`
	DialTimeout         time.Duration `yaml:"dialTimeout,omitempty"` // default: 15s
	ForceIPv4           bool          `yaml:"forceIPv4,omitempty"`
	InsecureSkipVerify  bool          `yaml:"insecureSkipVerify,omitempty"`
}

// Token store backend types.
const (
	TokenStoreFile   = "file"
	TokenStoreEnv    = "env"
	TokenStoreRedis  = "redis"
	TokenStoreMemory = "memory"
)

// TokenStoreConfig selects the single authoritative refresh token backend.
type TokenStoreConfig struct {
	Type  string           `yaml:"type,omitempty"` // file (default), env, redis, memory
	File  FileStoreConfig  `yaml:"file,omitempty"`
	Env   EnvStoreConfig   `yaml:"env,omitempty"`
	Redis RedisStoreConfig `yaml:"redis,omitempty"`
}

// FileStoreConfig configures the file backend.
type FileStoreConfig struct {
	Path  string `yaml:"path,omitempty"`  // default: data/refresh_token
	Watch bool   `yaml:"watch,omitempty"` // log external edits
}

// EnvStoreConfig configures the read-only environment backend.
type EnvStoreConfig struct {
	Variable string `yaml:"variable,omitempty"` // default: SUPPLYDASH_REFRESH_TOKEN
}

// RedisStoreConfig configures the Redis backend.
type RedisStoreConfig struct {
	URL      string `yaml:"url,omitempty"` // redis://host:port/db, takes precedence over Address
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Key      string `yaml:"key,omitempty"` // default: supplydash:refresh_token
}

// GuestConfig configures unattended access backed by the stored refresh token.
type GuestConfig struct {
	Enabled             bool `yaml:"enabled"`
	CacheAccessTokens   bool `yaml:"cacheAccessTokens"`
	ClearOnInvalidGrant bool `yaml:"clearOnInvalidGrant"`
}

// DatabaseConfig configures the PostgreSQL connection for the sales data API.
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host,omitempty"`
	Port            int           `yaml:"port,omitempty"`
	User            string        `yaml:"user,omitempty"`
	Password        string        `yaml:"password,omitempty"`
	Name            string        `yaml:"name,omitempty"`
	SSLMode         string        `yaml:"sslMode,omitempty"`
	MaxOpenConns    int           `yaml:"maxOpenConns,omitempty"`
	ConnMaxIdleTime time.Duration `yaml:"connMaxIdleTime,omitempty"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout,omitempty"`
}
