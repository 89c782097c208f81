package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, context string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", context),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is one of the allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
		}
	}
	return nil
}

// ValidatePath checks that a mount prefix is absolute and not the root.
func ValidatePath(field, value string) error {
	if !strings.HasPrefix(value, "/") || value == "/" || strings.HasSuffix(value, "/") {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must start with '/', must not end with '/' and must not be '/'",
		}
	}
	return nil
}

// Validate checks the whole configuration and returns every problem found
// as ValidationErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(err error) {
		if ve, ok := err.(ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs.Add("server.port", "must be between 1 and 65535", c.Server.Port)
	}
	add(ValidateOneOf("logging.level", strings.ToLower(c.Logging.Level), []string{"debug", "info", "warn", "error"}))
	add(ValidateOneOf("logging.format", strings.ToLower(c.Logging.Format), []string{"text", "json"}))

	if strings.Contains(c.OAuth.Host, "://") || strings.Contains(c.OAuth.Host, "/") {
		errs.Add("oauth.host", "must be a bare host name without scheme or path", c.OAuth.Host)
	}
	if !strings.HasPrefix(c.OAuth.TokenPath, "/") {
		errs.Add("oauth.tokenPath", "must start with '/'", c.OAuth.TokenPath)
	}
	if !strings.HasPrefix(c.OAuth.AuthorizePath, "/") {
		errs.Add("oauth.authorizePath", "must start with '/'", c.OAuth.AuthorizePath)
	}
	if c.OAuth.RedirectURI != "" {
		if u, err := url.Parse(c.OAuth.RedirectURI); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add("oauth.redirectUri", "must be an absolute URL", c.OAuth.RedirectURI)
		}
	}
	if c.OAuth.Timeout <= 0 {
		errs.Add("oauth.timeout", "must be positive", c.OAuth.Timeout)
	}

	add(ValidatePath("tunnel.mountPrefix", c.Tunnel.MountPrefix))
	for i, p := range c.Tunnel.AliasPrefixes {
		add(ValidatePath(fmt.Sprintf("tunnel.aliasPrefixes[%d]", i), p))
	}
	switch host := c.Tunnel.UpstreamHost; {
	case strings.TrimSpace(host) == "":
		errs.Add("tunnel.upstreamHost", "is required (set it or oauth.host)")
	case strings.Contains(host, "://") || strings.Contains(host, "/"):
		errs.Add("tunnel.upstreamHost", "must be a bare host or host:port", host)
	}
	add(ValidateOneOf("tunnel.upstreamScheme", c.Tunnel.UpstreamScheme, []string{"wss", "ws"}))
	if len(c.Tunnel.TokenParams) == 0 {
		errs.Add("tunnel.tokenParams", "must list at least one query parameter")
	}
	if c.Tunnel.DialTimeout <= 0 {
		errs.Add("tunnel.dialTimeout", "must be positive", c.Tunnel.DialTimeout)
	}

	add(ValidateOneOf("tokenStore.type", c.TokenStore.Type,
		[]string{TokenStoreFile, TokenStoreEnv, TokenStoreRedis, TokenStoreMemory}))
	switch c.TokenStore.Type {
	case TokenStoreFile:
		add(ValidateRequired("tokenStore.file.path", c.TokenStore.File.Path, "the file token store"))
	case TokenStoreEnv:
		add(ValidateRequired("tokenStore.env.variable", c.TokenStore.Env.Variable, "the env token store"))
	case TokenStoreRedis:
		if c.TokenStore.Redis.URL == "" && c.TokenStore.Redis.Address == "" {
			errs.Add("tokenStore.redis", "url or address is required for the redis token store")
		}
		add(ValidateRequired("tokenStore.redis.key", c.TokenStore.Redis.Key, "the redis token store"))
	}

	if c.Database.Enabled {
		add(ValidateRequired("database.host", c.Database.Host, "the database"))
		add(ValidateRequired("database.name", c.Database.Name, "the database"))
		add(ValidateRequired("database.user", c.Database.User, "the database"))
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs.Add("database.port", "must be between 1 and 65535", c.Database.Port)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
