package session

import (
	"sync"
	"time"

	"supplydash/internal/broker"
)

// expirySkew is subtracted from the lifetime so a token is not used in the
// last seconds before the provider would reject it.
const expirySkew = 10 * time.Second

// TokenCache holds the access token of the current session in memory only.
// It is never written to disk.
type TokenCache struct {
	mu     sync.Mutex
	token  broker.RedactedToken
	expiry time.Time
	now    func() time.Time
}

// NewTokenCache returns an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Get returns the cached token if it is still usable.
func (c *TokenCache) Get() (broker.RedactedToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token.IsEmpty() {
		return broker.RedactedToken{}, false
	}
	if !c.expiry.IsZero() && !c.now().Before(c.expiry) {
		c.token = broker.RedactedToken{}
		return broker.RedactedToken{}, false
	}
	return c.token, true
}

// Set stores token. A non-positive lifetime means the expiry is unknown and
// the token is kept until cleared.
func (c *TokenCache) Set(token string, expiresIn time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = broker.NewRedactedToken(token)
	c.expiry = time.Time{}
	if expiresIn > 0 {
		c.expiry = c.now().Add(expiresIn - expirySkew)
	}
}

// Clear drops the cached token.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = broker.RedactedToken{}
	c.expiry = time.Time{}
}
