package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"supplydash/internal/config"
	"supplydash/internal/tokenstore"
	"supplydash/pkg/logging"
)

// guestCacheMargin is subtracted from expires_in so cached access tokens are
// handed out with some life left in them.
const guestCacheMargin = 30 * time.Second

// Guest issues access tokens to anonymous visitors using the refresh token
// stored by a previous owner login.
type Guest struct {
	broker              *Broker
	store               tokenstore.Store
	group               singleflight.Group
	cache               *ttlcache.Cache[string, *TokenResult]
	clearOnInvalidGrant bool
	closeOnce           sync.Once
}

// GuestOption configures a Guest.
type GuestOption func(*Guest)

// WithAccessTokenCache enables or disables caching of issued access tokens.
func WithAccessTokenCache(enabled bool) GuestOption {
	return func(g *Guest) {
		if !enabled {
			g.cache = nil
		}
	}
}

// WithClearOnInvalidGrant controls whether a refresh token the provider
// reports as invalid_grant is removed from the store.
func WithClearOnInvalidGrant(enabled bool) GuestOption {
	return func(g *Guest) {
		g.clearOnInvalidGrant = enabled
	}
}

// NewGuest creates a guest login service. Call Close to stop the cache
// janitor.
func NewGuest(b *Broker, opts ...GuestOption) *Guest {
	g := &Guest{
		broker:              b,
		store:               b.Store(),
		cache:               ttlcache.New[string, *TokenResult](ttlcache.WithDisableTouchOnHit[string, *TokenResult]()),
		clearOnInvalidGrant: true,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache != nil {
		go g.cache.Start()
	}
	return g
}

// Close stops background cache maintenance.
func (g *Guest) Close() {
	if g.cache != nil {
		g.closeOnce.Do(g.cache.Stop)
	}
}

// Invalidate drops cached access tokens, e.g. after the stored refresh token
// changed.
func (g *Guest) Invalidate() {
	if g.cache != nil {
		g.cache.DeleteAll()
	}
}

// Login returns an access token for a guest. Without a stored refresh token
// it returns ErrNoGuestSession and makes no outbound call. Concurrent logins
// for the same client share one provider request. The returned result never
// carries the refresh token.
func (g *Guest) Login(ctx context.Context, creds Credentials) (*TokenResult, error) {
	if g.store == nil {
		return nil, ErrNoGuestSession
	}

	key := creds.ClientID + "@" + creds.Host
	if g.cache != nil {
		if item := g.cache.Get(key); item != nil {
			logging.Debug("Guest", "Serving cached guest access token")
			return item.Value().clone(), nil
		}
	}

	// The shared exchange must outlive any single caller; each caller only
	// stops waiting when its own context ends.
	ch := g.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := g.flightContext(ctx)
		defer cancel()
		return g.login(fctx, creds, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		if r.Shared {
			logging.Debug("Guest", "Guest login coalesced with a concurrent request")
		}
		return r.Val.(*TokenResult).clone(), nil
	}
}

func (g *Guest) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := g.broker.httpClient.Timeout
	if timeout <= 0 {
		timeout = config.DefaultOAuthTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (g *Guest) login(ctx context.Context, creds Credentials, key string) (*TokenResult, error) {
	refreshToken, err := g.store.Load(ctx)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return nil, ErrNoGuestSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	res, err := g.broker.ExchangeRefreshToken(ctx, creds, refreshToken)
	if err != nil {
		g.maybeClear(ctx, refreshToken, err)
		return nil, err
	}

	res.RefreshToken = ""
	res.Persisted = false

	if g.cache != nil && res.ExpiresInSeconds > 0 {
		if ttl := time.Duration(res.ExpiresInSeconds)*time.Second - guestCacheMargin; ttl > 0 {
			g.cache.Set(key, res.clone(), ttl)
		}
	}
	return res, nil
}

// maybeClear removes a refresh token the provider no longer accepts so the
// next visitor is sent to the interactive login instead of failing forever.
// A token saved by an owner login while the exchange was in flight is kept.
func (g *Guest) maybeClear(ctx context.Context, rejected string, err error) {
	if !g.clearOnInvalidGrant {
		return
	}
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindRejected || be.OAuthError() != "invalid_grant" {
		return
	}

	g.Invalidate()
	current, lerr := g.store.Load(ctx)
	if lerr != nil {
		return
	}
	if current != rejected {
		logging.Info("Guest", "Refresh token in %s changed since it was rejected, keeping it", g.store.Describe())
		return
	}
	switch cerr := g.store.Clear(ctx); {
	case cerr == nil:
		logging.Warn("Guest", "Stored refresh token rejected as invalid_grant and cleared from %s", g.store.Describe())
	case errors.Is(cerr, tokenstore.ErrReadOnly):
		logging.Warn("Guest", "Stored refresh token rejected as invalid_grant; %s is read-only and was not cleared", g.store.Describe())
	default:
		logging.Error("Guest", cerr, "Failed to clear rejected refresh token from %s", g.store.Describe())
	}
}
