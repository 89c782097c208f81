package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"supplydash/internal/broker"
	"supplydash/internal/config"
	"supplydash/internal/login"
	"supplydash/pkg/logging"
)

// Source says where a resolved token came from.
type Source int

const (
	SourceCache Source = iota
	SourceGuest
	SourceInteractive
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceGuest:
		return "guest"
	case SourceInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of Resolver.Resolve.
type Resolution struct {
	Token  broker.RedactedToken
	Source Source
}

// Authorizer runs the interactive part of the owner login. It must send the
// user to authURL, wait for the redirect and check that it carries state.
type Authorizer interface {
	Authorize(ctx context.Context, authURL, state string) (code, redirectURI string, err error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, authURL, state string) (string, string, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, authURL, state string) (string, string, error) {
	return f(ctx, authURL, state)
}

// Options configure a Resolver and the Client built on it.
type Options struct {
	// BackendURL is the supplydash server, e.g. http://localhost:3000.
	BackendURL string
	// AuthPrefix is where the token and guest routes live. Default /api/auth.
	AuthPrefix string
	// TunnelPrefix is the proxy mount point. Default /tunnel.
	TunnelPrefix string

	// DocID is the engine document opened by every new session.
	DocID string

	// Credentials sent to the backend. Empty fields fall back to the
	// backend's own configuration.
	ClientID     string
	ClientSecret string
	Host         string

	// Used to build the interactive authorization URL.
	AuthorizePath string
	RedirectURI   string
	Scopes        []string

	// IntegrationIDParam carries ClientID on the tunnel URL.
	IntegrationIDParam string

	// AllowInteractive enables step 3 of the resolution. When false the
	// resolver fails closed with broker.ErrNoGuestSession.
	AllowInteractive bool

	HTTPClient *http.Client
	Authorizer Authorizer
}

func (o *Options) setDefaults() {
	o.BackendURL = strings.TrimRight(o.BackendURL, "/")
	if o.AuthPrefix == "" {
		o.AuthPrefix = "/api/auth"
	}
	if o.TunnelPrefix == "" {
		o.TunnelPrefix = config.DefaultMountPrefix
	}
	if o.AuthorizePath == "" {
		o.AuthorizePath = config.DefaultAuthorizePath
	}
	if len(o.Scopes) == 0 {
		o.Scopes = config.DefaultScopes
	}
	if o.IntegrationIDParam == "" {
		o.IntegrationIDParam = config.DefaultIntegrationIDParam
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: config.DefaultOAuthTimeout}
	}
}

// Resolver obtains access tokens. It is safe for concurrent use, but
// callers normally go through Client, which serializes bootstraps.
type Resolver struct {
	opts  Options
	cache *TokenCache
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(opts Options) *Resolver {
	opts.setDefaults()
	return &Resolver{opts: opts, cache: NewTokenCache()}
}

// Cache exposes the token cache, mainly so callers can clear it.
func (r *Resolver) Cache() *TokenCache {
	return r.cache
}

// Resolve returns an access token from the first source that has one.
func (r *Resolver) Resolve(ctx context.Context) (Resolution, error) {
	if tok, ok := r.cache.Get(); ok {
		logging.Debug("Session", "Using cached access token")
		return Resolution{Token: tok, Source: SourceCache}, nil
	}

	tok, err := r.guest(ctx)
	switch {
	case err == nil:
		logging.Info("Session", "Guest access granted")
		return Resolution{Token: tok, Source: SourceGuest}, nil
	case !errors.Is(err, broker.ErrNoGuestSession):
		return Resolution{}, err
	}

	if !r.opts.AllowInteractive {
		logging.Info("Session", "No guest session and interactive login is disabled")
		return Resolution{}, broker.ErrNoGuestSession
	}
	logging.Info("Session", "No guest session found, owner login required")

	tok, err = r.interactive(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Token: tok, Source: SourceInteractive}, nil
}

// AuthCodeURL builds the provider authorization URL for state.
func (r *Resolver) AuthCodeURL(state string) string {
	o := r.opts
	return login.AuthCodeURL(o.Host, o.AuthorizePath, o.ClientID, o.RedirectURI, o.Scopes, state)
}

type credentialsBody struct {
	Code         string `json:"code,omitempty"`
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
	Host         string `json:"host,omitempty"`
	RedirectURI  string `json:"redirectUri,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (r *Resolver) guest(ctx context.Context) (broker.RedactedToken, error) {
	body := credentialsBody{ClientID: r.opts.ClientID, ClientSecret: r.opts.ClientSecret, Host: r.opts.Host}
	tok, err := r.post(ctx, "guest login", "/guest", body)
	var be *BackendError
	if errors.As(err, &be) && be.StatusCode == http.StatusNotFound {
		return broker.RedactedToken{}, broker.ErrNoGuestSession
	}
	return tok, err
}

func (r *Resolver) interactive(ctx context.Context) (broker.RedactedToken, error) {
	state := uuid.NewString()
	authURL := r.AuthCodeURL(state)
	if r.opts.Authorizer == nil {
		return broker.RedactedToken{}, &InteractiveLoginError{AuthURL: authURL, State: state}
	}

	code, redirectURI, err := r.opts.Authorizer.Authorize(ctx, authURL, state)
	if err != nil {
		return broker.RedactedToken{}, fmt.Errorf("authorization failed: %w", err)
	}
	if redirectURI == "" {
		redirectURI = r.opts.RedirectURI
	}

	body := credentialsBody{
		Code:         code,
		ClientID:     r.opts.ClientID,
		ClientSecret: r.opts.ClientSecret,
		Host:         r.opts.Host,
		RedirectURI:  redirectURI,
	}
	return r.post(ctx, "code exchange", "/token", body)
}

func (r *Resolver) post(ctx context.Context, op, path string, body credentialsBody) (broker.RedactedToken, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return broker.RedactedToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.BackendURL+r.opts.AuthPrefix+path, bytes.NewReader(payload))
	if err != nil {
		return broker.RedactedToken{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return broker.RedactedToken{}, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return broker.RedactedToken{}, fmt.Errorf("%s: reading response: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return broker.RedactedToken{}, &BackendError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil || tr.AccessToken == "" {
		return broker.RedactedToken{}, fmt.Errorf("%s: response has no access token", op)
	}
	r.cache.Set(tr.AccessToken, time.Duration(tr.ExpiresInSeconds)*time.Second)
	return broker.NewRedactedToken(tr.AccessToken), nil
}
