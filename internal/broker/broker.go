package broker

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

	"supplydash/internal/config"
	"supplydash/internal/tokenstore"
	"supplydash/pkg/excerpt"
	"supplydash/pkg/logging"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	// maxResponseBody bounds how much of a provider response is read.
	maxResponseBody = 1 << 20
)

// Credentials identify the OAuth client and the provider host. Empty fields
// fall back to the broker's configured defaults.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Host         string
}

// Broker performs token exchanges against the provider token endpoint.
type Broker struct {
	httpClient  *http.Client
	store       tokenstore.Store
	defaults    Credentials
	tokenPath   string
	redirectURI string
	now         func() time.Time
}

// Option configures a Broker.
type Option func(*Broker)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Broker) {
		b.httpClient = c
	}
}

// WithDefaults sets the credentials used when a request omits them. A
// non-empty default host also restricts which host requests may target.
func WithDefaults(c Credentials) Option {
	return func(b *Broker) {
		b.defaults = c
	}
}

// WithTokenPath overrides the token endpoint path.
func WithTokenPath(p string) Option {
	return func(b *Broker) {
		b.tokenPath = p
	}
}

// WithRedirectURI sets the redirect URI used when a code exchange omits one.
func WithRedirectURI(u string) Option {
	return func(b *Broker) {
		b.redirectURI = u
	}
}

// New creates a broker that persists refresh tokens to store. store may be
// nil, in which case nothing is persisted.
func New(store tokenstore.Store, opts ...Option) *Broker {
	b := &Broker{
		httpClient: &http.Client{Timeout: config.DefaultOAuthTimeout},
		store:      store,
		tokenPath:  config.DefaultTokenPath,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromConfig creates a broker from the oauth section of the configuration.
func NewFromConfig(cfg config.OAuthConfig, store tokenstore.Store) *Broker {
	return New(store,
		WithHTTPClient(NewHTTPClient(cfg.Timeout, cfg.ForceIPv4, cfg.InsecureSkipVerify)),
		WithDefaults(Credentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret, Host: cfg.Host}),
		WithTokenPath(cfg.TokenPath),
		WithRedirectURI(cfg.RedirectURI),
	)
}

// ExchangeCode trades an authorization code for tokens. When the provider
// issues a refresh token it is saved to the store before returning; a
// read-only store is tolerated and reported through Persisted=false.
func (b *Broker) ExchangeCode(ctx context.Context, creds Credentials, code, redirectURI string) (*TokenResult, error) {
	creds, err := b.resolve(grantAuthorizationCode, creds)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, configError(grantAuthorizationCode, "authorization code is required")
	}
	if redirectURI == "" {
		redirectURI = b.redirectURI
	}

	res, err := b.post(ctx, grantAuthorizationCode, creds, map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"code":          code,
		"grant_type":    grantAuthorizationCode,
		"redirect_uri":  redirectURI,
	})
	if err != nil {
		return nil, err
	}

	if res.RefreshToken != "" && b.store != nil {
		switch err := b.store.Save(ctx, res.RefreshToken); {
		case err == nil:
			res.Persisted = true
		case errors.Is(err, tokenstore.ErrReadOnly):
			logging.Warn("Broker", "Refresh token not persisted: %s is read-only", b.store.Describe())
		default:
			logging.Error("Broker", err, "Failed to persist refresh token to %s", b.store.Describe())
			return nil, &Error{Kind: KindPersist, Op: grantAuthorizationCode, Err: err}
		}
	}

	logging.Info("Broker", "Code exchange succeeded for client %s (refresh token issued: %t, persisted: %t)",
		logging.TruncateID(creds.ClientID), res.RefreshToken != "", res.Persisted)
	return res, nil
}

// ExchangeRefreshToken trades a refresh token for a new access token. It
// never writes to the store, even if the provider rotates the refresh token.
func (b *Broker) ExchangeRefreshToken(ctx context.Context, creds Credentials, refreshToken string) (*TokenResult, error) {
	creds, err := b.resolve(grantRefreshToken, creds)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, configError(grantRefreshToken, "refresh token is required")
	}

	res, err := b.post(ctx, grantRefreshToken, creds, map[string]string{
		"client_id":     creds.ClientID,
		"client_secret": creds.ClientSecret,
		"grant_type":    grantRefreshToken,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return nil, err
	}
	if res.RefreshToken != "" && res.RefreshToken != refreshToken {
		logging.Warn("Broker", "Provider rotated the refresh token; the stored token is kept")
	}
	logging.Debug("Broker", "Refresh exchange succeeded for client %s", logging.TruncateID(creds.ClientID))
	return res, nil
}

// AuthorizeURL returns the provider authorize endpoint for creds.
func (b *Broker) AuthorizeURL(creds Credentials, authorizePath string) (string, error) {
	creds, err := b.resolve("authorize", creds)
	if err != nil {
		return "", err
	}
	return "https://" + creds.Host + authorizePath, nil
}

// TokenURL returns the provider token endpoint for creds.
func (b *Broker) TokenURL(creds Credentials) (string, error) {
	creds, err := b.resolve("token", creds)
	if err != nil {
		return "", err
	}
	return b.tokenURL(creds.Host), nil
}

// Store returns the token store refresh tokens are persisted to.
func (b *Broker) Store() tokenstore.Store {
	return b.store
}

func (b *Broker) tokenURL(host string) string {
	return "https://" + host + b.tokenPath
}

func (b *Broker) resolve(op string, c Credentials) (Credentials, error) {
	if b.defaults.Host != "" && c.Host != "" && !strings.EqualFold(c.Host, b.defaults.Host) {
		return Credentials{}, configError(op, fmt.Sprintf("host %q is not allowed", c.Host))
	}
	if c.ClientID == "" {
		c.ClientID = b.defaults.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = b.defaults.ClientSecret
	}
	if c.Host == "" {
		c.Host = b.defaults.Host
	}

	var missing []string
	if c.ClientID == "" {
		missing = append(missing, "clientId")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "clientSecret")
	}
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if len(missing) > 0 {
		return Credentials{}, configError(op, "missing "+strings.Join(missing, ", "))
	}
	return c, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (b *Broker) post(ctx context.Context, op string, creds Credentials, body map[string]string) (*TokenResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL(creds.Host), bytes.NewReader(payload))
	if err != nil {
		return nil, configError(op, fmt.Sprintf("invalid token endpoint: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		logging.Warn("Broker", "Token endpoint %s unreachable: %v", creds.Host, err)
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		be := &Error{Kind: KindRejected, Op: op, StatusCode: resp.StatusCode, Body: raw}
		logging.Warn("Broker", "Provider rejected %s grant with status %d (%s): %s", op, resp.StatusCode, be.OAuthError(), excerpt.Bytes(raw, excerpt.DefaultLen))
		return nil, be
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return nil, &Error{Kind: KindMalformed, Op: op, StatusCode: resp.StatusCode, Body: raw, Err: err}
	}
	if tr.AccessToken == "" {
		return nil, &Error{Kind: KindMalformed, Op: op, StatusCode: resp.StatusCode, Body: raw, Message: "response has no access_token"}
	}

	return &TokenResult{
		AccessToken:      tr.AccessToken,
		TokenType:        tr.TokenType,
		ExpiresInSeconds: tr.ExpiresIn,
		RefreshToken:     tr.RefreshToken,
		Scope:            tr.Scope,
		IssuedAt:         b.now(),
	}, nil
}
