package broker

import (
	"log/slog"
	"time"

	"golang.org/x/oauth2"
)

const redacted = "[REDACTED]"

// RedactedToken carries an access token through code that logs or prints
// values. Only Value exposes the token.
type RedactedToken struct{ value string }

func NewRedactedToken(value string) RedactedToken { return RedactedToken{value: value} }

// Value returns the raw token for use on the wire.
func (t RedactedToken) Value() string { return t.value }

func (t RedactedToken) IsEmpty() bool { return t.value == "" }

func (t RedactedToken) String() string   { return redacted }
func (t RedactedToken) GoString() string { return "broker.RedactedToken(" + redacted + ")" }

func (t RedactedToken) LogValue() slog.Value { return slog.StringValue(redacted) }

func (t RedactedToken) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// TokenResult is a successful token endpoint response.
type TokenResult struct {
	AccessToken      string
	TokenType        string
	ExpiresInSeconds int64
	// RefreshToken is only set for the code exchange.
	RefreshToken string
	Scope        string
	// Persisted is true when RefreshToken was written to the token store.
	Persisted bool
	// IssuedAt is when the response was received.
	IssuedAt time.Time
}

// ToOAuth2Token converts the result for use with golang.org/x/oauth2 helpers.
func (r *TokenResult) ToOAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresInSeconds,
	}
	if r.ExpiresInSeconds > 0 {
		issued := r.IssuedAt
		if issued.IsZero() {
			issued = time.Now()
		}
		tok.Expiry = issued.Add(time.Duration(r.ExpiresInSeconds) * time.Second)
	}
	if r.Scope != "" {
		tok = tok.WithExtra(map[string]interface{}{"scope": r.Scope})
	}
	return tok
}

// LogValue keeps token values out of structured logs.
func (r *TokenResult) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("access_token", NewRedactedToken(r.AccessToken)),
		slog.String("token_type", r.TokenType),
		slog.Int64("expires_in", r.ExpiresInSeconds),
		slog.Bool("has_refresh_token", r.RefreshToken != ""),
		slog.Bool("persisted", r.Persisted),
	)
}

func (r *TokenResult) clone() *TokenResult {
	c := *r
	return &c
}
