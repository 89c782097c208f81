package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/internal/tokenstore"
)

// provider is a stub token endpoint that records what it receives.
type provider struct {
	srv      *httptest.Server
	calls    atomic.Int32
	lastBody atomic.Value
	handler  func(w http.ResponseWriter, body map[string]string)
}

func newProvider(t *testing.T, handler func(w http.ResponseWriter, body map[string]string)) *provider {
	t.Helper()
	p := &provider{handler: handler}
	p.srv = httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.calls.Add(1)
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p.lastBody.Store(body)
		p.handler(w, body)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *provider) host() string {
	return strings.TrimPrefix(p.srv.URL, "https://")
}

func (p *provider) body() map[string]string {
	v, _ := p.lastBody.Load().(map[string]string)
	return v
}

func (p *provider) broker(store tokenstore.Store, opts ...Option) *Broker {
	opts = append([]Option{
		WithHTTPClient(p.srv.Client()),
		WithDefaults(Credentials{ClientID: "cid", ClientSecret: "secret", Host: p.host()}),
		WithRedirectURI("http://localhost:3000/"),
	}, opts...)
	return New(store, opts...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// failingStore fails every Save with a fixed error.
type failingStore struct {
	tokenstore.Store
	err error
}

func (f failingStore) Save(context.Context, string) error { return f.err }

func TestExchangeCode(t *testing.T) {
	t.Run("persists issued refresh token", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, body map[string]string) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"access_token": "A1", "token_type": "Bearer", "expires_in": 3600, "refresh_token": "R1",
			})
		})
		store := tokenstore.NewMemoryStore()

		res, err := p.broker(store).ExchangeCode(context.Background(), Credentials{}, "c1", "https://app.example.com/cb")
		require.NoError(t, err)

		assert.Equal(t, "A1", res.AccessToken)
		assert.Equal(t, "Bearer", res.TokenType)
		assert.Equal(t, int64(3600), res.ExpiresInSeconds)
		assert.Equal(t, "R1", res.RefreshToken)
		assert.True(t, res.Persisted)

		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "R1", stored)

		assert.Equal(t, map[string]string{
			"client_id":     "cid",
			"client_secret": "secret",
			"code":          "c1",
			"grant_type":    "authorization_code",
			"redirect_uri":  "https://app.example.com/cb",
		}, p.body())
		assert.Equal(t, int32(1), p.calls.Load())
	})

	t.Run("without refresh token the store is untouched", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "A1", "token_type": "Bearer", "expires_in": 60})
		})
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), "OLD"))

		res, err := p.broker(store).ExchangeCode(context.Background(), Credentials{}, "c1", "")
		require.NoError(t, err)
		assert.False(t, res.Persisted)
		assert.Equal(t, "http://localhost:3000/", p.body()["redirect_uri"], "falls back to configured redirect")

		stored, _ := store.Load(context.Background())
		assert.Equal(t, "OLD", stored)
	})

	t.Run("invalid_grant is forwarded verbatim and store not mutated", func(t *testing.T) {
		const providerBody = `{"error":"invalid_grant"}`
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(providerBody))
		})
		store := tokenstore.NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), "KEEP"))

		_, err := p.broker(store).ExchangeCode(context.Background(), Credentials{}, "bad", "")
		require.Error(t, err)

		var be *Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, KindRejected, be.Kind)
		assert.Equal(t, http.StatusBadRequest, be.StatusCode)
		assert.Equal(t, providerBody, string(be.Body))
		assert.Equal(t, "invalid_grant", be.OAuthError())

		stored, _ := store.Load(context.Background())
		assert.Equal(t, "KEEP", stored)
	})

	t.Run("missing credentials fail before any call", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			writeJSON(w, http.StatusOK, map[string]string{"access_token": "A"})
		})
		b := New(nil, WithHTTPClient(p.srv.Client()))

		_, err := b.ExchangeCode(context.Background(), Credentials{Host: p.host()}, "c1", "")
		require.Error(t, err)
		assert.True(t, IsKind(err, KindConfiguration))
		assert.Contains(t, err.Error(), "clientId, clientSecret")
		assert.Equal(t, int32(0), p.calls.Load())
	})

	t.Run("foreign host is refused", func(t *testing.T) {
		p := newProvider(t, nil)
		_, err := p.broker(nil).ExchangeCode(context.Background(), Credentials{Host: "evil.example.com"}, "c1", "")
		assert.True(t, IsKind(err, KindConfiguration))
		assert.Equal(t, int32(0), p.calls.Load())
	})

	t.Run("empty code", func(t *testing.T) {
		p := newProvider(t, nil)
		_, err := p.broker(nil).ExchangeCode(context.Background(), Credentials{}, " ", "")
		assert.True(t, IsKind(err, KindConfiguration))
	})

	t.Run("malformed success body", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		})
		_, err := p.broker(nil).ExchangeCode(context.Background(), Credentials{}, "c1", "")

		var be *Error
		require.True(t, errors.As(err, &be))
		assert.Equal(t, KindMalformed, be.Kind)
		assert.Equal(t, "<html>maintenance</html>", string(be.Body))
	})

	t.Run("missing access token is malformed", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			writeJSON(w, http.StatusOK, map[string]string{"token_type": "Bearer"})
		})
		_, err := p.broker(nil).ExchangeCode(context.Background(), Credentials{}, "c1", "")
		assert.True(t, IsKind(err, KindMalformed))
	})

	t.Run("persist failure", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "A", "refresh_token": "R"})
		})
		store := failingStore{Store: tokenstore.NewMemoryStore(), err: errors.New("disk full")}

		_, err := p.broker(store).ExchangeCode(context.Background(), Credentials{}, "c1", "")
		assert.True(t, IsKind(err, KindPersist))
	})

	t.Run("read-only store is not fatal", func(t *testing.T) {
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"access_token": "A", "refresh_token": "R"})
		})
		store := tokenstore.NewEnvStore("UNSET_FOR_TEST", func(string) (string, bool) { return "", false })

		res, err := p.broker(store).ExchangeCode(context.Background(), Credentials{}, "c1", "")
		require.NoError(t, err)
		assert.False(t, res.Persisted)
		assert.Equal(t, "R", res.RefreshToken)
	})
}

func TestExchangeNetworkErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		p := newProvider(t, nil)
		host := p.host()
		p.srv.Close()

		b := New(nil, WithHTTPClient(p.srv.Client()), WithDefaults(Credentials{ClientID: "c", ClientSecret: "s", Host: host}))
		_, err := b.ExchangeRefreshToken(context.Background(), Credentials{}, "R")
		assert.True(t, IsKind(err, KindNetwork))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
			<-release
		})
		defer close(release)

		client := p.srv.Client()
		client.Timeout = 50 * time.Millisecond
		_, err := p.broker(nil, WithHTTPClient(client)).ExchangeRefreshToken(context.Background(), Credentials{}, "R")
		assert.True(t, IsKind(err, KindNetwork))
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, body map[string]string) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token": "A2", "token_type": "Bearer", "expires_in": 300, "refresh_token": "ROTATED",
		})
	})
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "R1"))

	res, err := p.broker(store).ExchangeRefreshToken(context.Background(), Credentials{}, "R1")
	require.NoError(t, err)
	assert.Equal(t, "A2", res.AccessToken)
	assert.False(t, res.Persisted)

	assert.Equal(t, "refresh_token", p.body()["grant_type"])
	assert.Equal(t, "R1", p.body()["refresh_token"])

	stored, _ := store.Load(context.Background())
	assert.Equal(t, "R1", stored, "refresh grant never writes to the store")
}

func TestExchangeRefreshToken_InvalidGrant(t *testing.T) {
	const providerBody = `{"error":"invalid_grant","error_description":"refresh token expired"}`
	p := newProvider(t, func(w http.ResponseWriter, _ map[string]string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(providerBody))
	})
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "KEEP"))

	_, err := p.broker(store).ExchangeRefreshToken(context.Background(), Credentials{}, "expired-token")
	require.Error(t, err)

	var be *Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindRejected, be.Kind)
	assert.Equal(t, http.StatusBadRequest, be.StatusCode)
	assert.Equal(t, providerBody, string(be.Body))
	assert.Equal(t, "invalid_grant", be.OAuthError())
	assert.Equal(t, "expired-token", p.body()["refresh_token"])

	stored, _ := store.Load(context.Background())
	assert.Equal(t, "KEEP", stored, "a rejected refresh grant leaves the store alone")
}

func TestTokenResult(t *testing.T) {
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	res := &TokenResult{AccessToken: "A", TokenType: "Bearer", ExpiresInSeconds: 60, Scope: "user_default", IssuedAt: issued}

	tok := res.ToOAuth2Token()
	assert.Equal(t, "A", tok.AccessToken)
	assert.Equal(t, issued.Add(time.Minute), tok.Expiry)
	assert.Equal(t, "user_default", tok.Extra("scope"))

	for _, attr := range res.LogValue().Group() {
		if attr.Key == "access_token" {
			assert.Equal(t, "[REDACTED]", attr.Value.String())
		}
	}
}

func TestRedactedToken(t *testing.T) {
	tok := NewRedactedToken("secret-value")

	assert.Equal(t, "secret-value", tok.Value())
	assert.Equal(t, "[REDACTED]", tok.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", tok))
	assert.NotContains(t, fmt.Sprintf("%#v", tok), "secret")

	b, err := json.Marshal(struct{ T RedactedToken }{tok})
	require.NoError(t, err)
	assert.Equal(t, `{"T":"[REDACTED]"}`, string(b))

	var buf bytes.Buffer
	slog.New(slog.NewTextHandler(&buf, nil)).Info("guest token issued", "token", tok)
	assert.Contains(t, buf.String(), "token=[REDACTED]")
	assert.NotContains(t, buf.String(), "secret-value")

	assert.True(t, NewRedactedToken("").IsEmpty())
}
