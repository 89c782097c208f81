package login

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) (*CallbackServer, string) {
	t.Helper()
	s := NewCallbackServer("127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	redirect, err := s.Start(ctx)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, redirect
}

func get(t *testing.T, u string) (int, string) {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestCallbackServer(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, redirect := startServer(t)
		assert.True(t, strings.HasPrefix(redirect, "http://localhost:"))
		assert.True(t, strings.HasSuffix(redirect, "/callback"))

		status, body := get(t, redirect+"?code=c1&state=s1")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, body, "Login complete")

		result, err := s.WaitForCallback(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &CallbackResult{Code: "c1", State: "s1"}, result)
	})

	t.Run("provider error", func(t *testing.T) {
		s, redirect := startServer(t)

		status, body := get(t, redirect+"?error=access_denied&error_description=%3Cb%3Eno%3C%2Fb%3E")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body, "access_denied")
		assert.Contains(t, body, "&lt;b&gt;no&lt;/b&gt;", "description is escaped")

		result, err := s.WaitForCallback(context.Background())
		require.NoError(t, err)
		assert.True(t, result.IsError())
	})

	t.Run("only the first callback counts", func(t *testing.T) {
		_, redirect := startServer(t)

		status, _ := get(t, redirect+"?code=c1&state=s1")
		assert.Equal(t, http.StatusOK, status)
		status, _ = get(t, redirect+"?code=c2&state=s1")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("wait honours context", func(t *testing.T) {
		s, _ := startServer(t)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := s.WaitForCallback(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("busy address", func(t *testing.T) {
		first, _ := startServer(t)
		addr := first.listener.Addr().String()
		_, err := NewCallbackServer(addr).Start(context.Background())
		assert.Error(t, err)
	})
}

// fakeBrowser follows the authorization URL by calling the redirect URI the
// way the provider would.
func fakeBrowser(t *testing.T, params func(state string) url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		require.NoError(t, err)
		q := u.Query()
		go func() {
			resp, err := http.Get(q.Get("redirect_uri") + "?" + params(q.Get("state")).Encode())
			if err == nil {
				resp.Body.Close()
			}
		}()
		return nil
	}
}

func TestFlowAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		params  func(state string) url.Values
		wantErr string
	}{
		{
			name:   "code returned",
			params: func(state string) url.Values { return url.Values{"code": {"c1"}, "state": {state}} },
		},
		{
			name:    "state mismatch",
			params:  func(string) url.Values { return url.Values{"code": {"c1"}, "state": {"forged"}} },
			wantErr: ErrStateMismatch.Error(),
		},
		{
			name:    "provider error",
			params:  func(string) url.Values { return url.Values{"error": {"access_denied"}} },
			wantErr: "access_denied",
		},
		{
			name:    "missing code",
			params:  func(state string) url.Values { return url.Values{"state": {state}} },
			wantErr: "authorization code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			flow, err := Start(ctx, "127.0.0.1:0")
			require.NoError(t, err)
			defer flow.Stop()

			var announced string
			flow.Announce = func(u string) { announced = u }
			flow.OpenBrowser = fakeBrowser(t, tt.params)

			authURL := AuthCodeURL("tenant.example.com", "/oauth/authorize", "cid", flow.RedirectURI(), []string{"user_default", "offline_access"}, "st-1")
			code, redirect, err := flow.Authorize(ctx, authURL, "st-1")
			assert.Equal(t, authURL, announced)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", code)
			assert.Equal(t, flow.RedirectURI(), redirect)
		})
	}
}

func TestAuthCodeURL(t *testing.T) {
	got := AuthCodeURL("tenant.example.com", "/oauth/authorize", "cid", "http://localhost:8085/callback", []string{"user_default", "offline_access"}, "xyz")

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "https://tenant.example.com/oauth/authorize", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "user_default offline_access", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "http://localhost:8085/callback", q.Get("redirect_uri"))
}

func TestBrowserCommand(t *testing.T) {
	tests := []struct {
		goos    string
		want    string
		wantErr bool
	}{
		{goos: "linux", want: "xdg-open"},
		{goos: "darwin", want: "open"},
		{goos: "windows", want: "rundll32"},
		{goos: "plan9", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "https://example.com")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Args[0])
			assert.Equal(t, "https://example.com", cmd.Args[len(cmd.Args)-1])
		})
	}
}
