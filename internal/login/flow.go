package login

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"

	"supplydash/pkg/logging"
)

// ErrStateMismatch is returned when the callback carries a different state
// than the authorization request.
var ErrStateMismatch = errors.New("login: state mismatch")

// AuthCodeURL builds the provider authorization URL.
func AuthCodeURL(host, authorizePath, clientID, redirectURI string, scopes []string, state string) string {
	cfg := oauth2.Config{
		ClientID:    clientID,
		Endpoint:    oauth2.Endpoint{AuthURL: (&url.URL{Scheme: "https", Host: host, Path: authorizePath}).String()},
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
	return cfg.AuthCodeURL(state)
}

// Flow is one interactive login: a started callback server plus the browser
// hand-off.
type Flow struct {
	server *CallbackServer

	// OpenBrowser is called with the authorization URL. It defaults to
	// OpenBrowser; a failure is not fatal since the URL is also announced
	// through Announce.
	OpenBrowser func(url string) error

	// Announce is told the URL so it can be shown to the user.
	Announce func(url string)
}

// Start starts the callback server on addr.
func Start(ctx context.Context, addr string) (*Flow, error) {
	server := NewCallbackServer(addr)
	if _, err := server.Start(ctx); err != nil {
		return nil, err
	}
	return &Flow{server: server, OpenBrowser: OpenBrowser}, nil
}

// RedirectURI is the URI the provider must redirect to.
func (f *Flow) RedirectURI() string {
	return f.server.RedirectURI()
}

// Authorize opens authURL, waits for the callback and checks state. It
// returns the authorization code and the redirect URI it was issued for.
func (f *Flow) Authorize(ctx context.Context, authURL, state string) (string, string, error) {
	if f.Announce != nil {
		f.Announce(authURL)
	}
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			logging.Warn("Login", "Could not open browser: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, CallbackTimeout)
	defer cancel()

	result, err := f.server.WaitForCallback(ctx)
	if err != nil {
		return "", "", fmt.Errorf("waiting for login callback: %w", err)
	}
	if result.IsError() {
		if result.ErrorDescription != "" {
			return "", "", fmt.Errorf("provider returned %s: %s", result.Error, result.ErrorDescription)
		}
		return "", "", fmt.Errorf("provider returned %s", result.Error)
	}
	if result.State != state {
		return "", "", ErrStateMismatch
	}
	if result.Code == "" {
		return "", "", errors.New("callback did not include an authorization code")
	}
	return result.Code, f.RedirectURI(), nil
}

// Stop shuts down the callback server.
func (f *Flow) Stop() {
	f.server.Stop()
}
