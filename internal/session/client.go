package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"supplydash/pkg/logging"
)

// Status is a step of the connection lifecycle shown to the user.
type Status string

const (
	StatusConnecting     Status = "connecting"
	StatusAuthenticating Status = "authenticating"
	StatusConnected      Status = "connected"
	StatusFailed         Status = "failed"
)

// StatusFunc receives status changes. err is set for StatusFailed.
type StatusFunc func(status Status, err error)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		c.dialer = d
	}
}

// WithStatus registers a status callback.
func WithStatus(fn StatusFunc) ClientOption {
	return func(c *Client) {
		c.onStatus = fn
	}
}

// Client keeps at most one live Session.
type Client struct {
	resolver *Resolver
	dialer   *websocket.Dialer
	onStatus StatusFunc

	mu      sync.Mutex
	current *Session
}

// NewClient creates a client that resolves tokens with r.
func NewClient(r *Resolver, opts ...ClientOption) *Client {
	c := &Client{
		resolver: r,
		dialer:   websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the live session, or bootstraps a new one when there is
// none or the previous one has closed.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil && !c.current.closed() {
		return c.current, nil
	}
	c.current = nil

	c.status(StatusConnecting, nil)
	s, err := c.bootstrap(ctx)
	if err != nil {
		c.status(StatusFailed, err)
		return nil, err
	}
	c.current = s
	c.status(StatusConnected, nil)
	return s, nil
}

// Close closes the live session, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

func (c *Client) bootstrap(ctx context.Context) (*Session, error) {
	c.status(StatusAuthenticating, nil)
	res, err := c.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	conn, err := c.dial(ctx, res)
	if isUnauthorized(err) {
		// The token expired or was revoked before its advertised lifetime.
		logging.Info("Session", "Tunnel rejected %s token, resolving again", res.Source)
		c.resolver.Cache().Clear()
		if res, err = c.resolver.Resolve(ctx); err != nil {
			return nil, err
		}
		conn, err = c.dial(ctx, res)
	}
	if err != nil {
		return nil, err
	}

	s := newSession(conn)
	if docID := c.resolver.opts.DocID; docID != "" {
		doc, err := s.OpenDoc(ctx, docID)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open document %s: %w", docID, err)
		}
		s.doc = doc
		logging.Info("Session", "Opened document %s", docID)
	}
	return s, nil
}

type dialError struct {
	status int
	err    error
}

func (e *dialError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("tunnel handshake failed with status %d: %v", e.status, e.err)
	}
	return fmt.Sprintf("tunnel dial failed: %v", e.err)
}

func (e *dialError) Unwrap() error {
	return e.err
}

func isUnauthorized(err error) bool {
	var de *dialError
	return errors.As(err, &de) && de.status == http.StatusUnauthorized
}

func (c *Client) dial(ctx context.Context, res Resolution) (*websocket.Conn, error) {
	target, err := c.tunnelURL(res)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err != nil {
		de := &dialError{err: err}
		if resp != nil {
			de.status = resp.StatusCode
			resp.Body.Close()
		}
		return nil, de
	}
	return conn, nil
}

// tunnelURL builds ws(s)://<backend><prefix>/app/<doc>?access_token=...
func (c *Client) tunnelURL(res Resolution) (string, error) {
	opts := c.resolver.opts
	u, err := url.Parse(opts.BackendURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid backend url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + opts.TunnelPrefix + "/app/" + opts.DocID

	q := url.Values{}
	q.Set("access_token", res.Token.Value())
	if opts.ClientID != "" {
		q.Set(opts.IntegrationIDParam, opts.ClientID)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) status(s Status, err error) {
	if err != nil {
		logging.Debug("Session", "Status %s: %v", s, err)
	} else {
		logging.Debug("Session", "Status %s", s)
	}
	if c.onStatus != nil {
		c.onStatus(s, err)
	}
}
