package proxy

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"supplydash/internal/config"
	"supplydash/pkg/logging"
)

const (
	// maxErrorDrain bounds how much of a non-101 upstream body is read
	// before the upstream connection is closed.
	maxErrorDrain = 64 << 10
	drainTimeout  = 2 * time.Second
)

// Dialer opens the TCP connection to the upstream host. *net.Dialer
// satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Proxy.
type Options struct {
	// Prefixes are the mount points the proxy serves. The first matching
	// prefix is stripped from the request path.
	Prefixes []string
	// UpstreamHost is host or host:port of the engine.
	UpstreamHost string
	// UpstreamScheme is "wss" or "ws".
	UpstreamScheme      string
	TokenParams         []string
	IntegrationIDParam  string
	IntegrationIDHeader string
	// DialTimeout bounds dial, TLS and the upstream handshake together.
	DialTimeout        time.Duration
	ForceIPv4          bool
	InsecureSkipVerify bool
	// Dialer defaults to a *net.Dialer.
	Dialer Dialer
	// OnUpstreamStatus, if set, is called with the status of every upstream
	// handshake that did not switch protocols.
	OnUpstreamStatus func(status int)
}

// Stats are cumulative proxy counters.
type Stats struct {
	Active   int64 `json:"active"`
	Total    int64 `json:"total"`
	Rejected int64 `json:"rejected"`
}

// Proxy is an http.Handler that tunnels WebSocket upgrades upstream.
type Proxy struct {
	opts     Options
	prefixes []string

	active   atomic.Int64
	total    atomic.Int64
	rejected atomic.Int64
}

// New creates a proxy. Missing options get the configuration defaults.
func New(opts Options) *Proxy {
	if opts.UpstreamScheme == "" {
		opts.UpstreamScheme = config.DefaultUpstreamScheme
	}
	if len(opts.TokenParams) == 0 {
		opts.TokenParams = config.DefaultTokenParams
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = config.DefaultDialTimeout
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{KeepAlive: 30 * time.Second}
	}
	if len(opts.Prefixes) == 0 {
		opts.Prefixes = []string{config.DefaultMountPrefix}
	}

	prefixes := append([]string(nil), opts.Prefixes...)
	// longest first so /tunnel/v2 wins over /tunnel
	sort.Slice(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })

	return &Proxy{opts: opts, prefixes: prefixes}
}

// OptionsFromConfig maps the tunnel configuration onto Options.
func OptionsFromConfig(cfg config.TunnelConfig) Options {
	return Options{
		Prefixes:            append([]string{cfg.MountPrefix}, cfg.AliasPrefixes...),
		UpstreamHost:        cfg.UpstreamHost,
		UpstreamScheme:      cfg.UpstreamScheme,
		TokenParams:         cfg.TokenParams,
		IntegrationIDParam:  cfg.IntegrationIDParam,
		IntegrationIDHeader: cfg.IntegrationIDHeader,
		DialTimeout:         cfg.DialTimeout,
		ForceIPv4:           cfg.ForceIPv4,
		InsecureSkipVerify:  cfg.InsecureSkipVerify,
	}
}

// Prefixes returns the mount points in match order.
func (p *Proxy) Prefixes() []string {
	return append([]string(nil), p.prefixes...)
}

// Stats returns a snapshot of the counters.
func (p *Proxy) Stats() Stats {
	return Stats{
		Active:   p.active.Load(),
		Total:    p.total.Load(),
		Rejected: p.rejected.Load(),
	}
}

// Matches reports whether path is under one of the proxy's prefixes.
func (p *Proxy) Matches(path string) bool {
	_, ok := p.stripPrefix(path)
	return ok
}

func (p *Proxy) stripPrefix(path string) (string, bool) {
	for _, prefix := range p.prefixes {
		if path == prefix {
			return "/", true
		}
		if strings.HasPrefix(path, prefix+"/") {
			return path[len(prefix):], true
		}
	}
	return "", false
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	short := logging.TruncateID(id)

	if !IsUpgradeRequest(r) {
		p.rejected.Add(1)
		logging.Debug("Proxy", "[%s] %s %s is not a websocket upgrade, closing", short, r.Method, r.URL.Path)
		CloseConnection(w)
		return
	}

	path, ok := p.stripPrefix(r.URL.EscapedPath())
	if !ok {
		p.rejected.Add(1)
		CloseConnection(w)
		return
	}

	if p.opts.UpstreamHost == "" {
		p.rejected.Add(1)
		logging.Warn("Proxy", "[%s] Upgrade for %s rejected: no upstream host configured", short, path)
		writeStatus(w, http.StatusBadGateway)
		return
	}

	query := r.URL.Query()
	token := p.token(query)
	if token == "" {
		p.rejected.Add(1)
		logging.Info("Proxy", "[%s] Upgrade for %s rejected: no access token", short, path)
		writeStatus(w, http.StatusUnauthorized)
		return
	}

	decoded, err := url.PathUnescape(path)
	if err != nil {
		p.rejected.Add(1)
		writeStatus(w, http.StatusBadRequest)
		return
	}

	target := &url.URL{Path: decoded, RawPath: path}

	hdr := upstreamHeaders{
		origin:         p.originScheme() + "://" + p.opts.UpstreamHost,
		integrationKey: p.opts.IntegrationIDHeader,
	}
	if p.opts.IntegrationIDParam != "" {
		hdr.integrationID = query.Get(p.opts.IntegrationIDParam)
	}

	upReq := &http.Request{
		Method:     http.MethodGet,
		URL:        target,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Host:       p.opts.UpstreamHost,
		Header:     buildHeaders(r.Header, hdr),
	}
	bearer := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	bearer.SetAuthHeader(upReq)

	// The downstream request context aborts the dial if the client goes away.
	ctx, cancel := context.WithTimeout(r.Context(), p.opts.DialTimeout)
	defer cancel()

	upConn, upReader, resp, err := p.handshake(ctx, upReq)
	if err != nil {
		p.rejected.Add(1)
		logging.Warn("Proxy", "[%s] Upstream handshake with %s failed: %v", short, p.opts.UpstreamHost, err)
		writeStatus(w, http.StatusBadGateway)
		return
	}

	if resp.StatusCode < 200 && resp.StatusCode != http.StatusSwitchingProtocols {
		// A 1xx written downstream would be followed by an implicit 200.
		p.rejected.Add(1)
		resp.Body.Close()
		upConn.Close()
		logging.Warn("Proxy", "[%s] Upstream answered upgrade with informational status %d", short, resp.StatusCode)
		writeStatus(w, http.StatusBadGateway)
		return
	}

	if resp.StatusCode != http.StatusSwitchingProtocols {
		p.rejected.Add(1)
		_ = upConn.SetReadDeadline(time.Now().Add(drainTimeout))
		_, _ = io.CopyN(io.Discard, resp.Body, maxErrorDrain)
		resp.Body.Close()
		upConn.Close()
		logging.Info("Proxy", "[%s] Upstream refused upgrade for %s with status %d", short, path, resp.StatusCode)
		if p.opts.OnUpstreamStatus != nil {
			p.opts.OnUpstreamStatus(resp.StatusCode)
		}
		writeStatus(w, resp.StatusCode)
		return
	}

	accept := resp.Header.Get("Sec-WebSocket-Accept")
	if accept == "" {
		p.rejected.Add(1)
		upConn.Close()
		logging.Warn("Proxy", "[%s] Upstream answered 101 without Sec-WebSocket-Accept", short)
		writeStatus(w, http.StatusBadGateway)
		return
	}

	hj, ok := w.(http.Hijacker)
	if !ok {
		upConn.Close()
		logging.Error("Proxy", errors.New("response writer does not support hijacking"), "[%s] Cannot take over client connection", short)
		writeStatus(w, http.StatusInternalServerError)
		return
	}
	downConn, downBuf, err := hj.Hijack()
	if err != nil {
		upConn.Close()
		logging.Error("Proxy", err, "[%s] Failed to hijack client connection", short)
		return
	}

	if err := writeSwitchingProtocols(downBuf.Writer, accept, resp.Header.Get("Sec-WebSocket-Protocol")); err != nil {
		upConn.Close()
		downConn.Close()
		logging.Warn("Proxy", "[%s] Failed to complete client handshake: %v", short, err)
		return
	}

	p.total.Add(1)
	p.active.Add(1)
	defer p.active.Add(-1)

	logging.Info("Proxy", "[%s] Tunnel open to %s%s", short, p.opts.UpstreamHost, path)
	start := time.Now()
	up, down, err := relay(downConn, downBuf.Reader, upConn, upReader)
	if err != nil {
		logging.Debug("Proxy", "[%s] Relay ended with error: %v", short, err)
	}
	logging.Info("Proxy", "[%s] Tunnel closed after %s (%d bytes up, %d bytes down)",
		short, time.Since(start).Round(time.Millisecond), up, down)
}

func (p *Proxy) token(q url.Values) string {
	for _, name := range p.opts.TokenParams {
		if v := q.Get(name); v != "" {
			return v
		}
	}
	return ""
}

func (p *Proxy) originScheme() string {
	if p.opts.UpstreamScheme == "ws" {
		return "http"
	}
	return "https"
}

func (p *Proxy) upstreamAddr() (addr, serverName string) {
	host := p.opts.UpstreamHost
	if h, _, err := net.SplitHostPort(host); err == nil {
		return host, h
	}
	port := "443"
	if p.opts.UpstreamScheme == "ws" {
		port = "80"
	}
	return net.JoinHostPort(host, port), host
}

// handshake dials upstream, sends req and reads the response head. The
// returned reader may hold bytes the upstream sent after the head.
func (p *Proxy) handshake(ctx context.Context, req *http.Request) (net.Conn, *bufio.Reader, *http.Response, error) {
	addr, serverName := p.upstreamAddr()
	network := "tcp"
	if p.opts.ForceIPv4 {
		network = "tcp4"
	}

	raw, err := p.opts.Dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	// Unblocks reads and writes below if ctx ends mid-handshake.
	stop := context.AfterFunc(ctx, func() { raw.Close() })

	conn := raw
	if p.opts.UpstreamScheme != "ws" {
		tlsConn := tls.Client(raw, &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: p.opts.InsecureSkipVerify, //nolint:gosec // opt-in via config
			NextProtos:         []string{"http/1.1"},
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			stop()
			raw.Close()
			return nil, nil, nil, fmt.Errorf("tls handshake: %w", err)
		}
		conn = tlsConn
	}

	if err := req.Write(conn); err != nil {
		stop()
		conn.Close()
		return nil, nil, nil, fmt.Errorf("write upgrade request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		stop()
		conn.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, nil, nil, fmt.Errorf("read upgrade response: %w", err)
	}

	if !stop() {
		// ctx fired and closed the connection after the response arrived.
		conn.Close()
		return nil, nil, nil, fmt.Errorf("upgrade aborted: %w", context.Cause(ctx))
	}
	return conn, br, resp, nil
}

func writeSwitchingProtocols(w *bufio.Writer, accept, protocol string) error {
	fmt.Fprintf(w, "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\nSec-WebSocket-Accept: %s\r\n", accept)
	if protocol != "" {
		fmt.Fprintf(w, "Sec-WebSocket-Protocol: %s\r\n", protocol)
	}
	w.WriteString("\r\n")
	return w.Flush()
}

// writeStatus rejects the upgrade with status and closes the connection.
func writeStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Connection", "close")
	w.WriteHeader(status)
}

// CloseConnection drops the client connection without writing a response.
// It falls back to 400 when the connection cannot be hijacked.
func CloseConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeStatus(w, http.StatusBadRequest)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
