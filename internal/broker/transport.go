package broker

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for provider calls. forceIPv4
// restricts dialing to IPv4 addresses, for providers whose AAAA records are
// unreachable from the deployment network.
func NewHTTPClient(timeout time.Duration, forceIPv4, insecureSkipVerify bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if forceIPv4 {
			network = "tcp4"
		}
		return dialer.DialContext(ctx, network, addr)
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	return &http.Client{Timeout: timeout, Transport: transport}
}
