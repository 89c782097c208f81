package proxy

import (
	"net/http"
	"strings"
)

// Action says what happens to a downstream handshake header on its way
// upstream.
type Action int

const (
	// Forward copies the header verbatim.
	Forward Action = iota
	// Drop removes the header.
	Drop
	// Regenerate removes the downstream value and writes a proxy-computed one.
	Regenerate
)

func (a Action) String() string {
	switch a {
	case Drop:
		return "drop"
	case Regenerate:
		return "regenerate"
	default:
		return "forward"
	}
}

// headerPolicy lists every header that is not forwarded verbatim. Keys are
// canonical header names.
var headerPolicy = map[string]Action{
	"Host":                     Regenerate,
	"Origin":                   Regenerate,
	"Upgrade":                  Regenerate,
	"Connection":               Regenerate,
	"Sec-Websocket-Key":        Regenerate,
	"Sec-Websocket-Version":    Regenerate,
	"Sec-Websocket-Protocol":   Regenerate,
	"Authorization":            Regenerate,
	"Referer":                  Drop,
	"Sec-Websocket-Extensions": Drop,
	"Cookie":                   Drop,
	"Proxy-Authorization":      Drop,
	"Keep-Alive":               Drop,
	"Te":                       Drop,
	"Trailer":                  Drop,
	"Transfer-Encoding":        Drop,
	"Proxy-Connection":         Drop,
}

// PolicyFor returns the action for a header name.
func PolicyFor(name string) Action {
	if a, ok := headerPolicy[http.CanonicalHeaderKey(name)]; ok {
		return a
	}
	return Forward
}

// upstreamHeaders holds the values the proxy regenerates.
type upstreamHeaders struct {
	origin         string
	integrationKey string
	integrationID  string
}

// buildHeaders applies the policy table to the downstream headers. Host and
// Authorization are set by the caller on the outgoing request.
func buildHeaders(in http.Header, u upstreamHeaders) http.Header {
	out := make(http.Header, len(in)+4)

	// Headers nominated in Connection are hop-by-hop for this hop only.
	nominated := map[string]bool{}
	for _, v := range in.Values("Connection") {
		for _, tok := range strings.Split(v, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				nominated[http.CanonicalHeaderKey(tok)] = true
			}
		}
	}

	for name, values := range in {
		if PolicyFor(name) != Forward || nominated[name] {
			continue
		}
		out[name] = append([]string(nil), values...)
	}

	out.Set("Origin", u.origin)
	out.Set("Upgrade", "websocket")
	out.Set("Connection", "Upgrade")
	out.Set("Sec-WebSocket-Version", "13")
	out.Set("Sec-WebSocket-Key", in.Get("Sec-WebSocket-Key"))
	if proto := in.Values("Sec-WebSocket-Protocol"); len(proto) > 0 {
		out["Sec-Websocket-Protocol"] = append([]string(nil), proto...)
	}
	if u.integrationKey != "" && u.integrationID != "" {
		out.Set(u.integrationKey, u.integrationID)
	}
	return out
}

// headerContainsToken reports whether a comma-separated header contains
// token, case-insensitively.
func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// IsUpgradeRequest reports whether r asks to switch to the WebSocket protocol.
func IsUpgradeRequest(r *http.Request) bool {
	return headerContainsToken(r.Header, "Connection", "upgrade") &&
		headerContainsToken(r.Header, "Upgrade", "websocket")
}
