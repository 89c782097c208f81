// Package proxy tunnels browser WebSocket sessions to the analytics engine.
//
// The browser cannot attach an Authorization header to a WebSocket
// handshake, so it passes its access token as a query parameter instead.
// Proxy accepts the upgrade request, moves the token into a bearer header,
// rewrites the handshake headers according to a fixed policy table, dials
// the fixed upstream host and, once the upstream answers 101, relays bytes
// in both directions until either side closes.
//
// Each request runs its own state machine:
//
//	received -> validating -> dialing -> upstream responded -> relaying -> closed
//	                |             |              |
//	               401           502      non-101 status forwarded
//
// The proxy holds no per-connection state outside the request goroutine
// apart from atomic counters.
package proxy
