package server

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"supplydash/internal/proxy"
	"supplydash/pkg/logging"
)

// statusRecorder captures the response status and keeps hijacking available
// for the tunnel.
type statusRecorder struct {
	http.ResponseWriter
	status   int
	hijacked bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	r.hijacked = true
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		if rec.hijacked {
			// the proxy logs its own connections
			return
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		logging.Debug("HTTP", "%s %s %d %s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Microsecond))
	})
}

// cors sets the allowed origin on every response and answers preflights.
// An empty origin disables CORS headers.
func cors(origin string, next http.Handler) http.Handler {
	if origin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// upgradeGuard drops WebSocket upgrades aimed anywhere but the tunnel.
func upgradeGuard(p *proxy.Proxy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if proxy.IsUpgradeRequest(r) && (p == nil || !p.Matches(r.URL.Path)) {
			logging.Debug("HTTP", "Dropping upgrade request for %s", r.URL.Path)
			proxy.CloseConnection(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
