package login

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultCallbackAddr is where the callback server listens when no address
// is configured. The provider must list http://localhost:8085/callback as a
// redirect URI.
const DefaultCallbackAddr = "127.0.0.1:8085"

// CallbackTimeout is how long to wait for the OAuth callback.
const CallbackTimeout = 10 * time.Minute

const callbackPath = "/callback"

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html><head><title>supplydash login</title></head>
<body><h1>Login complete</h1><p>You can close this window and return to the terminal.</p></body></html>`))

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html><head><title>supplydash login</title></head>
<body><h1>Login failed</h1><p>{{.Error}}</p>{{if .Description}}<p>{{.Description}}</p>{{end}}</body></html>`))

// CallbackResult represents the result of an OAuth callback.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// IsError returns true if the provider reported an error.
func (r *CallbackResult) IsError() bool {
	return r.Error != ""
}

// CallbackServer is a temporary local HTTP server that accepts exactly one
// OAuth callback.
type CallbackServer struct {
	addr     string
	server   *http.Server
	listener net.Listener
	resultCh chan *CallbackResult
	errorCh  chan error
	once     sync.Once
	stopOnce sync.Once
	baseURL  string
}

// NewCallbackServer creates a callback server for addr. An empty addr means
// DefaultCallbackAddr; port 0 picks a free port.
func NewCallbackServer(addr string) *CallbackServer {
	if addr == "" {
		addr = DefaultCallbackAddr
	}
	return &CallbackServer{
		addr:     addr,
		resultCh: make(chan *CallbackResult, 1),
		errorCh:  make(chan error, 1),
	}
}

// Start listens and serves until the callback arrives or ctx is cancelled.
// It returns the redirect URI to send to the provider.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener
	s.baseURL = fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case s.errorCh <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return s.RedirectURI(), nil
}

// RedirectURI is the callback URL. It is only valid after Start.
func (s *CallbackServer) RedirectURI() string {
	return s.baseURL + callbackPath
}

// WaitForCallback blocks until the callback arrives, the server fails or
// ctx is done.
func (s *CallbackServer) WaitForCallback(ctx context.Context) (*CallbackResult, error) {
	select {
	case result := <-s.resultCh:
		return result, nil
	case err := <-s.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	handled := false
	s.once.Do(func() {
		handled = true
		s.processCallback(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (s *CallbackServer) processCallback(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("Content-Security-Policy", "default-src 'none'")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("Cache-Control", "no-store")
	h.Set("Content-Type", "text/html; charset=utf-8")

	q := r.URL.Query()
	result := &CallbackResult{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	if result.IsError() {
		w.WriteHeader(http.StatusBadRequest)
		_ = errorPage.Execute(w, map[string]string{"Error": result.Error, "Description": result.ErrorDescription})
	} else {
		_ = successPage.Execute(w, nil)
	}

	select {
	case s.resultCh <- result:
	default:
	}

	// leave time for the page to reach the browser
	go func() {
		time.Sleep(time.Second)
		s.Stop()
	}()
}

// Stop shuts the server down. It is safe to call more than once.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() {
		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.server.Shutdown(ctx)
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}
