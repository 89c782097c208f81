package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/coreos/go-systemd/v22/daemon"

	"supplydash/internal/broker"
	"supplydash/internal/config"
	"supplydash/internal/proxy"
	"supplydash/internal/sales"
	"supplydash/pkg/logging"
)

// Deps are the components the server routes to. Guest and Sales may be nil.
type Deps struct {
	Config config.Config
	Broker *broker.Broker
	Guest  *broker.Guest
	Proxy  *proxy.Proxy
	Sales  sales.Store
}

// Server is the supplydash HTTP server.
type Server struct {
	deps    Deps
	handler http.Handler
	notify  func(state string) error
}

// New builds the server and its routing table.
func New(deps Deps) *Server {
	s := &Server{
		deps: deps,
		notify: func(state string) error {
			_, err := daemon.SdNotify(false, state)
			return err
		},
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	for _, prefix := range []string{"/api/auth", "/api/qlik"} {
		mux.HandleFunc("POST "+prefix+"/token", s.handleToken)
		mux.HandleFunc("GET "+prefix+"/guest", s.handleGuest)
		mux.HandleFunc("POST "+prefix+"/guest", s.handleGuest)
	}
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.deps.Sales != nil {
		sales.NewHandler(s.deps.Sales).Register(mux)
	} else {
		mux.HandleFunc("GET /api/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Data API unavailable: no database configured"})
		})
	}

	if s.deps.Proxy != nil {
		for _, prefix := range s.deps.Proxy.Prefixes() {
			mux.Handle(prefix, s.deps.Proxy)
			mux.Handle(prefix+"/", s.deps.Proxy)
		}
	}

	if dir := s.deps.Config.Server.StaticDir; dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
		logging.Info("Server", "Serving static files from %s", dir)
	}

	var h http.Handler = mux
	h = upgradeGuard(s.deps.Proxy, h)
	h = cors(s.deps.Config.Server.AllowedOrigin, h)
	h = requestLogger(h)
	return h
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.deps.Config.Server.Host, strconv.Itoa(s.deps.Config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// Tunnels that were already upgraded are not interrupted by the shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg := s.deps.Config.Server
	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	logging.Info("Server", "Listening on http://%s", ln.Addr())
	if err := s.notify(daemon.SdNotifyReady); err != nil {
		logging.Debug("Server", "systemd notify failed: %v", err)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	_ = s.notify(daemon.SdNotifyStopping)
	logging.Info("Server", "Shutting down")

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if s.deps.Proxy != nil {
		if active := s.deps.Proxy.Stats().Active; active > 0 {
			logging.Info("Server", "%d tunnel(s) still open at shutdown", active)
		}
	}
	return nil
}
