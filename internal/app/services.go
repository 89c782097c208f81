package app

import (
	"context"
	"fmt"
	"net/http"

	"supplydash/internal/broker"
	"supplydash/internal/proxy"
	"supplydash/internal/sales"
	"supplydash/internal/server"
	"supplydash/internal/tokenstore"
	"supplydash/pkg/logging"
)

// Services holds every component the server is assembled from.
//
// Components are built in dependency order:
//  1. Refresh token store
//  2. Token broker, then the guest login service on top of it
//  3. Tunnel proxy
//  4. Sales store, when a database is configured
//  5. HTTP server routing to all of the above
type Services struct {
	Store  tokenstore.Store
	Broker *broker.Broker

	// Guest is nil when guest access is disabled.
	Guest *broker.Guest

	Proxy *proxy.Proxy

	// Sales is nil when no database is configured.
	Sales *sales.PostgresStore

	Server *server.Server

	watchTokenFile bool
}

// InitializeServices builds all services from cfg.Settings.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	settings := cfg.Settings
	s := &Services{watchTokenFile: settings.TokenStore.File.Watch}

	store, err := tokenstore.New(settings.TokenStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	s.Store = store
	logging.Info("Services", "Refresh token store: %s", store.Describe())

	s.Broker = broker.NewFromConfig(settings.OAuth, store)
	if settings.Guest.Enabled {
		s.Guest = broker.NewGuest(s.Broker,
			broker.WithAccessTokenCache(settings.Guest.CacheAccessTokens),
			broker.WithClearOnInvalidGrant(settings.Guest.ClearOnInvalidGrant),
		)
	}

	tunnelOpts := proxy.OptionsFromConfig(settings.Tunnel)
	tunnelOpts.OnUpstreamStatus = s.upstreamRejected
	s.Proxy = proxy.New(tunnelOpts)
	logging.Info("Services", "Tunnel mounted at %v, upstream %s://%s",
		s.Proxy.Prefixes(), settings.Tunnel.UpstreamScheme, settings.Tunnel.UpstreamHost)

	deps := server.Deps{
		Config: *settings,
		Broker: s.Broker,
		Guest:  s.Guest,
		Proxy:  s.Proxy,
	}

	if settings.Database.Enabled {
		salesStore, err := sales.NewPostgresStore(ctx, settings.Database)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.Sales = salesStore
		deps.Sales = salesStore
	} else {
		logging.Warn("Services", "No database configured, data API disabled")
	}

	s.Server = server.New(deps)
	return s, nil
}

// upstreamRejected drops cached guest access tokens once the engine refuses
// one, so the client's retry gets a freshly exchanged token.
func (s *Services) upstreamRejected(status int) {
	if status == http.StatusUnauthorized && s.Guest != nil {
		logging.Info("Services", "Engine rejected an access token, dropping cached guest tokens")
		s.Guest.Invalidate()
	}
}

// Run serves HTTP until ctx is cancelled. When tokenStore.file.watch is set
// the token file is watched so that tokens written by another process take
// effect at once.
func (s *Services) Run(ctx context.Context) error {
	if s.watchTokenFile {
		if fs, ok := s.Store.(*tokenstore.FileStore); ok {
			err := fs.Watch(ctx, func(tokenstore.ChangeKind) {
				if s.Guest != nil {
					s.Guest.Invalidate()
				}
			})
			if err != nil {
				// Losing the watcher only delays cache invalidation.
				logging.Warn("Services", "Token file watcher not started: %v", err)
			}
		}
	}
	return s.Server.Run(ctx)
}

// Close releases background resources. It is safe to call more than once.
func (s *Services) Close() {
	if s.Guest != nil {
		s.Guest.Close()
	}
	if s.Sales != nil {
		if err := s.Sales.Close(); err != nil {
			logging.Debug("Services", "Failed to close database: %v", err)
		}
		s.Sales = nil
	}
}
