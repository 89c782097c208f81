package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/internal/config"
	"supplydash/internal/tokenstore"
)

func testSettings() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.OAuth.Host = "tenant.example.com"
	cfg.OAuth.ClientID = "client"
	cfg.OAuth.ClientSecret = "secret"
	cfg.Tunnel.UpstreamHost = "tenant.example.com"
	cfg.TokenStore.Type = config.TokenStoreMemory
	return &cfg
}

func TestNewApplication(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.Config)
		wantGuest bool
	}{
		{
			name:      "guest enabled",
			mutate:    func(*config.Config) {},
			wantGuest: true,
		},
		{
			name:      "guest disabled",
			mutate:    func(c *config.Config) { c.Guest.Enabled = false },
			wantGuest: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			tt.mutate(settings)

			application, err := NewApplication(&Config{Silent: true, Settings: settings})
			require.NoError(t, err)
			defer application.Close()

			svc := application.Services()
			require.NotNil(t, svc.Broker)
			require.NotNil(t, svc.Proxy)
			require.NotNil(t, svc.Server)
			assert.Nil(t, svc.Sales)
			assert.Equal(t, tt.wantGuest, svc.Guest != nil)
			assert.Equal(t, "memory", svc.Store.Describe())
			assert.Equal(t, []string{"/tunnel"}, svc.Proxy.Prefixes())
		})
	}
}

func TestNewApplication_InvalidSettings(t *testing.T) {
	settings := testSettings()
	settings.Server.Port = 0
	settings.Tunnel.UpstreamScheme = "http"

	_, err := NewApplication(&Config{Silent: true, Settings: settings})
	require.Error(t, err)

	var verrs config.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
}

func TestNewApplication_MissingExplicitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := NewApplication(&Config{Silent: true, ConfigPath: path})
	require.Error(t, err)

	var cerr *config.ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestNewApplication_LoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "supplydash.yaml")
	tokenPath := filepath.Join(dir, "data", "refresh_token")
	yaml := `
server:
  port: 4000
oauth:
  host: tenant.example.com
tokenStore:
  type: file
  file:
    path: ` + tokenPath + `
guest:
  enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	application, err := NewApplication(&Config{Silent: true, ConfigPath: path})
	require.NoError(t, err)
	defer application.Close()

	svc := application.Services()
	assert.Equal(t, 4000, application.config.Settings.Server.Port)
	assert.Nil(t, svc.Guest)

	fs, ok := svc.Store.(*tokenstore.FileStore)
	require.True(t, ok)
	assert.Equal(t, tokenPath, fs.Path())
}

func TestServicesClose_Idempotent(t *testing.T) {
	svc, err := InitializeServices(context.Background(), &Config{Settings: testSettings()})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		svc.Close()
		svc.Close()
	})
}
