package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplydash/internal/session"
)

// TestGuestTokenRejectedByEngineIsReplaced runs the session client against
// the assembled server: the engine refuses the first guest access token and
// the client's retry must get a newly exchanged one, not the cached one.
func TestGuestTokenRejectedByEngineIsReplaced(t *testing.T) {
	var refreshCalls atomic.Int32
	provider := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/oauth/token" || body["grant_type"] != "refresh_token" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		n := refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": fmt.Sprintf("A%d", n), "token_type": "Bearer", "expires_in": 3600,
		})
	}))
	defer provider.Close()

	var (
		mu          sync.Mutex
		seenBearers []string
	)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := r.Header.Get("Authorization")
		mu.Lock()
		seenBearers = append(seenBearers, bearer)
		mu.Unlock()
		if bearer != "Bearer A2" {
			http.Error(w, "token revoked", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var req struct {
				ID     int    `json:"id"`
				Method string `json:"method"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			_ = conn.WriteJSON(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"result": map[string]interface{}{"qReturn": map[string]interface{}{"qHandle": 1, "qType": "Doc", "qGenericId": "doc-1"}},
			})
		}
	}))
	defer engine.Close()

	settings := testSettings()
	settings.OAuth.Host = strings.TrimPrefix(provider.URL, "https://")
	settings.OAuth.InsecureSkipVerify = true
	settings.Tunnel.UpstreamHost = strings.TrimPrefix(engine.URL, "http://")
	settings.Tunnel.UpstreamScheme = "ws"

	svc, err := InitializeServices(context.Background(), &Config{Settings: settings})
	require.NoError(t, err)
	defer svc.Close()
	require.NoError(t, svc.Store.Save(context.Background(), "R1"))

	front := httptest.NewServer(svc.Server.Handler())
	defer front.Close()

	client := session.NewClient(session.NewResolver(session.Options{BackendURL: front.URL, DocID: "doc-1"}))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := client.Session(ctx)
	require.NoError(t, err)
	require.NotNil(t, s.Doc())
	assert.Equal(t, "doc-1", s.Doc().GenericID)

	assert.Equal(t, int32(2), refreshCalls.Load())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer A1", "Bearer A2"}, seenBearers)
}
