package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorhub/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T, backendURL string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = backendURL
	cfg.Store.Path = filepath.Join(t.TempDir(), "mentorhub.db")
	cfg.HTTP.Port = freePort(t)
	cfg.HTTP.AllowedOrigins = nil
	return cfg
}

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-mentee" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"_id": "e1", "name": "Eli", "role": "mentee"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HTTP.Port = -1
	_, err := NewApplication(cfg, nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestApplication_StartServeStop(t *testing.T) {
	backend := fakeBackend(t)
	application, err := NewApplication(testConfig(t, backend.URL), nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, application.Start(ctx))

	base := "http://" + application.GetAddr()
	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", health["status"])

	wsURL := "ws" + strings.TrimPrefix(base, "http") + "/ws?token=tok-mentee"
	conn, wsResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if wsResp != nil && wsResp.Body != nil {
		wsResp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "connected", event["type"])

	application.registry.SessionsChanged("s1", "e1")
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "sessions_changed", event["type"])

	stopCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()
	require.NoError(t, application.Stop(stopCtx))

	_, err = http.Get(base + "/health")
	assert.Error(t, err)
}

func TestApplication_StartFailsWhenPortTaken(t *testing.T) {
	backend := fakeBackend(t)
	cfg := testConfig(t, backend.URL)

	l, err := net.Listen("tcp", cfg.HTTP.Addr())
	require.NoError(t, err)
	defer l.Close()

	application, err := NewApplication(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = application.Stop(context.Background()) }()

	assert.Error(t, application.Start(context.Background()))
}
