package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorhub/internal/client"
	"mentorhub/internal/config"
	"mentorhub/pkg/types"
)

func testConfig() *config.WebSocketConfig {
	return &config.WebSocketConfig{
		PingInterval: time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: time.Second,
		BufferSize:   8,
	}
}

var accounts = map[string]types.Account{
	"tok-mentor": {ID: "m1", Name: "Maya", Role: types.RoleMentor},
	"tok-mentee": {ID: "e1", Name: "Eli", Role: types.RoleMentee},
}

func testAuth() Authenticator {
	return AuthenticatorFunc(func(_ context.Context, token string) (*types.Account, error) {
		switch token {
		case "tok-down":
			return nil, client.ErrTransport
		}
		a, ok := accounts[token]
		if !ok {
			return nil, client.ErrUnauthorized
		}
		return &a, nil
	})
}

func setupServer(t *testing.T) (*Registry, *httptest.Server) {
	t.Helper()
	registry := NewRegistry(nil)
	handler := NewHandler(registry, testAuth(), testConfig(), []string{"http://allowed.example"}, nil)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		registry.CloseAll()
		server.Close()
	})
	return registry, server
}

func dial(t *testing.T, server *httptest.Server, token string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func waitForConnections(t *testing.T, registry *Registry, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return registry.GetStats()["total_connections"] == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsMissingAndInvalidTokens(t *testing.T) {
	_, server := setupServer(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"unknown", "?token=nope", http.StatusUnauthorized},
		{"backend down", "?token=tok-down", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(server.URL + "/" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	_, server := setupServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?token=tok-mentor"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHandler_ConnectAndReceiveRefreshHints(t *testing.T) {
	registry, server := setupServer(t)

	mentorTab1 := dial(t, server, "tok-mentor", http.Header{"Origin": {"http://allowed.example"}})
	mentorTab2 := dial(t, server, "tok-mentor", nil)
	mentee := dial(t, server, "tok-mentee", nil)

	for _, conn := range []*websocket.Conn{mentorTab1, mentorTab2, mentee} {
		assert.Equal(t, EventConnected, readEvent(t, conn).Type)
	}
	waitForConnections(t, registry, 3)
	assert.Equal(t, 2, registry.GetStats()["connected_users"])
	assert.Len(t, registry.UserConnections("m1"), 2)

	registry.SessionsChanged("s1", "m1", "m1", "")

	for _, conn := range []*websocket.Conn{mentorTab1, mentorTab2} {
		event := readEvent(t, conn)
		assert.Equal(t, EventSessionsChanged, event.Type)
		assert.Equal(t, "s1", event.SessionID)
	}

	registry.SessionsChanged("s2", "e1")
	event := readEvent(t, mentee)
	assert.Equal(t, "s2", event.SessionID, "mentee only sees its own hint")
}

func TestHandler_UnregistersOnClientClose(t *testing.T) {
	registry, server := setupServer(t)

	conn := dial(t, server, "tok-mentee", nil)
	readEvent(t, conn)
	waitForConnections(t, registry, 1)

	require.NoError(t, conn.Close())
	waitForConnections(t, registry, 0)
	assert.Empty(t, registry.UserConnections("e1"))
}

func TestRegistry_RejectsUnauthenticated(t *testing.T) {
	registry := NewRegistry(nil)
	assert.ErrorIs(t, registry.RegisterConnection(nil), ErrNilConnection)

	conn := &Connection{id: "c1"}
	assert.ErrorIs(t, registry.RegisterConnection(conn), ErrConnectionNotAuthenticated)

	// unknown connections unregister quietly
	registry.UnregisterConnection(conn)
	registry.UnregisterConnection(nil)
}

func TestRegistry_SessionsChangedWithoutSubscribers(t *testing.T) {
	registry := NewRegistry(nil)
	assert.NotPanics(t, func() { registry.SessionsChanged("s1", "nobody") })
}

func TestConnection_WriteAfterClose(t *testing.T) {
	registry, server := setupServer(t)
	dial(t, server, "tok-mentor", nil)
	waitForConnections(t, registry, 1)

	conn := registry.UserConnections("m1")[0]
	require.NoError(t, conn.Close())
	assert.NoError(t, conn.Close(), "close is idempotent")
	assert.ErrorIs(t, conn.WriteJSON(Event{Type: EventSessionsChanged}), ErrConnectionClosed)
	assert.ErrorIs(t, conn.WriteJSON(make(chan int)), ErrConnectionClosed)
}
