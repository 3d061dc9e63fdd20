package websocket

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mentorhub/internal/client"
	"mentorhub/internal/config"
	"mentorhub/pkg/types"
)

// Authenticator resolves a bearer token to the account it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*types.Account, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, token string) (*types.Account, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*types.Account, error) {
	return f(ctx, token)
}

// Handler upgrades authenticated requests to refresh-hint subscriptions.
type Handler struct {
	registry *Registry
	auth     Authenticator
	cfg      *config.WebSocketConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler builds a handler. An empty allowedOrigins accepts any origin.
func NewHandler(registry *Registry, auth Authenticator, cfg *config.WebSocketConfig, allowedOrigins []string, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		registry: registry,
		auth:     auth,
		cfg:      cfg,
		log:      log.Named("websocket"),
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// bearerToken reads the token from the Authorization header or, because browsers
// cannot set headers on websocket requests, the token query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP validates the token, upgrades, registers and then pumps the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, ErrMissingToken.Error(), http.StatusUnauthorized)
		return
	}

	account, err := h.auth.Authenticate(r.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrForbidden):
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		case client.IsRetryable(err):
			http.Error(w, "backend unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "authentication failed", http.StatusInternalServerError)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	wsConn := NewConnection(conn, h.cfg)
	wsConn.SetCredentials(account.Key(), account.Role)

	if err := h.registry.RegisterConnection(wsConn); err != nil {
		h.log.Error("failed to register connection", zap.Error(err))
		_ = wsConn.Close()
		return
	}
	h.log.Debug("subscriber connected",
		zap.String("user_id", wsConn.UserID()),
		zap.String("connection_id", wsConn.ID()))

	if err := wsConn.WriteJSON(Event{Type: EventConnected, Timestamp: time.Now()}); err != nil {
		h.log.Warn("failed to send connected event", zap.Error(err))
	}

	go h.handleConnection(wsConn)
}

// handleConnection keeps the socket alive with pings and discards client frames.
func (h *Handler) handleConnection(conn *Connection) {
	defer func() {
		h.registry.UnregisterConnection(conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
					_ = conn.Close()
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed", zap.String("user_id", conn.UserID()), zap.Error(err))
			}
			return
		}
	}
}
