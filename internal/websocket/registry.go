package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event types pushed to subscribers.
const (
	EventConnected       = "connected"
	EventSessionsChanged = "sessions_changed"
)

// Event is a refresh hint. It never carries session state; receivers re-fetch.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Registry tracks live connections per account.
// ARCHITECTURAL DISCOVERY: one account may hold several connections (browser tabs),
// so connections are keyed userID -> connection id
type Registry struct {
	mu          sync.RWMutex
	connections map[string]map[string]*Connection
	log         *zap.Logger
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		connections: make(map[string]map[string]*Connection),
		log:         log.Named("websocket"),
		now:         time.Now,
	}
}

// RegisterConnection adds an authenticated connection.
func (r *Registry) RegisterConnection(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}

	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connections[userID] == nil {
		r.connections[userID] = make(map[string]*Connection)
	}
	r.connections[userID][conn.ID()] = conn
	return nil
}

// UnregisterConnection removes conn; unknown connections are ignored.
func (r *Registry) UnregisterConnection(conn *Connection) {
	if conn == nil {
		return
	}
	userID := conn.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	userConns, exists := r.connections[userID]
	if !exists {
		return
	}
	delete(userConns, conn.ID())
	// TECHNICAL DISCOVERY: Clean up empty maps to prevent memory leaks
	if len(userConns) == 0 {
		delete(r.connections, userID)
	}
}

// UserConnections returns a snapshot of the account's connections.
func (r *Registry) UserConnections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.connections[userID]))
	for _, conn := range r.connections[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// SessionsChanged pushes a refresh hint to every connection of the given accounts.
// Delivery failures close nothing and are only logged; the next fetch heals the view.
func (r *Registry) SessionsChanged(sessionID string, userIDs ...string) {
	event := Event{Type: EventSessionsChanged, SessionID: sessionID, Timestamp: r.now()}

	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true

		for _, conn := range r.UserConnections(userID) {
			if err := conn.WriteJSON(event); err != nil {
				r.log.Warn("refresh hint not delivered",
					zap.String("user_id", userID),
					zap.String("connection_id", conn.ID()),
					zap.Error(err))
			}
		}
	}
}

// CloseAll closes every registered connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.connections
	r.connections = make(map[string]map[string]*Connection)
	r.mu.Unlock()

	for _, userConns := range all {
		for _, conn := range userConns {
			_ = conn.Close()
		}
	}
}

// GetStats returns registry statistics for the health endpoint.
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, userConns := range r.connections {
		total += len(userConns)
	}
	return map[string]int{
		"total_connections": total,
		"connected_users":   len(r.connections),
	}
}
