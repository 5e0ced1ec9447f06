package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/devhivehq/devhive-backend/internal/cache"
	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/gofiber/websocket/v2"
)

// ClientConnection wraps a WebSocket connection with metadata
type ClientConnection struct {
	Conn       *websocket.Conn
	UserID     uint
	LastPong   time.Time
	PingTicker *time.Ticker
	CloseChan  chan struct{}

	writeMux sync.Mutex
}

// Hub manages all active WebSocket connections and the ephemeral presence
// scopes. One connection per user; a reconnect replaces the previous one.
type Hub struct {
	clients    map[uint]*ClientConnection
	clientsMux sync.RWMutex

	// scope -> userID -> announced presence record. Purely in-memory on this
	// node; the PresenceCache mirrors it so sync snapshots survive across
	// nodes. Never persisted.
	scopes     map[string]map[uint]models.PresenceUser
	userScopes map[uint]map[string]struct{}
	scopesMux  sync.Mutex

	presenceCache *cache.PresenceCache

	pingInterval time.Duration
	pongTimeout  time.Duration
}

func NewHub(presenceCache *cache.PresenceCache) *Hub {
	hub := &Hub{
		clients:       make(map[uint]*ClientConnection),
		scopes:        make(map[string]map[uint]models.PresenceUser),
		userScopes:    make(map[uint]map[string]struct{}),
		presenceCache: presenceCache,
		pingInterval:  30 * time.Second,
		pongTimeout:   90 * time.Second,
	}

	go hub.connectionHealthChecker()

	return hub
}

// Register adds a client connection with health monitoring.
func (h *Hub) Register(userID uint, conn *websocket.Conn) {
	clientConn := &ClientConnection{
		Conn:       conn,
		UserID:     userID,
		LastPong:   time.Now(),
		PingTicker: time.NewTicker(h.pingInterval),
		CloseChan:  make(chan struct{}),
	}

	conn.SetPongHandler(func(appData string) error {
		h.clientsMux.Lock()
		if client, exists := h.clients[userID]; exists {
			client.LastPong = time.Now()
		}
		h.clientsMux.Unlock()
		return nil
	})

	conn.SetReadDeadline(time.Now().Add(h.pongTimeout))

	h.clientsMux.Lock()
	h.clients[userID] = clientConn
	h.clientsMux.Unlock()

	go h.pingRoutine(clientConn)

	log.Printf("User %d connected to hub (total: %d)", userID, h.Count())
}

// Unregister removes a client connection and tears down every presence
// scope the user had joined, broadcasting the leaves.
func (h *Hub) Unregister(userID uint) {
	h.clientsMux.Lock()
	if client, exists := h.clients[userID]; exists {
		if client.PingTicker != nil {
			client.PingTicker.Stop()
		}
		close(client.CloseChan)
	}
	delete(h.clients, userID)
	count := len(h.clients)
	h.clientsMux.Unlock()

	h.scopesMux.Lock()
	scopes := make([]string, 0, len(h.userScopes[userID]))
	for scope := range h.userScopes[userID] {
		scopes = append(scopes, scope)
	}
	h.scopesMux.Unlock()
	for _, scope := range scopes {
		h.LeavePresence(scope, userID)
	}

	log.Printf("User %d disconnected from hub (total: %d)", userID, count)
}

func (h *Hub) IsOnline(userID uint) bool {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	_, exists := h.clients[userID]
	return exists
}

// SendToUser delivers an already-wrapped event to a single user. Offline
// users are skipped; durable delivery is the store's job, not the hub's.
func (h *Hub) SendToUser(userID uint, event Envelope) {
	h.clientsMux.RLock()
	clientConn, exists := h.clients[userID]
	h.clientsMux.RUnlock()

	if !exists {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event for user %d: %v", userID, err)
		return
	}

	clientConn.writeMux.Lock()
	err = clientConn.Conn.WriteMessage(websocket.TextMessage, data)
	clientConn.writeMux.Unlock()
	if err != nil {
		log.Printf("Error sending event to user %d: %v", userID, err)
		h.Unregister(userID)
	}
}

// EmitToUsers fans an event out to each listed user.
func (h *Hub) EmitToUsers(userIDs []uint, event Envelope) {
	for _, userID := range userIDs {
		h.SendToUser(userID, event)
	}
}

func (h *Hub) Count() int {
	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	return len(h.clients)
}

// JoinPresence announces the user in a scope: the record goes into the
// registry, the existing members get a join event, and the joiner gets a
// full sync snapshot. Joining twice just refreshes the record.
func (h *Hub) JoinPresence(scope string, user models.PresenceUser) {
	h.scopesMux.Lock()
	members := h.scopes[scope]
	if members == nil {
		members = make(map[uint]models.PresenceUser)
		h.scopes[scope] = members
	}
	_, rejoin := members[user.UserID]
	members[user.UserID] = user

	userScopes := h.userScopes[user.UserID]
	if userScopes == nil {
		userScopes = make(map[string]struct{})
		h.userScopes[user.UserID] = userScopes
	}
	userScopes[scope] = struct{}{}
	h.scopesMux.Unlock()

	_ = h.presenceCache.Join(scope, user)

	if !rejoin {
		h.broadcastToScope(scope, NewPresenceJoinEvent(scope, user), user.UserID)
	}
	h.SendToUser(user.UserID, NewPresenceSyncEvent(scope, h.SnapshotScope(scope)))
}

// LeavePresence removes the user from a scope and tells the rest.
func (h *Hub) LeavePresence(scope string, userID uint) {
	h.scopesMux.Lock()
	members := h.scopes[scope]
	_, wasMember := members[userID]
	delete(members, userID)
	if len(members) == 0 {
		delete(h.scopes, scope)
	}
	if userScopes := h.userScopes[userID]; userScopes != nil {
		delete(userScopes, scope)
		if len(userScopes) == 0 {
			delete(h.userScopes, userID)
		}
	}
	h.scopesMux.Unlock()

	_ = h.presenceCache.Leave(scope, userID)

	if wasMember {
		h.broadcastToScope(scope, NewPresenceLeaveEvent(scope, userID), userID)
	}
}

// HeartbeatPresence refreshes the user's record; last heartbeat wins.
func (h *Hub) HeartbeatPresence(scope string, user models.PresenceUser) {
	h.scopesMux.Lock()
	if members := h.scopes[scope]; members != nil {
		if _, ok := members[user.UserID]; ok {
			members[user.UserID] = user
		}
	}
	h.scopesMux.Unlock()

	_ = h.presenceCache.Join(scope, user)
}

// SnapshotScope returns the full current member list of a scope.
func (h *Hub) SnapshotScope(scope string) []models.PresenceUser {
	if users, err := h.presenceCache.Snapshot(scope); err == nil && len(users) > 0 {
		return users
	}

	h.scopesMux.Lock()
	defer h.scopesMux.Unlock()
	members := h.scopes[scope]
	users := make([]models.PresenceUser, 0, len(members))
	for _, user := range members {
		users = append(users, user)
	}
	return users
}

// ScopeMembers lists the user ids currently joined to a scope.
func (h *Hub) ScopeMembers(scope string) []uint {
	h.scopesMux.Lock()
	defer h.scopesMux.Unlock()
	members := h.scopes[scope]
	ids := make([]uint, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) broadcastToScope(scope string, event Envelope, excludeUserID uint) {
	for _, userID := range h.ScopeMembers(scope) {
		if userID == excludeUserID {
			continue
		}
		h.SendToUser(userID, event)
	}
}

// pingRoutine sends periodic ping messages to keep the connection alive.
func (h *Hub) pingRoutine(client *ClientConnection) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Ping routine recovered from panic for user %d: %v", client.UserID, r)
		}
	}()

	for {
		select {
		case <-client.CloseChan:
			return
		case <-client.PingTicker.C:
			h.clientsMux.RLock()
			_, exists := h.clients[client.UserID]
			h.clientsMux.RUnlock()

			if !exists {
				return
			}

			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Ping failed for user %d: %v", client.UserID, err)
				h.Unregister(client.UserID)
				return
			}
		}
	}
}

// connectionHealthChecker removes connections that stopped answering pings.
func (h *Hub) connectionHealthChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.clientsMux.RLock()
		deadConnections := make([]uint, 0)
		now := time.Now()

		for userID, client := range h.clients {
			if now.Sub(client.LastPong) > h.pongTimeout {
				deadConnections = append(deadConnections, userID)
			}
		}
		h.clientsMux.RUnlock()

		for _, userID := range deadConnections {
			log.Printf("Removing dead connection for user %d (no pong received)", userID)
			h.Unregister(userID)
		}
	}
}
