package chatclient

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

const (
	GlobalScope       = "global"
	heartbeatInterval = 30 * time.Second
)

// ConversationScope names the per-thread presence channel. Global and
// per-conversation presence are independent; joining one never implies the
// other.
func ConversationScope(conversationID uint) string {
	return fmt.Sprintf("conv:%d", conversationID)
}

type handleState int

const (
	stateJoining handleState = iota
	stateJoined
	stateLeft
)

// Handle is one joined presence scope. Every sync/join/leave event recomputes
// the full online list and hands it to the callback; consumers never patch
// incremental diffs.
type Handle struct {
	scope string
	self  models.PresenceUser

	mu       sync.Mutex
	state    handleState
	online   map[uint]models.PresenceUser
	callback func([]models.PresenceUser)

	stopHeartbeat chan struct{}
}

// PresenceTracker multiplexes presence handles over the adapter's
// connection. Nothing here is persisted: a dropped connection silently
// empties every scope.
type PresenceTracker struct {
	adapter *Adapter
	self    models.PresenceUser

	mu      sync.Mutex
	handles map[string]*Handle
}

func NewPresenceTracker(adapter *Adapter, self models.PresenceUser) *PresenceTracker {
	t := &PresenceTracker{
		adapter: adapter,
		self:    self,
		handles: make(map[string]*Handle),
	}
	adapter.presence = t
	adapter.OnConnect = t.rejoinAll
	return t
}

// JoinGlobal joins the site-wide "who is online" scope.
func (t *PresenceTracker) JoinGlobal() *Handle {
	return t.join(GlobalScope)
}

// JoinConversation joins the "who is viewing this thread" scope.
func (t *PresenceTracker) JoinConversation(conversationID uint) *Handle {
	return t.join(ConversationScope(conversationID))
}

func (t *PresenceTracker) join(scope string) *Handle {
	t.mu.Lock()
	if existing, ok := t.handles[scope]; ok {
		t.mu.Unlock()
		return existing
	}
	h := &Handle{
		scope:         scope,
		self:          t.self,
		state:         stateJoining,
		online:        make(map[uint]models.PresenceUser),
		stopHeartbeat: make(chan struct{}),
	}
	t.handles[scope] = h
	t.mu.Unlock()

	t.adapter.Send("presence_join", presenceFrame{Scope: scope})
	go t.heartbeatLoop(h)
	return h
}

// OnChange sets the callback receiving the full online list. It fires with
// the current state immediately if one has already been received.
func (t *PresenceTracker) OnChange(h *Handle, callback func([]models.PresenceUser)) {
	h.mu.Lock()
	h.callback = callback
	joined := h.state == stateJoined
	snapshot := h.listLocked()
	h.mu.Unlock()
	if joined && callback != nil {
		callback(snapshot)
	}
}

// Leave withdraws from the scope and stops the heartbeat. The handle is dead
// afterwards; rejoin by calling Join again.
func (t *PresenceTracker) Leave(h *Handle) {
	h.mu.Lock()
	if h.state == stateLeft {
		h.mu.Unlock()
		return
	}
	h.state = stateLeft
	close(h.stopHeartbeat)
	h.mu.Unlock()

	t.mu.Lock()
	delete(t.handles, h.scope)
	t.mu.Unlock()

	t.adapter.Send("presence_leave", presenceFrame{Scope: h.scope})
}

func (t *PresenceTracker) heartbeatLoop(h *Handle) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopHeartbeat:
			return
		case <-ticker.C:
			t.adapter.Send("presence_heartbeat", presenceFrame{Scope: h.scope})
		}
	}
}

// rejoinAll re-announces every live scope after a reconnect so the server
// rebuilds this client's records.
func (t *PresenceTracker) rejoinAll() {
	t.mu.Lock()
	scopes := make([]string, 0, len(t.handles))
	for scope := range t.handles {
		scopes = append(scopes, scope)
	}
	t.mu.Unlock()
	for _, scope := range scopes {
		t.adapter.Send("presence_join", presenceFrame{Scope: scope})
	}
}

type presenceFrame struct {
	Scope string `json:"scope"`
}

type presenceEvent struct {
	Scope  string                `json:"scope"`
	UserID uint                  `json:"user_id"`
	User   *models.PresenceUser  `json:"user"`
	Users  []models.PresenceUser `json:"users"`
}

// handleEvent applies one presence event to the matching handle and emits
// the recomputed full list.
func (t *PresenceTracker) handleEvent(eventType string, ev presenceEvent) {
	t.mu.Lock()
	h, ok := t.handles[ev.Scope]
	t.mu.Unlock()
	if !ok {
		return
	}

	h.mu.Lock()
	if h.state == stateLeft {
		h.mu.Unlock()
		return
	}
	switch eventType {
	case "presence_sync":
		// Full snapshot replaces whatever we had; sync is the authority.
		h.state = stateJoined
		h.online = make(map[uint]models.PresenceUser, len(ev.Users))
		for _, u := range ev.Users {
			h.online[u.UserID] = u
		}
	case "presence_join":
		if ev.User != nil {
			h.online[ev.User.UserID] = *ev.User
		}
	case "presence_leave":
		delete(h.online, ev.UserID)
	}
	callback := h.callback
	list := h.listLocked()
	h.mu.Unlock()

	if callback != nil {
		callback(list)
	}
}

// listLocked recomputes the sorted full list. Callers hold h.mu.
func (h *Handle) listLocked() []models.PresenceUser {
	out := make([]models.PresenceUser, 0, len(h.online))
	for _, u := range h.online {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (a *Adapter) dispatchPresence(env envelope) {
	a.mu.Lock()
	tracker := a.presence
	a.mu.Unlock()
	if tracker == nil {
		return
	}
	var ev presenceEvent
	if err := json.Unmarshal(env.Payload, &ev); err != nil {
		log.Printf("chatclient: dropping %s: %v", env.Type, err)
		return
	}
	tracker.handleEvent(env.Type, ev)
}
