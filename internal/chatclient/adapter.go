package chatclient

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devhivehq/devhive-backend/internal/models"
)

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
)

// ConversationCallbacks receive the normalized row-change events for one
// conversation. Events are delivered at-least-once; consumers must tolerate
// a duplicate of an event they already applied.
type ConversationCallbacks struct {
	OnInsert func(models.Message)
	OnUpdate func(models.Message)
	OnDelete func(models.Message)
}

// UserCallbacks receive preview changes across all of the user's
// conversations.
type UserCallbacks struct {
	OnPreviewChange func(models.Conversation)
}

type Subscription struct {
	id             int
	conversationID uint // 0 for user-scope subscriptions
}

// Adapter owns the realtime connection. It normalizes raw row payloads
// before invoking callbacks and resubscribes transparently when the stream
// drops; consumers never see the reconnect.
type Adapter struct {
	url    string
	header http.Header

	mu       sync.Mutex
	conn     *websocket.Conn
	convSubs map[uint]map[int]ConversationCallbacks
	userSubs map[int]UserCallbacks
	nextID   int
	closed   bool

	sendCh chan []byte
	done   chan struct{}

	presence *PresenceTracker

	// OnConnect is invoked after every successful (re)connect, including the
	// first. Presence handles hook it to rejoin their scopes.
	OnConnect func()
}

func Dial(url string, authToken string) (*Adapter, error) {
	header := http.Header{}
	if authToken != "" {
		header.Set("Authorization", "Bearer "+authToken)
	}

	a := &Adapter{
		url:      url,
		header:   header,
		convSubs: make(map[uint]map[int]ConversationCallbacks),
		userSubs: make(map[int]UserCallbacks),
		sendCh:   make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	a.conn = conn

	go a.readPump()
	go a.writePump()

	return a, nil
}

// SubscribeConversation registers callbacks for one conversation's row
// changes. The server only fans out conversations the user participates in;
// the adapter filters them down to the subscribed id.
func (a *Adapter) SubscribeConversation(conversationID uint, cb ConversationCallbacks) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	if a.convSubs[conversationID] == nil {
		a.convSubs[conversationID] = make(map[int]ConversationCallbacks)
	}
	a.convSubs[conversationID][a.nextID] = cb
	return &Subscription{id: a.nextID, conversationID: conversationID}
}

// SubscribeUserConversations registers for preview changes across every
// conversation of the authenticated user.
func (a *Adapter) SubscribeUserConversations(cb UserCallbacks) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	a.userSubs[a.nextID] = cb
	return &Subscription{id: a.nextID}
}

func (a *Adapter) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if sub.conversationID != 0 {
		if subs, ok := a.convSubs[sub.conversationID]; ok {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(a.convSubs, sub.conversationID)
			}
		}
		return
	}
	delete(a.userSubs, sub.id)
}

// Send queues a client-to-server frame. Drops when the buffer is full rather
// than blocking the caller.
func (a *Adapter) Send(eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("chatclient: failed to marshal %s: %v", eventType, err)
		return
	}
	frame, err := json.Marshal(envelope{Type: eventType, Payload: data})
	if err != nil {
		return
	}
	select {
	case a.sendCh <- frame:
	default:
		log.Printf("chatclient: send buffer full, dropping %s", eventType)
	}
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	a.mu.Unlock()

	close(a.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (a *Adapter) readPump() {
	for {
		a.mu.Lock()
		conn := a.conn
		closed := a.closed
		a.mu.Unlock()
		if closed {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if !a.reconnect() {
				return
			}
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// A bad frame is logged and dropped, never propagated.
			log.Printf("chatclient: malformed frame: %v", err)
			continue
		}
		a.dispatch(env)
	}
}

func (a *Adapter) writePump() {
	for {
		select {
		case <-a.done:
			return
		case frame := <-a.sendCh:
			a.mu.Lock()
			conn := a.conn
			a.mu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Printf("chatclient: write failed: %v", err)
			}
		}
	}
}

// reconnect redials with capped exponential backoff. Returns false only when
// the adapter was closed deliberately.
func (a *Adapter) reconnect() bool {
	delay := reconnectBaseDelay
	for {
		select {
		case <-a.done:
			return false
		case <-time.After(delay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(a.url, a.header)
		if err == nil {
			a.mu.Lock()
			a.conn = conn
			a.mu.Unlock()
			if a.OnConnect != nil {
				a.OnConnect()
			}
			return true
		}

		log.Printf("chatclient: reconnect failed: %v", err)
		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

// dispatch fans an event out to the matching subscriptions. Callbacks that
// panic are contained here so one bad consumer cannot tear down the stream.
func (a *Adapter) dispatch(env envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("chatclient: callback panic on %s: %v", env.Type, r)
		}
	}()

	switch env.Type {
	case "message_inserted", "message_updated", "message_deleted":
		msg, err := NormalizeMessage(env.Payload)
		if err != nil {
			log.Printf("chatclient: dropping %s: %v", env.Type, err)
			return
		}
		for _, cb := range a.conversationCallbacks(msg.ConversationID) {
			switch env.Type {
			case "message_inserted":
				if cb.OnInsert != nil {
					cb.OnInsert(msg)
				}
			case "message_updated":
				if cb.OnUpdate != nil {
					cb.OnUpdate(msg)
				}
			case "message_deleted":
				if cb.OnDelete != nil {
					cb.OnDelete(msg)
				}
			}
		}
	case "conversation_updated":
		conv, err := NormalizeConversation(env.Payload)
		if err != nil {
			log.Printf("chatclient: dropping %s: %v", env.Type, err)
			return
		}
		for _, cb := range a.userCallbacks() {
			if cb.OnPreviewChange != nil {
				cb.OnPreviewChange(conv)
			}
		}
	case "presence_sync", "presence_join", "presence_leave":
		a.dispatchPresence(env)
	}
}

func (a *Adapter) conversationCallbacks(conversationID uint) []ConversationCallbacks {
	a.mu.Lock()
	defer a.mu.Unlock()
	subs := a.convSubs[conversationID]
	out := make([]ConversationCallbacks, 0, len(subs))
	for _, cb := range subs {
		out = append(out, cb)
	}
	return out
}

func (a *Adapter) userCallbacks() []UserCallbacks {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]UserCallbacks, 0, len(a.userSubs))
	for _, cb := range a.userSubs {
		out = append(out, cb)
	}
	return out
}
