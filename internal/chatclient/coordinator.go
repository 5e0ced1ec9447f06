package chatclient

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// Store is the authoritative backend. The coordinator never talks to the
// transport directly so tests can drive it with a fake.
type Store interface {
	Send(conversationID uint, clientID, content string, messageType models.MessageType, metadata models.MessageMetadata, parentID *uint) (*models.Message, error)
	Edit(messageID uint, content string) (*models.Message, error)
	Delete(messageID uint, mode string) error
	MarkRead(conversationID, uptoMessageID uint) error
}

// sendTimeout bounds how long a speculative send may sit unacknowledged
// before it flips to failed on its own.
const sendTimeout = 30 * time.Second

// tieBreakWindow is how close in time a server copy must be to a pending
// speculative send to be treated as the same message when ids can't match.
const tieBreakWindow = time.Minute

type pendingSend struct {
	clientID       string
	conversationID uint
	content        string
	startedAt      time.Time
	snapshot       []models.Message
	timer          *time.Timer
}

// Coordinator is the client-resident cache. Every mutation is applied
// speculatively first, then reconciled against whichever authority arrives
// first: the request's own response or the realtime event. Both paths are
// idempotent, keyed by server id.
type Coordinator struct {
	store  Store
	selfID uint

	mu            sync.Mutex
	conversations map[uint][]models.Message
	pending       map[string]*pendingSend

	// OnError surfaces rollback causes without blocking; nil means drop.
	OnError func(error)
	// OnSettled fires when a speculative send reconciles or fails. Used by
	// the UI to clear spinners and by tests to synchronize.
	OnSettled func(clientID string, msg *models.Message, err error)

	now func() time.Time
}

func NewCoordinator(store Store, selfID uint) *Coordinator {
	return &Coordinator{
		store:         store,
		selfID:        selfID,
		conversations: make(map[uint][]models.Message),
		pending:       make(map[string]*pendingSend),
		now:           time.Now,
	}
}

// Attach subscribes the coordinator to a conversation's realtime stream.
func (c *Coordinator) Attach(adapter *Adapter, conversationID uint) *Subscription {
	return adapter.SubscribeConversation(conversationID, ConversationCallbacks{
		OnInsert: c.ApplyInserted,
		OnUpdate: c.ApplyUpdated,
		OnDelete: c.ApplyDeleted,
	})
}

// Seed loads an authoritative history page into the cache, replacing
// whatever was there. Pending speculative sends survive the reseed.
func (c *Coordinator) Seed(conversationID uint, messages []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := make([]models.Message, len(messages))
	copy(merged, messages)
	for _, m := range c.conversations[conversationID] {
		if m.ID == 0 {
			merged = append(merged, m)
		}
	}
	c.conversations[conversationID] = sortMessages(merged)
}

// Messages returns a copy of the conversation's cached messages, oldest
// first.
func (c *Coordinator) Messages(conversationID uint) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.conversations[conversationID]))
	copy(out, c.conversations[conversationID])
	return out
}

// SendMessage applies the speculative record and issues the request in the
// background. The returned message carries the temporary client id and
// status sending; the settled outcome arrives via OnSettled.
func (c *Coordinator) SendMessage(conversationID uint, content string, messageType models.MessageType, metadata models.MessageMetadata, parentID *uint) models.Message {
	if messageType == "" {
		messageType = models.TextMessage
	}

	spec := models.Message{
		ClientID:       uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       c.selfID,
		Content:        content,
		MessageType:    messageType,
		Metadata:       metadata,
		ParentID:       parentID,
		Status:         models.StatusSending,
		CreatedAt:      c.now(),
	}

	c.mu.Lock()
	p := &pendingSend{
		clientID:       spec.ClientID,
		conversationID: conversationID,
		content:        content,
		startedAt:      spec.CreatedAt,
		snapshot:       snapshotOf(c.conversations[conversationID]),
	}
	c.pending[spec.ClientID] = p
	c.insertLocked(spec)
	p.timer = time.AfterFunc(sendTimeout, func() { c.timeOut(spec.ClientID) })
	c.mu.Unlock()

	go c.issueSend(spec)
	return spec
}

// RetrySend re-issues a failed send with the same client id, flipping it
// back to sending first.
func (c *Coordinator) RetrySend(clientID string) bool {
	c.mu.Lock()
	var spec *models.Message
	for convID, msgs := range c.conversations {
		for i := range msgs {
			if msgs[i].ClientID == clientID && msgs[i].ID == 0 {
				if msgs[i].Status != models.StatusFailed {
					c.mu.Unlock()
					return false
				}
				msgs[i].Status = models.StatusSending
				m := msgs[i]
				spec = &m

				p := &pendingSend{
					clientID:       clientID,
					conversationID: convID,
					content:        m.Content,
					startedAt:      c.now(),
					snapshot:       snapshotOf(msgs),
				}
				c.pending[clientID] = p
				p.timer = time.AfterFunc(sendTimeout, func() { c.timeOut(clientID) })
			}
		}
	}
	c.mu.Unlock()

	if spec == nil {
		return false
	}
	go c.issueSend(*spec)
	return true
}

func (c *Coordinator) issueSend(spec models.Message) {
	msg, err := c.store.Send(spec.ConversationID, spec.ClientID, spec.Content, spec.MessageType, spec.Metadata, spec.ParentID)
	if err != nil {
		c.failSend(spec.ClientID, err)
		return
	}
	// The realtime event may have reconciled this already; both paths are
	// safe to take.
	c.ApplyInserted(*msg)
	c.settle(spec.ClientID, msg, nil)
}

// ApplyInserted merges an authoritative insert. Duplicate delivery of the
// same event leaves exactly one copy, keyed by server id.
func (c *Coordinator) ApplyInserted(msg models.Message) {
	if msg.ID == 0 {
		return
	}

	c.mu.Lock()
	msgs := c.conversations[msg.ConversationID]

	// Already applied: refresh in place.
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			c.mu.Unlock()
			return
		}
	}

	// Retire the matching speculative copy, if any. The client id matches
	// when the row came from our own request path; when the event beats the
	// response the id still matches because the server echoes it back, but a
	// relay that strips it falls back to content+sender+timestamp proximity.
	retired := false
	retiredClientID := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != 0 {
			continue
		}
		if c.matchesSpeculative(msgs[i], msg) {
			retiredClientID = msgs[i].ClientID
			msgs = append(msgs[:i], msgs[i+1:]...)
			retired = true
			break
		}
	}

	msgs = append(msgs, msg)

	// A new child corrects the parent's speculative count; the server copy
	// is authoritative once present.
	if msg.ParentID != nil {
		for i := range msgs {
			if msgs[i].ID == *msg.ParentID && !retired {
				msgs[i].ReplyCount++
			}
		}
	}

	c.conversations[msg.ConversationID] = sortMessages(msgs)
	c.mu.Unlock()

	// Settle under the speculative copy's own client id: a relay that strips
	// the field would otherwise leave the pending record and its timer alive.
	if retired {
		c.settle(retiredClientID, &msg, nil)
	}
}

// ApplyUpdated replaces the cached copy by server id; unknown ids are
// inserted so an update racing ahead of its insert is not lost.
func (c *Coordinator) ApplyUpdated(msg models.Message) {
	if msg.ID == 0 {
		return
	}
	c.mu.Lock()
	msgs := c.conversations[msg.ConversationID]
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = msg
			c.mu.Unlock()
			return
		}
	}
	c.conversations[msg.ConversationID] = sortMessages(append(msgs, msg))
	c.mu.Unlock()
}

// ApplyDeleted applies a tombstone. The row keeps its position so ordering
// and ids of everything after it are untouched.
func (c *Coordinator) ApplyDeleted(msg models.Message) {
	if msg.ID == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := c.conversations[msg.ConversationID]
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i].Content = ""
			msgs[i].Metadata = models.MessageMetadata{}
			msgs[i].DeletedForAll = true
		}
	}
}

// EditMessage applies the new content speculatively and rolls back to the
// captured snapshot if the server refuses.
func (c *Coordinator) EditMessage(conversationID, messageID uint, content string) {
	c.mu.Lock()
	snapshot := snapshotOf(c.conversations[conversationID])
	msgs := c.conversations[conversationID]
	found := false
	for i := range msgs {
		if msgs[i].ID == messageID {
			msgs[i].Content = content
			now := c.now()
			msgs[i].EditedAt = &now
			found = true
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}

	go func() {
		msg, err := c.store.Edit(messageID, content)
		if err != nil {
			c.restore(conversationID, snapshot)
			c.surface(err)
			return
		}
		c.ApplyUpdated(*msg)
	}()
}

// DeleteMessage hides or tombstones speculatively, then confirms with the
// server, restoring the snapshot on refusal.
func (c *Coordinator) DeleteMessage(conversationID, messageID uint, mode string) {
	c.mu.Lock()
	snapshot := snapshotOf(c.conversations[conversationID])
	msgs := c.conversations[conversationID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID != messageID {
			continue
		}
		if mode == "all" {
			msgs[i].Content = ""
			msgs[i].Metadata = models.MessageMetadata{}
			msgs[i].DeletedForAll = true
		} else {
			msgs = append(msgs[:i], msgs[i+1:]...)
		}
	}
	c.conversations[conversationID] = msgs
	c.mu.Unlock()

	go func() {
		if err := c.store.Delete(messageID, mode); err != nil {
			c.restore(conversationID, snapshot)
			c.surface(err)
		}
	}()
}

// MarkRead advances read state speculatively by flipping delivered messages
// from others to read, then confirms.
func (c *Coordinator) MarkRead(conversationID, uptoMessageID uint) {
	c.mu.Lock()
	snapshot := snapshotOf(c.conversations[conversationID])
	msgs := c.conversations[conversationID]
	for i := range msgs {
		if msgs[i].SenderID == c.selfID {
			continue
		}
		if uptoMessageID != 0 && msgs[i].ID > uptoMessageID {
			continue
		}
		if msgs[i].Status.CanTransition(models.StatusRead) {
			msgs[i].Status = models.StatusRead
		}
	}
	c.mu.Unlock()

	go func() {
		if err := c.store.MarkRead(conversationID, uptoMessageID); err != nil {
			c.restore(conversationID, snapshot)
			c.surface(err)
		}
	}()
}

// insertLocked places a speculative message, bumping the parent's child
// count when it is a threaded reply. Callers hold c.mu.
func (c *Coordinator) insertLocked(spec models.Message) {
	msgs := c.conversations[spec.ConversationID]
	if spec.ParentID != nil {
		for i := range msgs {
			if msgs[i].ID == *spec.ParentID {
				msgs[i].ReplyCount++
			}
		}
	}
	c.conversations[spec.ConversationID] = sortMessages(append(msgs, spec))
}

func (c *Coordinator) matchesSpeculative(spec, server models.Message) bool {
	if server.SenderID != c.selfID || spec.SenderID != c.selfID {
		return false
	}
	if server.ClientID != "" && spec.ClientID == server.ClientID {
		return true
	}
	if spec.Content != server.Content {
		return false
	}
	delta := server.CreatedAt.Sub(spec.CreatedAt)
	if delta < 0 {
		delta = -delta
	}
	return delta <= tieBreakWindow
}

// failSend rolls the conversation back to the pre-mutation snapshot, then
// re-adds the speculative message as failed so the retry affordance has
// something to show.
func (c *Coordinator) failSend(clientID string, cause error) {
	c.mu.Lock()
	p, ok := c.pending[clientID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, clientID)
	p.timer.Stop()

	var failed *models.Message
	for _, m := range c.conversations[p.conversationID] {
		if m.ClientID == clientID && m.ID == 0 {
			f := m
			f.Status = models.StatusFailed
			failed = &f
			break
		}
	}

	restored := snapshotOf(p.snapshot)
	if failed != nil {
		restored = sortMessages(append(restored, *failed))
	}
	c.conversations[p.conversationID] = restored
	c.mu.Unlock()

	c.surface(cause)
	if c.OnSettled != nil {
		c.OnSettled(clientID, failed, cause)
	}
}

func (c *Coordinator) timeOut(clientID string) {
	c.failSend(clientID, ErrSendTimeout)
}

// settle cancels the pending bookkeeping once a send has reconciled.
func (c *Coordinator) settle(clientID string, msg *models.Message, err error) {
	c.mu.Lock()
	p, ok := c.pending[clientID]
	if ok {
		delete(c.pending, clientID)
		p.timer.Stop()
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if c.OnSettled != nil {
		c.OnSettled(clientID, msg, err)
	}
}

func (c *Coordinator) restore(conversationID uint, snapshot []models.Message) {
	c.mu.Lock()
	c.conversations[conversationID] = snapshotOf(snapshot)
	c.mu.Unlock()
}

func (c *Coordinator) surface(err error) {
	if err == nil {
		return
	}
	if c.OnError != nil {
		c.OnError(err)
		return
	}
	log.Printf("chatclient: mutation failed: %v", err)
}

func snapshotOf(msgs []models.Message) []models.Message {
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

// sortMessages orders oldest first: by server id when both sides have one,
// otherwise by timestamp so speculative entries land at the tail.
func sortMessages(msgs []models.Message) []models.Message {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if a.ID != 0 && b.ID != 0 {
			return a.ID < b.ID
		}
		if a.ID != 0 && b.ID == 0 {
			return !b.CreatedAt.Before(a.CreatedAt)
		}
		if a.ID == 0 && b.ID != 0 {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return msgs
}
