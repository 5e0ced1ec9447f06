package ws

import (
	"encoding/json"
	"log"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// Server-to-client event types. Message and conversation events carry raw
// row-change payloads in wire (snake_case column) shape; the client adapter
// owns normalization into domain types.
const (
	EventMessageInserted     = "message_inserted"
	EventMessageUpdated      = "message_updated"
	EventMessageDeleted      = "message_deleted"
	EventConversationUpdated = "conversation_updated"
	EventPresenceSync        = "presence_sync"
	EventPresenceJoin        = "presence_join"
	EventPresenceLeave       = "presence_leave"
	EventTyping              = "typing"
)

// Envelope is the wire format wrapper for everything the hub sends.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newEnvelope(eventType string, payload interface{}) Envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling %s payload: %v", eventType, err)
		data = []byte("{}")
	}
	return Envelope{Type: eventType, Payload: data}
}

// MessageRow is a message row change as it appears on the wire.
type MessageRow struct {
	ID             uint                   `json:"id"`
	ClientID       string                 `json:"client_id"`
	ConversationID uint                   `json:"conversation_id"`
	SenderID       uint                   `json:"sender_id"`
	SenderName     string                 `json:"sender_name"`
	ParentID       *uint                  `json:"parent_id,omitempty"`
	ReplyCount     int                    `json:"reply_count"`
	Content        string                 `json:"content"`
	MessageType    string                 `json:"message_type"`
	Status         string                 `json:"status"`
	Metadata       models.MessageMetadata `json:"metadata"`
	EditedAt       *time.Time             `json:"edited_at,omitempty"`
	DeletedForAll  bool                   `json:"deleted_for_all"`
	CreatedAt      time.Time              `json:"created_at"`
}

func messageRowOf(m *models.Message) MessageRow {
	row := MessageRow{
		ID:             m.ID,
		ClientID:       m.ClientID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.Sender.Username,
		ParentID:       m.ParentID,
		ReplyCount:     m.ReplyCount,
		Content:        m.Content,
		MessageType:    string(m.MessageType),
		Status:         string(m.Status),
		Metadata:       m.Metadata,
		EditedAt:       m.EditedAt,
		DeletedForAll:  m.DeletedForAll,
		CreatedAt:      m.CreatedAt,
	}
	if m.DeletedForAll {
		row.Content = ""
		row.Metadata = models.MessageMetadata{}
	}
	return row
}

// ConversationRow is a conversation preview change as it appears on the wire.
type ConversationRow struct {
	ID                 uint       `json:"id"`
	ConversationType   string     `json:"conversation_type"`
	Name               string     `json:"name,omitempty"`
	AvatarURL          string     `json:"avatar_url,omitempty"`
	LastMessagePreview string     `json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at"`
}

func NewMessageInsertedEvent(m *models.Message) Envelope {
	return newEnvelope(EventMessageInserted, messageRowOf(m))
}

func NewMessageUpdatedEvent(m *models.Message) Envelope {
	return newEnvelope(EventMessageUpdated, messageRowOf(m))
}

// NewMessageDeletedEvent announces a delete-for-everyone tombstone. The row
// keeps its id and position; only the content is gone.
func NewMessageDeletedEvent(m *models.Message) Envelope {
	return newEnvelope(EventMessageDeleted, messageRowOf(m))
}

func NewConversationUpdatedEvent(c *models.Conversation) Envelope {
	return newEnvelope(EventConversationUpdated, ConversationRow{
		ID:                 c.ID,
		ConversationType:   string(c.Type),
		Name:               c.Name,
		AvatarURL:          c.AvatarURL,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      c.LastMessageAt,
	})
}

// PresencePayload carries presence events; Users is only set on sync.
type PresencePayload struct {
	Scope  string                `json:"scope"`
	UserID uint                  `json:"user_id,omitempty"`
	User   *models.PresenceUser  `json:"user,omitempty"`
	Users  []models.PresenceUser `json:"users,omitempty"`
}

func NewPresenceSyncEvent(scope string, users []models.PresenceUser) Envelope {
	return newEnvelope(EventPresenceSync, PresencePayload{Scope: scope, Users: users})
}

func NewPresenceJoinEvent(scope string, user models.PresenceUser) Envelope {
	return newEnvelope(EventPresenceJoin, PresencePayload{Scope: scope, UserID: user.UserID, User: &user})
}

func NewPresenceLeaveEvent(scope string, userID uint) Envelope {
	return newEnvelope(EventPresenceLeave, PresencePayload{Scope: scope, UserID: userID})
}

// TypingPayload is ephemeral and never queued or persisted.
type TypingPayload struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
	IsTyping       bool `json:"is_typing"`
}

func NewTypingEvent(conversationID, userID uint, isTyping bool) Envelope {
	return newEnvelope(EventTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
}
