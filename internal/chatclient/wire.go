package chatclient

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// The change stream is not consistent about field naming: row payloads come
// through snake_cased while some relay paths re-emit them camelCased. Each
// field lists every spelling it may arrive under; normalization walks this
// table and nothing else, so consumers only ever see the canonical shapes.

type messageField struct {
	keys   []string
	assign func(m *models.Message, v any)
}

var messageFields = []messageField{
	{[]string{"id"}, func(m *models.Message, v any) { m.ID = asUint(v) }},
	{[]string{"client_id", "clientId"}, func(m *models.Message, v any) { m.ClientID = asString(v) }},
	{[]string{"conversation_id", "conversationId"}, func(m *models.Message, v any) { m.ConversationID = asUint(v) }},
	{[]string{"sender_id", "senderId"}, func(m *models.Message, v any) { m.SenderID = asUint(v) }},
	{[]string{"parent_id", "parentId"}, func(m *models.Message, v any) { m.ParentID = asUintPtr(v) }},
	{[]string{"reply_count", "replyCount"}, func(m *models.Message, v any) { m.ReplyCount = int(asUint(v)) }},
	{[]string{"content"}, func(m *models.Message, v any) { m.Content = asString(v) }},
	{[]string{"message_type", "messageType", "type"}, func(m *models.Message, v any) { m.MessageType = models.MessageType(asString(v)) }},
	{[]string{"status"}, func(m *models.Message, v any) { m.Status = models.MessageStatus(asString(v)) }},
	{[]string{"metadata"}, func(m *models.Message, v any) { m.Metadata = asMetadata(v) }},
	{[]string{"created_at", "createdAt"}, func(m *models.Message, v any) { m.CreatedAt = asTime(v) }},
	{[]string{"edited_at", "editedAt"}, func(m *models.Message, v any) { m.EditedAt = asTimePtr(v) }},
	{[]string{"deleted_for_all", "deletedForAll"}, func(m *models.Message, v any) { m.DeletedForAll = asBool(v) }},
	{[]string{"sender_name", "senderName"}, func(m *models.Message, v any) { m.Sender.Username = asString(v) }},
	{[]string{"sender_avatar_url", "senderAvatarUrl"}, func(m *models.Message, v any) { m.Sender.AvatarURL = asString(v) }},
}

type conversationField struct {
	keys   []string
	assign func(c *models.Conversation, v any)
}

var conversationFields = []conversationField{
	{[]string{"id"}, func(c *models.Conversation, v any) { c.ID = asUint(v) }},
	{[]string{"conversation_type", "conversationType", "type"}, func(c *models.Conversation, v any) { c.Type = models.ConversationType(asString(v)) }},
	{[]string{"name"}, func(c *models.Conversation, v any) { c.Name = asString(v) }},
	{[]string{"avatar_url", "avatarUrl"}, func(c *models.Conversation, v any) { c.AvatarURL = asString(v) }},
	{[]string{"last_message_preview", "lastMessagePreview"}, func(c *models.Conversation, v any) { c.LastMessagePreview = asString(v) }},
	{[]string{"last_message_at", "lastMessageAt"}, func(c *models.Conversation, v any) { c.LastMessageAt = asTimePtr(v) }},
}

// NormalizeMessage maps a raw row payload into the canonical message shape.
func NormalizeMessage(raw json.RawMessage) (models.Message, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Message{}, fmt.Errorf("malformed message row: %w", err)
	}
	var m models.Message
	for _, f := range messageFields {
		for _, key := range f.keys {
			if v, ok := row[key]; ok && v != nil {
				f.assign(&m, v)
				break
			}
		}
	}
	m.Sender.ID = m.SenderID
	return m, nil
}

// NormalizeConversation maps a raw row payload into the canonical
// conversation shape.
func NormalizeConversation(raw json.RawMessage) (models.Conversation, error) {
	var row map[string]any
	if err := json.Unmarshal(raw, &row); err != nil {
		return models.Conversation{}, fmt.Errorf("malformed conversation row: %w", err)
	}
	var c models.Conversation
	for _, f := range conversationFields {
		for _, key := range f.keys {
			if v, ok := row[key]; ok && v != nil {
				f.assign(&c, v)
				break
			}
		}
	}
	return c, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asUint(v any) uint {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return uint(n)
	case json.Number:
		i, _ := n.Int64()
		if i < 0 {
			return 0
		}
		return uint(i)
	default:
		return 0
	}
}

func asUintPtr(v any) *uint {
	n := asUint(v)
	if n == 0 {
		return nil
	}
	return &n
}

func asTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func asTimePtr(v any) *time.Time {
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

func asMetadata(v any) models.MessageMetadata {
	var md models.MessageMetadata
	raw, err := json.Marshal(v)
	if err != nil {
		return md
	}
	_ = json.Unmarshal(raw, &md)
	return md
}
