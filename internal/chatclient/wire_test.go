package chatclient

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		checkFn func(models.Message) bool
	}{
		{
			name: "snake_case row",
			raw: `{"id": 7, "client_id": "abc", "conversation_id": 3, "sender_id": 2,
				"content": "hi", "message_type": "text", "status": "sent",
				"created_at": "2026-08-30T10:00:00Z", "deleted_for_all": false,
				"sender_name": "bob"}`,
			checkFn: func(m models.Message) bool {
				return m.ID == 7 && m.ClientID == "abc" && m.ConversationID == 3 &&
					m.SenderID == 2 && m.Content == "hi" &&
					m.MessageType == models.TextMessage &&
					m.Status == models.StatusSent &&
					m.Sender.Username == "bob" && m.Sender.ID == 2 &&
					m.CreatedAt.Equal(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
			},
		},
		{
			name: "camelCase relay shape",
			raw: `{"id": 8, "conversationId": 3, "senderId": 2, "content": "hey",
				"messageType": "image", "createdAt": "2026-08-30T10:00:00Z",
				"replyCount": 2, "parentId": 5}`,
			checkFn: func(m models.Message) bool {
				return m.ID == 8 && m.ConversationID == 3 &&
					m.MessageType == models.ImageMessage && m.ReplyCount == 2 &&
					m.ParentID != nil && *m.ParentID == 5
			},
		},
		{
			name: "metadata payload",
			raw:  `{"id": 9, "conversation_id": 1, "sender_id": 1, "message_type": "file", "metadata": {"url": "https://x/f.pdf", "filename": "f.pdf", "size": 123}}`,
			checkFn: func(m models.Message) bool {
				return m.Metadata.URL == "https://x/f.pdf" && m.Metadata.Filename == "f.pdf" && m.Metadata.Size == 123
			},
		},
		{
			name: "unknown fields ignored",
			raw:  `{"id": 10, "conversation_id": 1, "sender_id": 1, "content": "x", "some_new_column": true}`,
			checkFn: func(m models.Message) bool {
				return m.ID == 10 && m.Content == "x"
			},
		},
		{
			name:    "malformed payload",
			raw:     `"not an object"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMessage(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeMessage error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.checkFn != nil && !tt.checkFn(got) {
				t.Errorf("normalized message mismatch: %+v", got)
			}
		})
	}
}

func TestNormalizeConversation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		checkFn func(models.Conversation) bool
	}{
		{
			name: "snake_case row",
			raw:  `{"id": 4, "conversation_type": "group", "name": "devs", "last_message_preview": "hello", "last_message_at": "2026-08-30T11:00:00Z"}`,
			checkFn: func(c models.Conversation) bool {
				return c.ID == 4 && c.Type == models.GroupConversation &&
					c.Name == "devs" && c.LastMessagePreview == "hello" &&
					c.LastMessageAt != nil
			},
		},
		{
			name: "camelCase with bare type key",
			raw:  `{"id": 5, "type": "direct", "lastMessagePreview": "yo", "avatarUrl": "https://a/b.png"}`,
			checkFn: func(c models.Conversation) bool {
				return c.ID == 5 && c.Type == models.DirectConversation &&
					c.LastMessagePreview == "yo" && c.AvatarURL == "https://a/b.png"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeConversation(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("NormalizeConversation error: %v", err)
			}
			if !tt.checkFn(got) {
				t.Errorf("normalized conversation mismatch: %+v", got)
			}
		})
	}
}
