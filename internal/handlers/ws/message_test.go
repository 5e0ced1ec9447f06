package ws

import (
	"encoding/json"
	"testing"

	"github.com/devhivehq/devhive-backend/internal/models"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"presence join", &MessagePresenceJoin{Scope: "conv:7"}},
		{"presence leave", &MessagePresenceLeave{Scope: "global"}},
		{"typing", &MessageTyping{ConversationID: 3, IsTyping: true}},
		{"ping", &MessagePing{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Serialize(tt.msg)
			if err != nil {
				t.Fatalf("Serialize error: %v", err)
			}

			got, err := Deserialize(data)
			if err != nil {
				t.Fatalf("Deserialize error: %v", err)
			}
			if got.GetType() != tt.msg.GetType() {
				t.Errorf("round trip type = %q, want %q", got.GetType(), tt.msg.GetType())
			}
		})
	}
}

func TestDeserializePayloadFields(t *testing.T) {
	raw := []byte(`{"type": "typing", "payload": {"conversation_id": 42, "is_typing": true}}`)

	msg, err := Deserialize(raw)
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}

	typing, ok := msg.(*MessageTyping)
	if !ok {
		t.Fatalf("Deserialize returned %T, want *MessageTyping", msg)
	}
	if typing.ConversationID != 42 || !typing.IsTyping {
		t.Errorf("payload fields lost: %+v", typing)
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	if _, err := Deserialize([]byte(`{"type": "no_such_event", "payload": {}}`)); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestDeserializeMalformedFrame(t *testing.T) {
	if _, err := Deserialize([]byte(`{{{`)); err == nil {
		t.Error("expected error for malformed frame")
	}
}

func TestTypeRegistryCoversClientEvents(t *testing.T) {
	registry := GetTypeRegistry()
	for _, eventType := range []string{
		"presence_join", "presence_leave", "presence_heartbeat",
		"typing", "ack", "ping", "pong",
	} {
		if _, ok := registry[eventType]; !ok {
			t.Errorf("type registry missing %q", eventType)
		}
	}
}

func TestMessageDeletedEventStripsContent(t *testing.T) {
	msg := &models.Message{
		ID:             9,
		ConversationID: 3,
		SenderID:       1,
		Content:        "secret",
		MessageType:    models.FileMessage,
		Metadata:       models.MessageMetadata{URL: "https://x/f.pdf", Filename: "f.pdf"},
		DeletedForAll:  true,
	}

	env := NewMessageDeletedEvent(msg)
	if env.Type != EventMessageDeleted {
		t.Fatalf("event type = %q, want %q", env.Type, EventMessageDeleted)
	}

	var row MessageRow
	if err := json.Unmarshal(env.Payload, &row); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if row.ID != 9 || !row.DeletedForAll {
		t.Errorf("tombstone row wrong: %+v", row)
	}
	if row.Content != "" || row.Metadata != (models.MessageMetadata{}) {
		t.Errorf("tombstone leaked content: %+v", row)
	}
}

func TestMessageInsertedEventCarriesSenderName(t *testing.T) {
	msg := &models.Message{
		ID:             10,
		ClientID:       "abc",
		ConversationID: 3,
		SenderID:       2,
		Content:        "hi",
		MessageType:    models.TextMessage,
		Status:         models.StatusSent,
		Sender:         models.User{ID: 2, Username: "bob"},
	}

	env := NewMessageInsertedEvent(msg)

	var row MessageRow
	if err := json.Unmarshal(env.Payload, &row); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if row.SenderName != "bob" {
		t.Errorf("sender_name = %q, want bob", row.SenderName)
	}
	if row.ClientID != "abc" {
		t.Errorf("client_id = %q, want abc", row.ClientID)
	}
}

func TestPresenceSyncEventShape(t *testing.T) {
	users := []models.PresenceUser{
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
	}

	env := NewPresenceSyncEvent("conv:3", users)
	if env.Type != EventPresenceSync {
		t.Fatalf("event type = %q, want %q", env.Type, EventPresenceSync)
	}

	var payload PresencePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Scope != "conv:3" || len(payload.Users) != 2 {
		t.Errorf("sync payload wrong: %+v", payload)
	}
}
