package models

import (
	"testing"
	"time"
)

func TestDirectKeyFor(t *testing.T) {
	tests := []struct {
		name     string
		userA    uint
		userB    uint
		expected string
	}{
		{"ordered pair", 1, 2, "1:2"},
		{"reversed pair", 2, 1, "1:2"},
		{"large ids", 40002, 31, "31:40002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DirectKeyFor(tt.userA, tt.userB); got != tt.expected {
				t.Errorf("DirectKeyFor(%d, %d) = %q, want %q", tt.userA, tt.userB, got, tt.expected)
			}
		})
	}
}

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    MessageStatus
		to      MessageStatus
		allowed bool
	}{
		{"sending to sent", StatusSending, StatusSent, true},
		{"sent to delivered", StatusSent, StatusDelivered, true},
		{"sent to read", StatusSent, StatusRead, true},
		{"delivered to read", StatusDelivered, StatusRead, true},
		{"read to delivered", StatusRead, StatusDelivered, false},
		{"delivered to sent", StatusDelivered, StatusSent, false},
		{"sending to failed", StatusSending, StatusFailed, true},
		{"sent to failed", StatusSent, StatusFailed, false},
		{"failed to sending", StatusFailed, StatusSending, true},
		{"failed to sent", StatusFailed, StatusSent, false},
		{"same status", StatusSent, StatusSent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%q -> %q) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestMessageToResponse(t *testing.T) {
	createdAt := time.Now()
	parentID := uint(4)

	message := &Message{
		ID:             10,
		CreatedAt:      createdAt,
		ClientID:       "client-123",
		ConversationID: 3,
		SenderID:       1,
		ParentID:       &parentID,
		ReplyCount:     2,
		Content:        "Hello, world!",
		MessageType:    TextMessage,
		Metadata:       MessageMetadata{URL: "https://example.com/a.png"},
		Status:         StatusSent,
		Sender: User{
			ID:       1,
			Username: "john_doe",
		},
	}

	response := message.ToResponse()

	if response.ID != message.ID {
		t.Errorf("ToResponse ID = %d, want %d", response.ID, message.ID)
	}
	if response.ClientID != message.ClientID {
		t.Errorf("ToResponse ClientID = %q, want %q", response.ClientID, message.ClientID)
	}
	if response.ConversationID != message.ConversationID {
		t.Errorf("ToResponse ConversationID = %d, want %d", response.ConversationID, message.ConversationID)
	}
	if response.Content != message.Content {
		t.Errorf("ToResponse Content = %q, want %q", response.Content, message.Content)
	}
	if response.ParentID == nil || *response.ParentID != parentID {
		t.Errorf("ToResponse ParentID = %v, want %d", response.ParentID, parentID)
	}
	if response.ReplyCount != message.ReplyCount {
		t.Errorf("ToResponse ReplyCount = %d, want %d", response.ReplyCount, message.ReplyCount)
	}
	if response.Status != message.Status {
		t.Errorf("ToResponse Status = %q, want %q", response.Status, message.Status)
	}
	if response.Sender.Username != "john_doe" {
		t.Errorf("ToResponse Sender.Username = %q, want john_doe", response.Sender.Username)
	}
}

func TestMessageToResponseTombstone(t *testing.T) {
	message := &Message{
		ID:            10,
		ClientID:      "client-123",
		SenderID:      1,
		Content:       "secret",
		MessageType:   FileMessage,
		Metadata:      MessageMetadata{URL: "https://example.com/f.pdf", Filename: "f.pdf", Size: 99},
		Status:        StatusRead,
		DeletedForAll: true,
	}

	response := message.ToResponse()

	if !response.DeletedForAll {
		t.Errorf("ToResponse DeletedForAll = false, want true")
	}
	if response.Content != "" {
		t.Errorf("tombstoned response leaked content %q", response.Content)
	}
	if response.Metadata != (MessageMetadata{}) {
		t.Errorf("tombstoned response leaked metadata %+v", response.Metadata)
	}
	if response.ID != message.ID {
		t.Errorf("tombstone must keep its id, got %d", response.ID)
	}
}

func TestConversationToResponse(t *testing.T) {
	now := time.Now()
	conv := &Conversation{
		ID:                 5,
		Type:               GroupConversation,
		Name:               "backend crew",
		LastMessagePreview: "see you there",
		LastMessageAt:      &now,
		Participants: []Participant{
			{ConversationID: 5, UserID: 1, Role: RoleOwner},
			{ConversationID: 5, UserID: 2, Role: RoleMember},
		},
	}

	response := conv.ToResponse()

	if response.ID != conv.ID {
		t.Errorf("ToResponse ID = %d, want %d", response.ID, conv.ID)
	}
	if response.Type != GroupConversation {
		t.Errorf("ToResponse Type = %q, want group", response.Type)
	}
	if response.Name != conv.Name {
		t.Errorf("ToResponse Name = %q, want %q", response.Name, conv.Name)
	}
	if response.LastMessagePreview != conv.LastMessagePreview {
		t.Errorf("ToResponse LastMessagePreview = %q, want %q", response.LastMessagePreview, conv.LastMessagePreview)
	}
	if len(response.Participants) != 2 {
		t.Errorf("ToResponse Participants = %d, want 2", len(response.Participants))
	}
}

func TestMessageTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		msgType  MessageType
		expected string
	}{
		{"TextMessage", TextMessage, "text"},
		{"ImageMessage", ImageMessage, "image"},
		{"FileMessage", FileMessage, "file"},
		{"ProjectShareMessage", ProjectShareMessage, "project_share"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.msgType) != tt.expected {
				t.Errorf("MessageType = %q, want %q", string(tt.msgType), tt.expected)
			}
		})
	}
}

func TestMessageStatusConstants(t *testing.T) {
	tests := []struct {
		name     string
		status   MessageStatus
		expected string
	}{
		{"StatusSending", StatusSending, "sending"},
		{"StatusSent", StatusSent, "sent"},
		{"StatusDelivered", StatusDelivered, "delivered"},
		{"StatusRead", StatusRead, "read"},
		{"StatusFailed", StatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("MessageStatus = %q, want %q", string(tt.status), tt.expected)
			}
		})
	}
}
