package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// TestHelper provides utility functions for tests
type TestHelper struct {
	t *testing.T
}

func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// CreateTestUser creates a test user with default values
func (h *TestHelper) CreateTestUser(id uint, username string) *models.User {
	if id == 0 {
		id = 1
	}
	if username == "" {
		username = "testuser"
	}

	return &models.User{
		ID:          id,
		Username:    username,
		DisplayName: "Test User",
		AvatarURL:   "https://example.com/avatar.jpg",
		IsOnline:    false,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// CreateTestConversation creates a direct conversation between two users
func (h *TestHelper) CreateTestConversation(id uint, a, b uint) *models.Conversation {
	if id == 0 {
		id = 1
	}
	key := models.DirectKeyFor(a, b)
	return &models.Conversation{
		ID:        id,
		Type:      models.DirectConversation,
		DirectKey: &key,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Participants: []models.Participant{
			{ConversationID: id, UserID: a, Role: models.RoleMember},
			{ConversationID: id, UserID: b, Role: models.RoleMember},
		},
	}
}

// CreateTestMessage creates a test message with default values
func (h *TestHelper) CreateTestMessage(id uint, conversationID, senderID uint, content string) *models.Message {
	if id == 0 {
		id = 1
	}
	if conversationID == 0 {
		conversationID = 1
	}
	if senderID == 0 {
		senderID = 1
	}
	if content == "" {
		content = "Test message"
	}

	return &models.Message{
		ID:             id,
		ClientID:       fmt.Sprintf("client-%d", id),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    models.TextMessage,
		Status:         models.StatusSent,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
		Sender: models.User{
			ID:       senderID,
			Username: "sender",
		},
	}
}

// SetupTestEnv sets up required environment variables for testing
func (h *TestHelper) SetupTestEnv() {
	os.Setenv("JWT_SECRET", "test-secret-key-for-testing-only")
	os.Setenv("DATABASE_URL", "")
	os.Setenv("MAX_MESSAGE_LENGTH", "")
}

// TeardownTestEnv cleans up environment variables after testing
func (h *TestHelper) TeardownTestEnv() {
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("MAX_MESSAGE_LENGTH")
}

// AssertError checks if an error occurred when it should (or shouldn't)
func (h *TestHelper) AssertError(err error, shouldErr bool, testName string) {
	if (err != nil) != shouldErr {
		if shouldErr {
			h.t.Errorf("%s: expected error but got nil", testName)
		} else {
			h.t.Errorf("%s: unexpected error: %v", testName, err)
		}
	}
}

// AssertEqual checks if two values are equal
func (h *TestHelper) AssertEqual(got, want interface{}, testName string) {
	if got != want {
		h.t.Errorf("%s: got %v, want %v", testName, got, want)
	}
}

// AssertNotNil checks if a value is not nil
func (h *TestHelper) AssertNotNil(value interface{}, testName string) {
	if value == nil {
		h.t.Errorf("%s: expected non-nil value", testName)
	}
}

// GetRecordNotFoundError returns an error that mimics a missing row
func GetRecordNotFoundError() error {
	return gorm.ErrRecordNotFound
}
