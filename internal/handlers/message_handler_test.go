package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/devhivehq/devhive-backend/internal/cache"
	"github.com/devhivehq/devhive-backend/internal/handlers/ws"
	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/devhivehq/devhive-backend/internal/service"
)

// Thin in-memory repositories: only what the send path touches does real
// work, everything else is inert.

type stubMessageRepo struct {
	messages map[uint]*models.Message
	nextID   uint
}

func newStubMessageRepo() *stubMessageRepo {
	return &stubMessageRepo{messages: make(map[uint]*models.Message), nextID: 1}
}

func (r *stubMessageRepo) CreateInConversation(message *models.Message, preview string) error {
	message.ID = r.nextID
	r.nextID++
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages[message.ID] = message
	return nil
}

func (r *stubMessageRepo) FindByID(id uint) (*models.Message, error) {
	if m, ok := r.messages[id]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubMessageRepo) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	for _, m := range r.messages {
		if m.ClientID == clientID && m.SenderID == senderID {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubMessageRepo) ListByConversation(conversationID, viewerID uint, clearedAt *time.Time, cursor uint, limit int) ([]models.Message, error) {
	return nil, nil
}

func (r *stubMessageRepo) UpdateContent(messageID uint, content string, editedAt time.Time) error {
	return nil
}

func (r *stubMessageRepo) TombstoneForAll(messageID uint) error { return nil }

func (r *stubMessageRepo) HideForUser(messageID, userID uint) error { return nil }

func (r *stubMessageRepo) MarkDelivered(messageID uint) error { return nil }

func (r *stubMessageRepo) MarkReadUpTo(conversationID, readerID, uptoMessageID uint) (int64, error) {
	return 0, nil
}

func (r *stubMessageRepo) NextUnreadAfter(conversationID, readerID, afterID uint, clearedAt *time.Time) (*uint, error) {
	return nil, nil
}

// stubParticipantRepo treats users 1 and 2 as active members of every
// conversation.
type stubParticipantRepo struct{}

func (r *stubParticipantRepo) Get(conversationID, userID uint) (*models.Participant, error) {
	if userID != 1 && userID != 2 {
		return nil, gorm.ErrRecordNotFound
	}
	return &models.Participant{ConversationID: conversationID, UserID: userID, Role: models.RoleMember}, nil
}

func (r *stubParticipantRepo) ListActive(conversationID uint) ([]models.Participant, error) {
	return []models.Participant{
		{ConversationID: conversationID, UserID: 1, Role: models.RoleMember},
		{ConversationID: conversationID, UserID: 2, Role: models.RoleMember},
	}, nil
}

func (r *stubParticipantRepo) SetMuted(conversationID, userID uint, muted bool) error { return nil }

func (r *stubParticipantRepo) SetCleared(conversationID, userID uint, at time.Time) error { return nil }

func (r *stubParticipantRepo) SetDeleted(conversationID, userID uint, at time.Time) error { return nil }

func (r *stubParticipantRepo) Restore(conversationID, userID uint) error { return nil }

func (r *stubParticipantRepo) MarkRead(conversationID, userID uint, at time.Time, firstUnreadID *uint) error {
	return nil
}

func (r *stubParticipantRepo) UpdateRole(conversationID, userID uint, role models.ParticipantRole) error {
	return nil
}

func (r *stubParticipantRepo) CountUnread(conversationID, userID uint, firstUnreadID *uint, clearedAt *time.Time) (int64, error) {
	return 0, nil
}

type stubConversationRepo struct{}

func (r *stubConversationRepo) GetOrCreateDirect(userA, userB uint) (*models.Conversation, bool, error) {
	return nil, false, gorm.ErrRecordNotFound
}

func (r *stubConversationRepo) CreateGroup(conv *models.Conversation, participants []models.Participant) error {
	return nil
}

func (r *stubConversationRepo) FindByID(id uint) (*models.Conversation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubConversationRepo) ListForUser(userID uint) ([]models.Conversation, error) {
	return nil, nil
}

func (r *stubConversationRepo) UpdateMeta(id uint, name, avatarURL string) error { return nil }

type stubUserRepo struct{}

func (r *stubUserRepo) FindByID(id uint) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (r *stubUserRepo) FindByIDs(ids []uint) ([]models.User, error) { return nil, nil }

func (r *stubUserRepo) UpdateOnlineStatus(userID uint, isOnline bool) error { return nil }

func newMessageTestApp() (*fiber.App, *stubMessageRepo) {
	msgRepo := newStubMessageRepo()
	partRepo := &stubParticipantRepo{}

	messageService := service.NewMessageService(msgRepo, partRepo, nil)
	conversationService := service.NewConversationService(&stubConversationRepo{}, partRepo, &stubUserRepo{})
	handler := NewMessageHandler(
		messageService,
		conversationService,
		cache.NewConversationCache(nil),
		ws.NewHub(cache.NewPresenceCache(nil)),
	)

	app := fiber.New()
	app.Post("/api/messages", func(c *fiber.Ctx) error {
		c.Locals("userID", uint(1))
		return handler.SendMessage(c)
	})
	return app, msgRepo
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestSendMessageOverLimitRejected(t *testing.T) {
	os.Setenv("MAX_MESSAGE_LENGTH", "10")
	defer os.Unsetenv("MAX_MESSAGE_LENGTH")

	app, msgRepo := newMessageTestApp()

	resp := postJSON(t, app, "/api/messages", fiber.Map{
		"conversation_id": 1,
		"content":         strings.Repeat("x", 20),
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	if len(msgRepo.messages) != 0 {
		t.Errorf("over-limit content was persisted: %d rows", len(msgRepo.messages))
	}
}

func TestSendMessageAtLimitStoredIntact(t *testing.T) {
	os.Setenv("MAX_MESSAGE_LENGTH", "10")
	defer os.Unsetenv("MAX_MESSAGE_LENGTH")

	tests := []struct {
		name    string
		content string
	}{
		{"ASCII at limit", strings.Repeat("x", 10)},
		{"Multibyte at rune limit", strings.Repeat("é", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newMessageTestApp()

			resp := postJSON(t, app, "/api/messages", fiber.Map{
				"conversation_id": 1,
				"content":         tt.content,
			})
			if resp.StatusCode != fiber.StatusCreated {
				t.Fatalf("status = %d, want %d", resp.StatusCode, fiber.StatusCreated)
			}

			var created struct {
				Content string `json:"content"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if created.Content != tt.content {
				t.Errorf("content = %q, want %q untouched", created.Content, tt.content)
			}
		})
	}
}
