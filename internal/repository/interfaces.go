package repository

import (
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
)

// UserRepositoryInterface defines the contract for user lookups. Account
// lifecycle lives in the external profile service; this side only resolves
// display data for participants and presence.
type UserRepositoryInterface interface {
	FindByID(id uint) (*models.User, error)
	FindByIDs(ids []uint) ([]models.User, error)
	UpdateOnlineStatus(userID uint, isOnline bool) error
}

// ConversationRepositoryInterface defines the contract for conversation rows.
type ConversationRepositoryInterface interface {
	GetOrCreateDirect(userA, userB uint) (*models.Conversation, bool, error)
	CreateGroup(conv *models.Conversation, participants []models.Participant) error
	FindByID(id uint) (*models.Conversation, error)
	ListForUser(userID uint) ([]models.Conversation, error)
	UpdateMeta(id uint, name, avatarURL string) error
}

// ParticipantRepositoryInterface defines the contract for per-user
// conversation state.
type ParticipantRepositoryInterface interface {
	Get(conversationID, userID uint) (*models.Participant, error)
	ListActive(conversationID uint) ([]models.Participant, error)
	SetMuted(conversationID, userID uint, muted bool) error
	SetCleared(conversationID, userID uint, at time.Time) error
	SetDeleted(conversationID, userID uint, at time.Time) error
	Restore(conversationID, userID uint) error
	MarkRead(conversationID, userID uint, at time.Time, firstUnreadID *uint) error
	UpdateRole(conversationID, userID uint, role models.ParticipantRole) error
	CountUnread(conversationID, userID uint, firstUnreadID *uint, clearedAt *time.Time) (int64, error)
}

// MessageRepositoryInterface defines the contract for message rows and the
// transactional send step.
type MessageRepositoryInterface interface {
	// CreateInConversation atomically inserts the message, refreshes the
	// conversation preview, bumps the parent reply count for threaded
	// replies, and sets first_unread_message_id for every other active
	// participant that was fully caught up.
	CreateInConversation(message *models.Message, preview string) error
	FindByID(id uint) (*models.Message, error)
	FindByClientID(clientID string, senderID uint) (*models.Message, error)
	ListByConversation(conversationID, viewerID uint, clearedAt *time.Time, cursor uint, limit int) ([]models.Message, error)
	UpdateContent(messageID uint, content string, editedAt time.Time) error
	TombstoneForAll(messageID uint) error
	HideForUser(messageID, userID uint) error
	MarkDelivered(messageID uint) error
	MarkReadUpTo(conversationID, readerID, uptoMessageID uint) (int64, error)
	// NextUnreadAfter returns the id of the oldest message visible to the
	// reader, sent by someone else, with an id greater than afterID. Nil
	// when the reader is fully caught up past afterID.
	NextUnreadAfter(conversationID, readerID, afterID uint, clearedAt *time.Time) (*uint, error)
}
