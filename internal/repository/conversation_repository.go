package repository

import (
	"errors"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"gorm.io/gorm"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreateDirect returns the single direct conversation for the unordered
// pair (userA, userB), creating it together with both participant rows when
// it does not exist. Concurrent first-contact races are resolved by the
// unique index on direct_key: the loser of the insert refetches the winner's
// row. The caller's participant row is restored in case they had previously
// deleted the conversation for themselves.
func (r *ConversationRepository) GetOrCreateDirect(userA, userB uint) (*models.Conversation, bool, error) {
	key := models.DirectKeyFor(userA, userB)

	conv, err := r.findByDirectKey(key)
	if err == nil {
		return conv, false, r.restoreParticipant(conv.ID, userA)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	created := models.Conversation{
		Type:      models.DirectConversation,
		DirectKey: &key,
	}
	txErr := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		participants := []models.Participant{
			{ConversationID: created.ID, UserID: userA, Role: models.RoleMember},
			{ConversationID: created.ID, UserID: userB, Role: models.RoleMember},
		}
		return tx.Create(&participants).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			// Lost the race; the other side's insert committed first.
			conv, err := r.findByDirectKey(key)
			if err != nil {
				return nil, false, err
			}
			return conv, false, r.restoreParticipant(conv.ID, userA)
		}
		return nil, false, txErr
	}

	full, err := r.FindByID(created.ID)
	return full, true, err
}

func (r *ConversationRepository) findByDirectKey(key string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.Preload("Participants.User").Where("direct_key = ?", key).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) restoreParticipant(conversationID, userID uint) error {
	return r.db.Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ? AND deleted_at IS NOT NULL", conversationID, userID).
		Update("deleted_at", nil).Error
}

// FindByID preloads participants with user display data.
func (r *ConversationRepository) FindByID(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.Preload("Participants.User").First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) CreateGroup(conv *models.Conversation, participants []models.Participant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].ConversationID = conv.ID
		}
		return tx.Create(&participants).Error
	})
}

// ListForUser returns conversations the user is an active participant of,
// newest activity first. Rows the user soft-deleted for themselves are
// excluded; the other participants still see them.
func (r *ConversationRepository) ListForUser(userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.
		Joins("JOIN participants p ON p.conversation_id = conversations.id").
		Where("p.user_id = ? AND p.deleted_at IS NULL", userID).
		Preload("Participants.User").
		Order("conversations.last_message_at DESC NULLS LAST, conversations.id DESC").
		Find(&convs).Error
	return convs, err
}

// UpdateMeta applies group name/avatar changes. Concurrent edits resolve as
// last write by commit order.
func (r *ConversationRepository) UpdateMeta(id uint, name, avatarURL string) error {
	return r.db.Model(&models.Conversation{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":       name,
			"avatar_url": avatarURL,
			"updated_at": time.Now(),
		}).Error
}
