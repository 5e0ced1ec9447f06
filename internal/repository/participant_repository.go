package repository

import (
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"gorm.io/gorm"
)

type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Get(conversationID, userID uint) (*models.Participant, error) {
	var p models.Participant
	err := r.db.Preload("User").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) ListActive(conversationID uint) ([]models.Participant, error) {
	var participants []models.Participant
	err := r.db.Preload("User").
		Where("conversation_id = ? AND deleted_at IS NULL", conversationID).
		Find(&participants).Error
	return participants, err
}

func (r *ParticipantRepository) SetMuted(conversationID, userID uint, muted bool) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{"is_muted": muted})
}

func (r *ParticipantRepository) SetCleared(conversationID, userID uint, at time.Time) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{
		"cleared_at":              at,
		"first_unread_message_id": nil,
	})
}

func (r *ParticipantRepository) SetDeleted(conversationID, userID uint, at time.Time) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{"deleted_at": at})
}

func (r *ParticipantRepository) Restore(conversationID, userID uint) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{"deleted_at": nil})
}

// MarkRead stamps last_read_at and moves the unread pointer to the oldest
// message still unread, or clears it when the caller is fully caught up.
// Only ever applied to the caller's own row.
func (r *ParticipantRepository) MarkRead(conversationID, userID uint, at time.Time, firstUnreadID *uint) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{
		"last_read_at":            at,
		"first_unread_message_id": firstUnreadID,
	})
}

func (r *ParticipantRepository) UpdateRole(conversationID, userID uint, role models.ParticipantRole) error {
	return r.updateOwn(conversationID, userID, map[string]interface{}{"role": role})
}

func (r *ParticipantRepository) updateOwn(conversationID, userID uint, updates map[string]interface{}) error {
	res := r.db.Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountUnread counts messages at or after the first-unread pointer that were
// sent by someone else and are not hidden behind the participant's clear
// timestamp. A nil pointer means fully caught up.
func (r *ParticipantRepository) CountUnread(conversationID, userID uint, firstUnreadID *uint, clearedAt *time.Time) (int64, error) {
	if firstUnreadID == nil {
		return 0, nil
	}

	q := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("created_at >= (SELECT created_at FROM messages WHERE id = ?)", *firstUnreadID)
	if clearedAt != nil {
		q = q.Where("created_at > ?", *clearedAt)
	}

	var count int64
	err := q.Count(&count).Error
	return count, err
}
