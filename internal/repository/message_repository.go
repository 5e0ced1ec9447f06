package repository

import (
	"errors"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/devhivehq/devhive-backend/internal/validation"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreateInConversation is the one hard consistency point of the store: the
// message insert, the conversation preview refresh, the threaded-reply count
// bump and the first-unread pointer assignment commit or fail together, so
// no client can ever observe a message whose conversation row is stale.
func (r *MessageRepository) CreateInConversation(message *models.Message, preview string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Conversation{}).
			Where("id = ?", message.ConversationID).
			Updates(map[string]interface{}{
				"last_message_preview": validation.PreviewOf(preview, 255),
				"last_message_at":      message.CreatedAt,
			}).Error; err != nil {
			return err
		}

		if message.ParentID != nil {
			if err := tx.Model(&models.Message{}).
				Where("id = ? AND conversation_id = ?", *message.ParentID, message.ConversationID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
				return err
			}
		}

		// Every other active participant that was fully caught up now has
		// this message as their first unread one.
		return tx.Exec(`
			UPDATE participants
			SET first_unread_message_id = ?
			WHERE conversation_id = ?
			  AND user_id <> ?
			  AND deleted_at IS NULL
			  AND first_unread_message_id IS NULL
		`, message.ID, message.ConversationID, message.SenderID).Error
	})
}

func (r *MessageRepository) FindByID(id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Preload("Sender").First(&message, id).Error
	return &message, err
}

func (r *MessageRepository) FindByClientID(clientID string, senderID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Preload("Sender").
		Where("client_id = ? AND sender_id = ?", clientID, senderID).
		First(&message).Error
	return &message, err
}

// ListByConversation returns a newest-first page of the viewer's visible
// history: messages they hid for themselves and messages at or before their
// clear timestamp are filtered out; tombstoned rows stay so ordering and ids
// remain stable.
func (r *MessageRepository) ListByConversation(conversationID, viewerID uint, clearedAt *time.Time, cursor uint, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := r.db.Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Where("NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)", viewerID)
	if clearedAt != nil {
		q = q.Where("created_at > ?", *clearedAt)
	}
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}

	var messages []models.Message
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) UpdateContent(messageID uint, content string, editedAt time.Time) error {
	return r.db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   content,
			"edited_at": editedAt,
		}).Error
}

// TombstoneForAll clears the content but keeps the row.
func (r *MessageRepository) TombstoneForAll(messageID uint) error {
	return r.db.Model(&models.Message{}).Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":         "",
			"metadata":        "{}",
			"deleted_for_all": true,
		}).Error
}

func (r *MessageRepository) HideForUser(messageID, userID uint) error {
	return r.db.Exec(`
		INSERT INTO message_hides (message_id, user_id, created_at)
		VALUES (?, ?, NOW())
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, messageID, userID).Error
}

func (r *MessageRepository) MarkDelivered(messageID uint) error {
	return r.db.Model(&models.Message{}).
		Where("id = ? AND status = ?", messageID, models.StatusSent).
		Update("status", models.StatusDelivered).Error
}

// NextUnreadAfter finds where the reader's unread pointer should land after
// a partial read: the oldest message from someone else past afterID that the
// reader can still see. Nil means nothing unread remains.
func (r *MessageRepository) NextUnreadAfter(conversationID, readerID, afterID uint, clearedAt *time.Time) (*uint, error) {
	q := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND id > ?", conversationID, readerID, afterID).
		Where("NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)", readerID)
	if clearedAt != nil {
		q = q.Where("created_at > ?", *clearedAt)
	}

	var message models.Message
	err := q.Order("created_at ASC, id ASC").Select("id").First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id := message.ID
	return &id, nil
}

// MarkReadUpTo advances others' messages up to the given id to read. The
// status machine is forward-only, so already-read rows are untouched.
func (r *MessageRepository) MarkReadUpTo(conversationID, readerID, uptoMessageID uint) (int64, error) {
	res := r.db.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND id <= ?", conversationID, readerID, uptoMessageID).
		Where("status IN ?", []models.MessageStatus{models.StatusSent, models.StatusDelivered}).
		Update("status", models.StatusRead)
	return res.RowsAffected, res.Error
}
