package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/devhivehq/devhive-backend/internal/notify"
	"github.com/devhivehq/devhive-backend/internal/repository"
	"github.com/devhivehq/devhive-backend/internal/validation"
	"gorm.io/gorm"
)

// EditWindow bounds how long a sender may edit their own message.
const EditWindow = 15 * time.Minute

type DeleteMode string

const (
	DeleteForMe       DeleteMode = "me"
	DeleteForEveryone DeleteMode = "all"
)

type MessageService struct {
	messageRepo     repository.MessageRepositoryInterface
	participantRepo repository.ParticipantRepositoryInterface
	notifier        notify.Notifier
}

func NewMessageService(
	messageRepo repository.MessageRepositoryInterface,
	participantRepo repository.ParticipantRepositoryInterface,
	notifier notify.Notifier,
) *MessageService {
	return &MessageService{
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		notifier:        notifier,
	}
}

type SendMessageInput struct {
	ConversationID uint                   `json:"conversation_id"`
	ClientID       string                 `json:"client_id"`
	Content        string                 `json:"content"`
	MessageType    models.MessageType     `json:"message_type"`
	Metadata       models.MessageMetadata `json:"metadata"`
	ParentID       *uint                  `json:"parent_id"`
}

// Send persists a message and transactionally refreshes the conversation's
// denormalized state. Retries with the same client id return the already
// persisted row instead of inserting a duplicate.
func (s *MessageService) Send(senderID uint, input SendMessageInput) (*models.Message, error) {
	if _, err := s.activeParticipant(input.ConversationID, senderID); err != nil {
		return nil, err
	}

	if input.MessageType == "" {
		input.MessageType = models.TextMessage
	}
	input.Content = validation.TrimAndLimit(input.Content, validation.MaxMessageLength()+1)
	if !validation.ValidateMessageContent(input.Content, input.MessageType == models.TextMessage) {
		return nil, fmt.Errorf("%w: content must be 1-%d characters", ErrValidation, validation.MaxMessageLength())
	}

	if input.ClientID != "" {
		if existing, err := s.messageRepo.FindByClientID(input.ClientID, senderID); err == nil {
			return existing, nil
		}
	}

	if input.ParentID != nil {
		parent, err := s.messageRepo.FindByID(*input.ParentID)
		if err != nil || parent.ConversationID != input.ConversationID {
			return nil, fmt.Errorf("%w: parent message", ErrNotFound)
		}
	}

	message := &models.Message{
		ClientID:       input.ClientID,
		ConversationID: input.ConversationID,
		SenderID:       senderID,
		ParentID:       input.ParentID,
		Content:        input.Content,
		MessageType:    input.MessageType,
		Metadata:       input.Metadata,
		Status:         models.StatusSent,
	}

	if err := s.messageRepo.CreateInConversation(message, previewFor(message)); err != nil {
		return nil, err
	}

	s.notifyRecipients(input.ConversationID, senderID)

	return s.messageRepo.FindByID(message.ID)
}

// notifyRecipients fires one notification per unmuted recipient. Best-effort:
// a notification failure must never block or fail message delivery.
func (s *MessageService) notifyRecipients(conversationID, senderID uint) {
	if s.notifier == nil {
		return
	}
	participants, err := s.participantRepo.ListActive(conversationID)
	if err != nil {
		return
	}
	for _, p := range participants {
		if p.UserID == senderID || p.IsMuted {
			continue
		}
		_ = s.notifier.MessageReceived(p.UserID, senderID, conversationID)
	}
}

// Edit replaces the content of the sender's own message within the edit
// window. Tombstoned messages cannot be edited.
func (s *MessageService) Edit(messageID, editorID uint, content string) (*models.Message, error) {
	message, err := s.findMessage(messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != editorID {
		return nil, fmt.Errorf("%w: only the sender may edit", ErrForbidden)
	}
	if message.DeletedForAll {
		return nil, fmt.Errorf("%w: message %d was deleted", ErrConflict, messageID)
	}
	if time.Since(message.CreatedAt) > EditWindow {
		return nil, fmt.Errorf("%w: edit window expired", ErrForbidden)
	}
	content = validation.TrimAndLimit(content, validation.MaxMessageLength()+1)
	if !validation.ValidateMessageContent(content, message.MessageType == models.TextMessage) {
		return nil, fmt.Errorf("%w: content must be 1-%d characters", ErrValidation, validation.MaxMessageLength())
	}

	if err := s.messageRepo.UpdateContent(messageID, content, time.Now()); err != nil {
		return nil, err
	}
	return s.messageRepo.FindByID(messageID)
}

// Delete removes a message either for the requester only (any participant)
// or for everyone (sender, or a conversation owner/admin). Delete-for-
// everyone tombstones the row so other participants' ordering stays intact.
func (s *MessageService) Delete(messageID, requesterID uint, mode DeleteMode) error {
	message, err := s.findMessage(messageID)
	if err != nil {
		return err
	}
	requester, err := s.activeParticipant(message.ConversationID, requesterID)
	if err != nil {
		return err
	}

	switch mode {
	case DeleteForMe:
		return s.messageRepo.HideForUser(messageID, requesterID)
	case DeleteForEveryone:
		if message.SenderID != requesterID && !requester.CanModerate() {
			return fmt.Errorf("%w: delete for everyone requires sender, owner or admin", ErrForbidden)
		}
		return s.messageRepo.TombstoneForAll(messageID)
	default:
		return fmt.Errorf("%w: unknown delete mode %q", ErrValidation, mode)
	}
}

// MarkRead advances the reader's receipt state: others' messages up to the
// given id move to read, and the unread pointer moves to the oldest message
// still unread past that id, clearing only when none remains. A zero
// uptoMessageID means "up to the latest visible message".
func (s *MessageService) MarkRead(conversationID, userID, uptoMessageID uint) error {
	p, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return err
	}

	if uptoMessageID == 0 {
		latest, err := s.messageRepo.ListByConversation(conversationID, userID, p.ClearedAt, 0, 1)
		if err != nil {
			return err
		}
		if len(latest) == 0 {
			return s.participantRepo.MarkRead(conversationID, userID, time.Now(), nil)
		}
		uptoMessageID = latest[0].ID
	}

	if _, err := s.messageRepo.MarkReadUpTo(conversationID, userID, uptoMessageID); err != nil {
		return err
	}
	next, err := s.messageRepo.NextUnreadAfter(conversationID, userID, uptoMessageID, p.ClearedAt)
	if err != nil {
		return err
	}
	return s.participantRepo.MarkRead(conversationID, userID, time.Now(), next)
}

// MarkDelivered records a recipient's delivery acknowledgement. Only active
// participants of the message's conversation may acknowledge it.
func (s *MessageService) MarkDelivered(messageID, userID uint) error {
	message, err := s.findMessage(messageID)
	if err != nil {
		return err
	}
	if _, err := s.activeParticipant(message.ConversationID, userID); err != nil {
		return err
	}
	return s.messageRepo.MarkDelivered(messageID)
}

// History returns the viewer's visible page of the conversation.
func (s *MessageService) History(conversationID, viewerID uint, cursor uint, limit int) ([]models.Message, error) {
	p, err := s.activeParticipant(conversationID, viewerID)
	if err != nil {
		return nil, err
	}
	return s.messageRepo.ListByConversation(conversationID, viewerID, p.ClearedAt, cursor, limit)
}

// Find fetches a message with its sender loaded.
func (s *MessageService) Find(messageID uint) (*models.Message, error) {
	return s.findMessage(messageID)
}

func (s *MessageService) findMessage(messageID uint) (*models.Message, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return nil, err
	}
	return message, nil
}

func (s *MessageService) activeParticipant(conversationID, userID uint) (*models.Participant, error) {
	p, err := s.participantRepo.Get(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: not a participant of conversation %d", ErrForbidden, conversationID)
		}
		return nil, err
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
	}
	return p, nil
}

func previewFor(m *models.Message) string {
	switch m.MessageType {
	case models.ImageMessage:
		return "[image]"
	case models.FileMessage:
		if m.Metadata.Filename != "" {
			return "[file] " + m.Metadata.Filename
		}
		return "[file]"
	case models.ProjectShareMessage:
		return "[shared a project]"
	default:
		return m.Content
	}
}
