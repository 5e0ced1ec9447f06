package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/devhivehq/devhive-backend/internal/repository"
	"github.com/devhivehq/devhive-backend/internal/validation"
	"gorm.io/gorm"
)

type ConversationService struct {
	conversationRepo repository.ConversationRepositoryInterface
	participantRepo  repository.ParticipantRepositoryInterface
	userRepo         repository.UserRepositoryInterface
}

func NewConversationService(
	conversationRepo repository.ConversationRepositoryInterface,
	participantRepo repository.ParticipantRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		participantRepo:  participantRepo,
		userRepo:         userRepo,
	}
}

// GetOrCreateDirect returns the unique direct conversation between the two
// users. Idempotent and race-safe: both sides calling it concurrently
// converge on one row through the sorted-pair uniqueness constraint.
func (s *ConversationService) GetOrCreateDirect(callerID, otherUserID uint) (*models.Conversation, error) {
	if callerID == otherUserID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", ErrValidation)
	}
	if _, err := s.userRepo.FindByID(otherUserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, otherUserID)
		}
		return nil, err
	}

	conv, _, err := s.conversationRepo.GetOrCreateDirect(callerID, otherUserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the uniqueness race and the winner's row was not visible
			// on the refetch. The next attempt will find it.
			return nil, fmt.Errorf("%w: direct conversation with user %d", ErrTransient, otherUserID)
		}
		return nil, err
	}
	return conv, nil
}

// FindByID returns the conversation with participants preloaded, without
// any caller-scoped state attached.
func (s *ConversationService) FindByID(conversationID uint) (*models.Conversation, error) {
	conv, err := s.conversationRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
		}
		return nil, err
	}
	return conv, nil
}

type CreateGroupInput struct {
	Name           string `json:"name"`
	AvatarURL      string `json:"avatar_url"`
	ParticipantIDs []uint `json:"participant_ids"`
}

func (s *ConversationService) CreateGroup(creatorID uint, input CreateGroupInput) (*models.Conversation, error) {
	name := validation.NormalizeGroupName(input.Name)
	if name != "" && !validation.ValidateGroupName(name) {
		return nil, fmt.Errorf("%w: invalid group name", ErrValidation)
	}
	if len(input.ParticipantIDs) == 0 {
		return nil, fmt.Errorf("%w: a group needs at least one other participant", ErrValidation)
	}

	conv := &models.Conversation{
		Type:      models.GroupConversation,
		Name:      name,
		AvatarURL: input.AvatarURL,
	}

	participants := []models.Participant{
		{UserID: creatorID, Role: models.RoleOwner},
	}
	seen := map[uint]bool{creatorID: true}
	for _, id := range input.ParticipantIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.userRepo.FindByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
			}
			return nil, err
		}
		participants = append(participants, models.Participant{UserID: id, Role: models.RoleMember})
	}

	if err := s.conversationRepo.CreateGroup(conv, participants); err != nil {
		return nil, err
	}
	return s.conversationRepo.FindByID(conv.ID)
}

// ListForUser returns the caller's conversations with per-caller unread
// counts and mute flags attached. Conversations the caller deleted for
// themselves are excluded by the repository query.
func (s *ConversationService) ListForUser(userID uint) ([]models.ConversationResponse, error) {
	convs, err := s.conversationRepo.ListForUser(userID)
	if err != nil {
		return nil, err
	}

	responses := make([]models.ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		resp := conv.ToResponse()
		for _, p := range conv.Participants {
			if p.UserID != userID {
				continue
			}
			resp.IsMuted = p.IsMuted
			count, err := s.participantRepo.CountUnread(conv.ID, userID, p.FirstUnreadMessageID, p.ClearedAt)
			if err != nil {
				return nil, err
			}
			resp.UnreadCount = count
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// ComputeUnreadCount is the pointer-based unread rule: messages at or after
// first_unread_message_id, not sent by the user, not hidden by their clear.
func (s *ConversationService) ComputeUnreadCount(conversationID, userID uint) (int64, error) {
	p, err := s.activeParticipant(conversationID, userID)
	if err != nil {
		return 0, err
	}
	return s.participantRepo.CountUnread(conversationID, userID, p.FirstUnreadMessageID, p.ClearedAt)
}

func (s *ConversationService) SetMuted(conversationID, userID uint, muted bool) error {
	if _, err := s.activeParticipant(conversationID, userID); err != nil {
		return err
	}
	return s.participantRepo.SetMuted(conversationID, userID, muted)
}

// Clear hides the caller's history up to now. Other participants are
// unaffected, and the caller's unread pointer resets with it.
func (s *ConversationService) Clear(conversationID, userID uint) error {
	if _, err := s.activeParticipant(conversationID, userID); err != nil {
		return err
	}
	return s.participantRepo.SetCleared(conversationID, userID, time.Now())
}

// Delete hides the conversation for the caller only. A later message intent
// between the same pair restores it through get-or-create.
func (s *ConversationService) Delete(conversationID, userID uint) error {
	if _, err := s.activeParticipant(conversationID, userID); err != nil {
		return err
	}
	return s.participantRepo.SetDeleted(conversationID, userID, time.Now())
}

// UpdateRole changes another participant's role. Only owners and admins may
// do this; everything else on a participant row is self-service only.
func (s *ConversationService) UpdateRole(conversationID, actorID, targetUserID uint, role models.ParticipantRole) error {
	actor, err := s.activeParticipant(conversationID, actorID)
	if err != nil {
		return err
	}
	if !actor.CanModerate() {
		return fmt.Errorf("%w: role changes require owner or admin", ErrForbidden)
	}
	if role != models.RoleAdmin && role != models.RoleMember && role != models.RoleOwner {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if _, err := s.activeParticipant(conversationID, targetUserID); err != nil {
		return err
	}
	return s.participantRepo.UpdateRole(conversationID, targetUserID, role)
}

// UpdateMeta edits group name/avatar. Last write by commit order wins on
// concurrent edits.
func (s *ConversationService) UpdateMeta(conversationID, actorID uint, name, avatarURL string) error {
	conv, err := s.conversationRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: conversation %d", ErrNotFound, conversationID)
		}
		return err
	}
	if conv.Type != models.GroupConversation {
		return fmt.Errorf("%w: direct conversations have no metadata", ErrValidation)
	}
	actor, err := s.activeParticipant(conversationID, actorID)
	if err != nil {
		return err
	}
	if !actor.CanModerate() {
		return fmt.Errorf("%w: metadata changes require owner or admin", ErrForbidden)
	}
	name = validation.NormalizeGroupName(name)
	if name != "" && !validation.ValidateGroupName(name) {
		return fmt.Errorf("%w: invalid group name", ErrValidation)
	}
	return s.conversationRepo.UpdateMeta(conversationID, name, avatarURL)
}

func (s *ConversationService) ActiveParticipants(conversationID uint) ([]models.Participant, error) {
	return s.participantRepo.ListActive(conversationID)
}

// CheckMembership returns nil when the user is an active participant.
func (s *ConversationService) CheckMembership(conversationID, userID uint) error {
	_, err := s.activeParticipant(conversationID, userID)
	return err
}

func (s *ConversationService) activeParticipant(conversationID, userID uint) (*models.Participant, error) {
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
