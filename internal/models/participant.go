package models

import (
	"time"
)

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant is one user's membership row in a conversation. Everything on
// it except Role is owned by that user: read receipts, mute, clear and delete
// never affect what the other participants see.
type Participant struct {
	ConversationID uint            `gorm:"primaryKey" json:"conversation_id"`
	UserID         uint            `gorm:"primaryKey;index" json:"user_id"`
	Role           ParticipantRole `gorm:"type:varchar(20);default:'member'" json:"role"`
	JoinedAt       time.Time       `gorm:"autoCreateTime" json:"joined_at"`

	LastReadAt *time.Time `json:"last_read_at"`
	IsMuted    bool       `gorm:"default:false" json:"is_muted"`

	// ClearedAt hides messages created at or before it from this user only.
	ClearedAt *time.Time `json:"cleared_at"`
	// DeletedAt hides the whole conversation from this user only.
	DeletedAt *time.Time `json:"deleted_at"`

	// FirstUnreadMessageID points at the oldest message this user has not
	// read. Null means fully caught up. Set transactionally on send, cleared
	// on mark-read; renders the unread divider and anchors unread counts.
	FirstUnreadMessageID *uint `json:"first_unread_message_id"`

	User         User         `gorm:"foreignKey:UserID" json:"user"`
	Conversation Conversation `gorm:"foreignKey:ConversationID" json:"-"`
}

type ParticipantResponse struct {
	ConversationID       uint            `json:"conversation_id"`
	UserID               uint            `json:"user_id"`
	Role                 ParticipantRole `json:"role"`
	LastReadAt           *time.Time      `json:"last_read_at"`
	IsMuted              bool            `json:"is_muted"`
	FirstUnreadMessageID *uint           `json:"first_unread_message_id"`
	User                 UserResponse    `json:"user"`
}

func (p *Participant) ToResponse() ParticipantResponse {
	return ParticipantResponse{
		ConversationID:       p.ConversationID,
		UserID:               p.UserID,
		Role:                 p.Role,
		LastReadAt:           p.LastReadAt,
		IsMuted:              p.IsMuted,
		FirstUnreadMessageID: p.FirstUnreadMessageID,
		User:                 p.User.ToResponse(),
	}
}

// IsActive reports whether the participant still sees the conversation.
func (p *Participant) IsActive() bool {
	return p.DeletedAt == nil
}

// CanModerate reports whether the participant may act on others' rows
// (role changes, delete-for-everyone on others' messages).
func (p *Participant) CanModerate() bool {
	return p.Role == RoleOwner || p.Role == RoleAdmin
}
