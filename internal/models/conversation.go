package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type ConversationType string

const (
	DirectConversation ConversationType = "direct"
	GroupConversation  ConversationType = "group"
)

type Conversation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Type ConversationType `gorm:"type:varchar(20);not null;default:'direct'" json:"type"`

	// Group-only display fields
	Name      string `gorm:"size:100" json:"name"`
	AvatarURL string `json:"avatar_url"`

	// DirectKey is "<minUserID>:<maxUserID>" for direct conversations and
	// empty for groups. The partial unique index is what makes concurrent
	// get-or-create converge on a single row.
	DirectKey *string `gorm:"uniqueIndex;type:varchar(64)" json:"-"`

	// Denormalized preview, maintained transactionally on every send.
	LastMessagePreview string     `gorm:"size:255" json:"last_message_preview"`
	LastMessageAt      *time.Time `gorm:"index" json:"last_message_at"`

	Participants []Participant `gorm:"foreignKey:ConversationID" json:"participants,omitempty"`
}

// DirectKeyFor builds the canonical sorted-pair key for a direct conversation.
func DirectKeyFor(userA, userB uint) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

type ConversationResponse struct {
	ID                 uint                  `json:"id"`
	Type               ConversationType      `json:"type"`
	Name               string                `json:"name,omitempty"`
	AvatarURL          string                `json:"avatar_url,omitempty"`
	LastMessagePreview string                `json:"last_message_preview"`
	LastMessageAt      *time.Time            `json:"last_message_at"`
	UnreadCount        int64                 `json:"unread_count"`
	IsMuted            bool                  `json:"is_muted"`
	Participants       []ParticipantResponse `json:"participants,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

func (c *Conversation) ToResponse() ConversationResponse {
	resp := ConversationResponse{
		ID:                 c.ID,
		Type:               c.Type,
		Name:               c.Name,
		AvatarURL:          c.AvatarURL,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      c.LastMessageAt,
		CreatedAt:          c.CreatedAt,
	}
	for _, p := range c.Participants {
		resp.Participants = append(resp.Participants, p.ToResponse())
	}
	return resp
}
