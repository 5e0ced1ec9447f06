package models

import (
	"time"

	"gorm.io/gorm"
)

type MessageType string

const (
	TextMessage         MessageType = "text"
	ImageMessage        MessageType = "image"
	FileMessage         MessageType = "file"
	ProjectShareMessage MessageType = "project_share"
)

type MessageStatus string

const (
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

// CanTransition enforces the forward-only status machine. The one backward
// edge is failed -> sending, taken on retry.
func (s MessageStatus) CanTransition(to MessageStatus) bool {
	if to == StatusFailed {
		return s == StatusSending
	}
	if s == StatusFailed {
		return to == StatusSending
	}
	order := map[MessageStatus]int{
		StatusSending:   0,
		StatusSent:      1,
		StatusDelivered: 2,
		StatusRead:      3,
	}
	from, ok := order[s]
	next, ok2 := order[to]
	return ok && ok2 && next > from
}

// MessageMetadata is the type-specific payload: attachment details for
// image/file messages, the shared project reference for project_share.
type MessageMetadata struct {
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Size      int64  `json:"size,omitempty"`
	ProjectID uint   `json:"project_id,omitempty"`
}

type Message struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index:idx_conv_created" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// ClientID is the client-generated UUID used for deduplication when the
	// same send is retried or the realtime event races the HTTP response.
	ClientID string `gorm:"type:varchar(36);uniqueIndex:idx_client_sender;not null" json:"client_id"`

	ConversationID uint `gorm:"not null;index:idx_conv_created" json:"conversation_id"`
	SenderID       uint `gorm:"not null;uniqueIndex:idx_client_sender;index" json:"sender_id"`

	// ParentID threads replies under another message in the same conversation.
	ParentID   *uint `gorm:"index" json:"parent_id"`
	ReplyCount int   `gorm:"default:0" json:"reply_count"`

	Content     string          `gorm:"type:text;not null" json:"content"`
	MessageType MessageType     `gorm:"type:varchar(20);default:'text'" json:"message_type"`
	Metadata    MessageMetadata `gorm:"serializer:json" json:"metadata"`

	Status   MessageStatus `gorm:"type:varchar(20);default:'sent';index" json:"status"`
	EditedAt *time.Time    `json:"edited_at"`

	// DeletedForAll marks the tombstone: the row stays so ordering and ids
	// remain stable for everyone else, but the content is gone.
	DeletedForAll bool `gorm:"default:false" json:"deleted_for_all"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender"`
}

// MessageHide is a per-user "delete for me" marker. The message row is
// untouched; it is filtered out of this user's reads only.
type MessageHide struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageResponse struct {
	ID             uint            `json:"id"`
	ClientID       string          `json:"client_id"`
	ConversationID uint            `json:"conversation_id"`
	SenderID       uint            `json:"sender_id"`
	Sender         UserResponse    `json:"sender"`
	ParentID       *uint           `json:"parent_id,omitempty"`
	ReplyCount     int             `json:"reply_count"`
	Content        string          `json:"content"`
	MessageType    MessageType     `json:"message_type"`
	Metadata       MessageMetadata `json:"metadata"`
	Status         MessageStatus   `json:"status"`
	EditedAt       *time.Time      `json:"edited_at"`
	DeletedForAll  bool            `json:"deleted_for_all"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (m *Message) ToResponse() MessageResponse {
	resp := MessageResponse{
		ID:             m.ID,
		ClientID:       m.ClientID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         m.Sender.ToResponse(),
		ParentID:       m.ParentID,
		ReplyCount:     m.ReplyCount,
		Content:        m.Content,
		MessageType:    m.MessageType,
		Metadata:       m.Metadata,
		Status:         m.Status,
		EditedAt:       m.EditedAt,
		DeletedForAll:  m.DeletedForAll,
		CreatedAt:      m.CreatedAt,
	}
	if m.DeletedForAll {
		resp.Content = ""
		resp.Metadata = MessageMetadata{}
	}
	return resp
}
