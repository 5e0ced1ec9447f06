package ws

import "github.com/devhivehq/devhive-backend/internal/cache"

// MessageTyping relays a typing indicator to everyone currently viewing the
// conversation. Ephemeral: not validated against history, never queued.
type MessageTyping struct {
	ConversationID uint `json:"conversation_id"`
	IsTyping       bool `json:"is_typing"`
}

func (msg *MessageTyping) GetType() string {
	return "typing"
}

func (msg *MessageTyping) Process(ctx *MessageContext) error {
	// Must be a participant to broadcast into the thread.
	if err := ctx.ConversationService.CheckMembership(msg.ConversationID, ctx.UserID); err != nil {
		return err
	}

	event := NewTypingEvent(msg.ConversationID, ctx.UserID, msg.IsTyping)
	for _, userID := range ctx.Hub.ScopeMembers(cache.ConversationScope(msg.ConversationID)) {
		if userID == ctx.UserID {
			continue
		}
		ctx.Hub.SendToUser(userID, event)
	}
	return nil
}
