package ws

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devhivehq/devhive-backend/internal/cache"
	"github.com/devhivehq/devhive-backend/internal/models"
)

// presenceScope validates a client-supplied scope and checks conversation
// membership. The global and per-conversation scopes use independent
// channels and must never be conflated.
func presenceScope(ctx *MessageContext, scope string) (string, error) {
	if scope == cache.GlobalScope {
		return scope, nil
	}
	idStr, ok := strings.CutPrefix(scope, "conv:")
	if !ok {
		return "", fmt.Errorf("unknown presence scope %q", scope)
	}
	conversationID, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return "", fmt.Errorf("invalid presence scope %q", scope)
	}
	// Joining a thread's presence requires being in the thread.
	if err := ctx.ConversationService.CheckMembership(uint(conversationID), ctx.UserID); err != nil {
		return "", err
	}
	return cache.ConversationScope(uint(conversationID)), nil
}

func presenceRecord(ctx *MessageContext) (models.PresenceUser, error) {
	user, err := ctx.Users.FindByID(ctx.UserID)
	if err != nil {
		return models.PresenceUser{}, err
	}
	return models.PresenceUser{
		UserID:    user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		OnlineAt:  time.Now(),
	}, nil
}

// MessagePresenceJoin announces the user in a presence scope.
type MessagePresenceJoin struct {
	Scope string `json:"scope"`
}

func (msg *MessagePresenceJoin) GetType() string {
	return "presence_join"
}

func (msg *MessagePresenceJoin) Process(ctx *MessageContext) error {
	scope, err := presenceScope(ctx, msg.Scope)
	if err != nil {
		return err
	}
	record, err := presenceRecord(ctx)
	if err != nil {
		return err
	}
	ctx.Hub.JoinPresence(scope, record)
	return nil
}

// MessagePresenceLeave withdraws the user from a presence scope.
type MessagePresenceLeave struct {
	Scope string `json:"scope"`
}

func (msg *MessagePresenceLeave) GetType() string {
	return "presence_leave"
}

func (msg *MessagePresenceLeave) Process(ctx *MessageContext) error {
	scope, err := presenceScope(ctx, msg.Scope)
	if err != nil {
		return err
	}
	ctx.Hub.LeavePresence(scope, ctx.UserID)
	return nil
}

// MessagePresenceHeartbeat refreshes the user's record; a record that stops
// getting heartbeats expires out of the registry on its own.
type MessagePresenceHeartbeat struct {
	Scope string `json:"scope"`
}

func (msg *MessagePresenceHeartbeat) GetType() string {
	return "presence_heartbeat"
}

func (msg *MessagePresenceHeartbeat) Process(ctx *MessageContext) error {
	scope, err := presenceScope(ctx, msg.Scope)
	if err != nil {
		return err
	}
	record, err := presenceRecord(ctx)
	if err != nil {
		return err
	}
	ctx.Hub.HeartbeatPresence(scope, record)
	return nil
}
