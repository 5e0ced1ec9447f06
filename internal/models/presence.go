package models

import "time"

// PresenceUser is the ephemeral "currently connected" record announced over
// the presence channels. It is never persisted; a lost connection simply
// drops it from the next sync snapshot.
type PresenceUser struct {
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url"`
	OnlineAt  time.Time `json:"online_at"`
}
