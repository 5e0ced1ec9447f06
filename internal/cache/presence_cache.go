package cache

import (
	"fmt"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// PresenceTTL matches the hub's pong timeout: a record that stops getting
// heartbeats falls out of the registry on its own.
const PresenceTTL = 90 * time.Second

// PresenceCache is the ephemeral per-scope registry of who is online. Two
// independent scopes exist: the site-wide one and one per open conversation.
// Nothing here is durable; a Redis flush simply empties the lists until the
// next heartbeats arrive.
type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

// GlobalScope is the site-wide presence scope; conversation scopes are
// ConversationScope(id).
const GlobalScope = "global"

func ConversationScope(conversationID uint) string {
	return fmt.Sprintf("conv:%d", conversationID)
}

func presenceKey(scope string) string {
	return "presence:" + scope
}

// Join writes the user's presence record into the scope's registry. Called
// on join and refreshed on every heartbeat; last heartbeat wins per user key.
func (pc *PresenceCache) Join(scope string, user models.PresenceUser) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(user)
	if err != nil {
		return err
	}
	key := presenceKey(scope)
	if err := pc.redis.HashSet(key, fmt.Sprintf("%d", user.UserID), data); err != nil {
		return err
	}
	return pc.redis.Expire(key, PresenceTTL)
}

func (pc *PresenceCache) Leave(scope string, userID uint) error {
	if pc == nil || pc.redis == nil {
		return nil
	}
	return pc.redis.HashDelete(presenceKey(scope), fmt.Sprintf("%d", userID))
}

// Snapshot returns the full current member list for a scope, used to build
// the sync event sent to a freshly joined client.
func (pc *PresenceCache) Snapshot(scope string) ([]models.PresenceUser, error) {
	if pc == nil || pc.redis == nil {
		return nil, nil
	}
	fields, err := pc.redis.HashGetAll(presenceKey(scope))
	if err != nil {
		return nil, err
	}
	users := make([]models.PresenceUser, 0, len(fields))
	for _, raw := range fields {
		var user models.PresenceUser
		if err := msgpack.Unmarshal([]byte(raw), &user); err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}
