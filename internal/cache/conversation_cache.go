package cache

import (
	"fmt"
	"time"

	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ConversationListTTL = 2 * time.Minute
	MessagePageTTL      = 5 * time.Minute
	UnreadCountTTL      = 1 * time.Minute
)

// ConversationCache holds the hot read paths: a user's conversation list,
// the first page of a conversation's history, and unread counts. All entries
// are invalidated on send and on read-state changes; TTLs only bound
// staleness if an invalidation is missed.
type ConversationCache struct {
	redis *RedisCache
}

func NewConversationCache(redis *RedisCache) *ConversationCache {
	return &ConversationCache{redis: redis}
}

func listKey(userID uint) string {
	return fmt.Sprintf("convlist:%d", userID)
}

// pageKey is per viewer because clears and per-user hides make history
// viewer-specific.
func pageKey(conversationID, viewerID uint) string {
	return fmt.Sprintf("convpage:%d:%d", conversationID, viewerID)
}

func unreadKey(conversationID, userID uint) string {
	return fmt.Sprintf("unread:%d:%d", conversationID, userID)
}

func (cc *ConversationCache) GetList(userID uint) ([]models.ConversationResponse, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}
	data, err := cc.redis.Get(listKey(userID))
	if err != nil || data == nil {
		return nil, false
	}
	var list []models.ConversationResponse
	if err := msgpack.Unmarshal(data, &list); err != nil {
		return nil, false
	}
	return list, true
}

func (cc *ConversationCache) SetList(userID uint, list []models.ConversationResponse) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(list)
	if err != nil {
		return err
	}
	return cc.redis.Set(listKey(userID), data, ConversationListTTL)
}

func (cc *ConversationCache) InvalidateList(userID uint) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.Delete(listKey(userID))
}

func (cc *ConversationCache) GetMessagePage(conversationID, viewerID uint) ([]models.Message, bool) {
	if cc == nil || cc.redis == nil {
		return nil, false
	}
	data, err := cc.redis.Get(pageKey(conversationID, viewerID))
	if err != nil || data == nil {
		return nil, false
	}
	var messages []models.Message
	if err := msgpack.Unmarshal(data, &messages); err != nil {
		return nil, false
	}
	return messages, true
}

func (cc *ConversationCache) SetMessagePage(conversationID, viewerID uint, messages []models.Message) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(messages)
	if err != nil {
		return err
	}
	return cc.redis.Set(pageKey(conversationID, viewerID), data, MessagePageTTL)
}

func (cc *ConversationCache) InvalidateMessagePage(conversationID, viewerID uint) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.Delete(pageKey(conversationID, viewerID))
}

func (cc *ConversationCache) GetUnreadCount(conversationID, userID uint) (int64, bool) {
	if cc == nil || cc.redis == nil {
		return 0, false
	}
	data, err := cc.redis.Get(unreadKey(conversationID, userID))
	if err != nil || data == nil {
		return 0, false
	}
	var count int64
	if err := msgpack.Unmarshal(data, &count); err != nil {
		return 0, false
	}
	return count, true
}

func (cc *ConversationCache) SetUnreadCount(conversationID, userID uint, count int64) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(count)
	if err != nil {
		return err
	}
	return cc.redis.Set(unreadKey(conversationID, userID), data, UnreadCountTTL)
}

func (cc *ConversationCache) InvalidateUnreadCount(conversationID, userID uint) error {
	if cc == nil || cc.redis == nil {
		return nil
	}
	return cc.redis.Delete(unreadKey(conversationID, userID))
}

// InvalidateForSend drops every cached view a new message staled for the
// given participants.
func (cc *ConversationCache) InvalidateForSend(conversationID uint, participantIDs []uint) {
	if cc == nil || cc.redis == nil {
		return
	}
	for _, id := range participantIDs {
		_ = cc.InvalidateList(id)
		_ = cc.InvalidateMessagePage(conversationID, id)
		_ = cc.InvalidateUnreadCount(conversationID, id)
	}
}
