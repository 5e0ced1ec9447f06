package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/devhivehq/devhive-backend/internal/cache"
	"github.com/devhivehq/devhive-backend/internal/handlers/ws"
	"github.com/devhivehq/devhive-backend/internal/httpx"
	"github.com/devhivehq/devhive-backend/internal/models"
	"github.com/devhivehq/devhive-backend/internal/service"
)

type MessageHandler struct {
	messageService      *service.MessageService
	conversationService *service.ConversationService
	conversationCache   *cache.ConversationCache
	hub                 *ws.Hub
}

func NewMessageHandler(
	messageService *service.MessageService,
	conversationService *service.ConversationService,
	conversationCache *cache.ConversationCache,
	hub *ws.Hub,
) *MessageHandler {
	return &MessageHandler{
		messageService:      messageService,
		conversationService: conversationService,
		conversationCache:   conversationCache,
		hub:                 hub,
	}
}

func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.SendMessageInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if input.ConversationID == 0 {
		return httpx.BadRequest(c, "missing_conversation", "conversation_id is required")
	}

	message, err := h.messageService.Send(userID, input)
	if err != nil {
		return httpx.FromServiceError(c, "send_message_failed", err)
	}

	h.fanOut(message.ConversationID, ws.NewMessageInsertedEvent(message))

	return c.Status(fiber.StatusCreated).JSON(message.ToResponse())
}

func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	var messages []models.Message
	if cursorStr := c.Query("cursor"); cursorStr != "" {
		cursor, err := strconv.ParseUint(cursorStr, 10, 32)
		if err != nil {
			return httpx.BadRequest(c, "invalid_cursor", "Invalid cursor")
		}
		messages, err = h.messageService.History(conversationID, userID, uint(cursor), limit)
		if err != nil {
			return httpx.FromServiceError(c, "fetch_messages_failed", err)
		}
	} else {
		// Cache only covers the first page.
		if cached, ok := h.conversationCache.GetMessagePage(conversationID, userID); ok && len(cached) > 0 {
			messages = cached
			if len(messages) > limit {
				messages = messages[:limit]
			}
		} else {
			messages, err = h.messageService.History(conversationID, userID, 0, limit)
			if err != nil {
				return httpx.FromServiceError(c, "fetch_messages_failed", err)
			}
			if len(messages) > 0 {
				_ = h.conversationCache.SetMessagePage(conversationID, userID, messages)
			}
		}
	}

	responses := make([]models.MessageResponse, len(messages))
	for i, msg := range messages {
		responses[i] = msg.ToResponse()
	}

	result := fiber.Map{
		"messages": responses,
		"count":    len(messages),
	}
	if len(messages) > 0 {
		// Messages are returned newest-first; the oldest id is the next cursor.
		result["next_cursor"] = messages[len(messages)-1].ID
	}

	return c.JSON(result)
}

func (h *MessageHandler) EditMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_message", "Invalid message id")
	}

	var input struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	message, err := h.messageService.Edit(messageID, userID, input.Content)
	if err != nil {
		return httpx.FromServiceError(c, "edit_message_failed", err)
	}

	h.fanOut(message.ConversationID, ws.NewMessageUpdatedEvent(message))

	return c.JSON(message.ToResponse())
}

func (h *MessageHandler) DeleteMessage(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	messageID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_message", "Invalid message id")
	}

	mode := service.DeleteMode(c.Query("mode", string(service.DeleteForMe)))
	if mode != service.DeleteForMe && mode != service.DeleteForEveryone {
		return httpx.BadRequest(c, "invalid_mode", "mode must be me or all")
	}

	message, err := h.messageService.Find(messageID)
	if err != nil {
		return httpx.FromServiceError(c, "delete_message_failed", err)
	}

	if err := h.messageService.Delete(messageID, userID, mode); err != nil {
		return httpx.FromServiceError(c, "delete_message_failed", err)
	}

	if mode == service.DeleteForEveryone {
		deleted, err := h.messageService.Find(messageID)
		if err == nil {
			h.fanOut(deleted.ConversationID, ws.NewMessageDeletedEvent(deleted))
		}
	} else {
		// Hidden only for the caller; just drop their cached page.
		_ = h.conversationCache.InvalidateMessagePage(message.ConversationID, userID)
	}

	return c.JSON(fiber.Map{"status": "ok", "mode": string(mode)})
}

// fanOut invalidates caches and pushes the event to every active participant.
func (h *MessageHandler) fanOut(conversationID uint, event ws.Envelope) {
	participants, err := h.conversationService.ActiveParticipants(conversationID)
	if err != nil {
		return
	}
	ids := make([]uint, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	h.conversationCache.InvalidateForSend(conversationID, ids)
	h.hub.EmitToUsers(ids, event)
}
