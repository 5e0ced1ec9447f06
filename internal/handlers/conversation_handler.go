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

type ConversationHandler struct {
	conversationService *service.ConversationService
	messageService      *service.MessageService
	conversationCache   *cache.ConversationCache
	hub                 *ws.Hub
}

func NewConversationHandler(
	conversationService *service.ConversationService,
	messageService *service.MessageService,
	conversationCache *cache.ConversationCache,
	hub *ws.Hub,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: conversationService,
		messageService:      messageService,
		conversationCache:   conversationCache,
		hub:                 hub,
	}
}

func (h *ConversationHandler) CreateDirect(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input struct {
		UserID uint `json:"user_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}
	if input.UserID == 0 {
		return httpx.BadRequest(c, "missing_user", "user_id is required")
	}

	conversation, err := h.conversationService.GetOrCreateDirect(userID, input.UserID)
	if err != nil {
		return httpx.FromServiceError(c, "create_direct_failed", err)
	}

	_ = h.conversationCache.InvalidateList(userID)
	_ = h.conversationCache.InvalidateList(input.UserID)

	return c.Status(fiber.StatusCreated).JSON(conversation.ToResponse())
}

func (h *ConversationHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	var input service.CreateGroupInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	conversation, err := h.conversationService.CreateGroup(userID, input)
	if err != nil {
		return httpx.FromServiceError(c, "create_group_failed", err)
	}

	h.notifyParticipants(conversation)

	return c.Status(fiber.StatusCreated).JSON(conversation.ToResponse())
}

func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}

	if cached, ok := h.conversationCache.GetList(userID); ok {
		return c.JSON(fiber.Map{"conversations": cached, "count": len(cached)})
	}

	list, err := h.conversationService.ListForUser(userID)
	if err != nil {
		return httpx.Internal(c, "fetch_conversations_failed")
	}
	if len(list) > 0 {
		_ = h.conversationCache.SetList(userID, list)
	}

	return c.JSON(fiber.Map{"conversations": list, "count": len(list)})
}

func (h *ConversationHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	var input struct {
		UptoMessageID uint `json:"upto_message_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.messageService.MarkRead(conversationID, userID, input.UptoMessageID); err != nil {
		return httpx.FromServiceError(c, "mark_read_failed", err)
	}

	_ = h.conversationCache.InvalidateUnreadCount(conversationID, userID)
	_ = h.conversationCache.InvalidateList(userID)

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *ConversationHandler) SetMuted(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	var input struct {
		Muted bool `json:"muted"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.conversationService.SetMuted(conversationID, userID, input.Muted); err != nil {
		return httpx.FromServiceError(c, "set_muted_failed", err)
	}

	_ = h.conversationCache.InvalidateList(userID)

	return c.JSON(fiber.Map{"status": "ok", "muted": input.Muted})
}

func (h *ConversationHandler) Clear(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	if err := h.conversationService.Clear(conversationID, userID); err != nil {
		return httpx.FromServiceError(c, "clear_failed", err)
	}

	_ = h.conversationCache.InvalidateMessagePage(conversationID, userID)
	_ = h.conversationCache.InvalidateUnreadCount(conversationID, userID)
	_ = h.conversationCache.InvalidateList(userID)

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	if err := h.conversationService.Delete(conversationID, userID); err != nil {
		return httpx.FromServiceError(c, "delete_conversation_failed", err)
	}

	_ = h.conversationCache.InvalidateMessagePage(conversationID, userID)
	_ = h.conversationCache.InvalidateList(userID)

	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *ConversationHandler) UpdateMeta(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	var input struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.conversationService.UpdateMeta(conversationID, userID, input.Name, input.AvatarURL); err != nil {
		return httpx.FromServiceError(c, "update_conversation_failed", err)
	}

	conversation, err := h.conversationService.FindByID(conversationID)
	if err != nil {
		return httpx.Internal(c, "update_conversation_failed")
	}

	h.notifyParticipants(conversation)

	return c.JSON(conversation.ToResponse())
}

func (h *ConversationHandler) UpdateRole(c *fiber.Ctx) error {
	userID, err := httpx.LocalUint(c, "userID")
	if err != nil {
		return httpx.Unauthorized(c, "unauthorized", "Unauthorized")
	}
	conversationID, ok := paramUint(c, "id")
	if !ok {
		return httpx.BadRequest(c, "invalid_conversation", "Invalid conversation id")
	}

	var input struct {
		UserID uint   `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid_request_body", "Invalid request body")
	}

	if err := h.conversationService.UpdateRole(conversationID, userID, input.UserID, models.ParticipantRole(input.Role)); err != nil {
		return httpx.FromServiceError(c, "update_role_failed", err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// notifyParticipants pushes a conversation_updated event to every active
// participant still connected, including the actor's other devices.
func (h *ConversationHandler) notifyParticipants(conversation *models.Conversation) {
	participants, err := h.conversationService.ActiveParticipants(conversation.ID)
	if err != nil {
		return
	}
	event := ws.NewConversationUpdatedEvent(conversation)
	for _, p := range participants {
		_ = h.conversationCache.InvalidateList(p.UserID)
		h.hub.SendToUser(p.UserID, event)
	}
}

func paramUint(c *fiber.Ctx, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}
