package handlers

import (
	"log"
	"os"

	"github.com/gofiber/websocket/v2"

	"github.com/devhivehq/devhive-backend/internal/handlers/ws"
	"github.com/devhivehq/devhive-backend/internal/repository"
	"github.com/devhivehq/devhive-backend/internal/service"
)

type WebSocketHandler struct {
	messageService      *service.MessageService
	conversationService *service.ConversationService
	userRepo            repository.UserRepositoryInterface
	hub                 *ws.Hub
}

func NewWebSocketHandler(
	messageService *service.MessageService,
	conversationService *service.ConversationService,
	userRepo repository.UserRepositoryInterface,
	hub *ws.Hub,
) *WebSocketHandler {
	return &WebSocketHandler{
		messageService:      messageService,
		conversationService: conversationService,
		userRepo:            userRepo,
		hub:                 hub,
	}
}

// GetHub returns the hub instance (useful for sending messages from other handlers)
func (h *WebSocketHandler) GetHub() *ws.Hub {
	return h.hub
}

func (h *WebSocketHandler) HandleWebSocket(c *websocket.Conn) {
	userID := c.Locals("userID").(uint)
	wsDebug := os.Getenv("WS_DEBUG") == "true"

	h.hub.Register(userID, c)

	go func() {
		if err := h.userRepo.UpdateOnlineStatus(userID, true); err != nil {
			log.Printf("Failed to set user %d online: %v", userID, err)
		}
	}()

	defer func() {
		h.hub.Unregister(userID)
		go func() {
			if err := h.userRepo.UpdateOnlineStatus(userID, false); err != nil {
				log.Printf("Failed to set user %d offline: %v", userID, err)
			}
		}()
	}()

	log.Printf("User %d connected via WebSocket", userID)

	ctx := &ws.MessageContext{
		UserID:              userID,
		Conn:                c,
		Hub:                 h.hub,
		MessageService:      h.messageService,
		ConversationService: h.conversationService,
		Users:               h.userRepo,
	}

	// One malformed or failing event never tears down the connection; the
	// loop ends only when the read side does.
	for {
		messageType, messageBytes, err := c.ReadMessage()
		if err != nil {
			log.Printf("Error reading message from user %d: %v", userID, err)
			break
		}

		if wsDebug {
			log.Printf("ws_recv user_id=%d frame_type=%d size=%d", userID, messageType, len(messageBytes))
		}

		msg, err := ws.Deserialize(messageBytes)
		if err != nil {
			log.Printf("Error deserializing message from user %d: %v", userID, err)
			ws.SendError(c, "invalid_message", "Invalid message format", err.Error())
			continue
		}

		if err := msg.Process(ctx); err != nil {
			log.Printf("Error processing message %s from user %d: %v", msg.GetType(), userID, err)
			ws.SendError(c, "processing_failed", "Failed to process message", err.Error())
		}
	}

	log.Printf("User %d disconnected from WebSocket", userID)
}
