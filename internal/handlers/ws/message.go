package ws

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/devhivehq/devhive-backend/internal/repository"
	"github.com/devhivehq/devhive-backend/internal/service"
	"github.com/gofiber/websocket/v2"
)

// MessageContext provides all dependencies needed for message processing
type MessageContext struct {
	UserID              uint
	Conn                *websocket.Conn
	Hub                 *Hub
	MessageService      *service.MessageService
	ConversationService *service.ConversationService
	Users               repository.UserRepositoryInterface
}

// Message interface for all client-to-server WebSocket message types
type Message interface {
	GetType() string
	Process(ctx *MessageContext) error
}

// ErrorResponse is sent when message processing fails
type ErrorResponse struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func ToJson(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

func FromJson(jsonBytes []byte, msg Message) error {
	return json.Unmarshal(jsonBytes, msg)
}

func CreateMessage(msgType string, typeRegistry map[string]reflect.Type) (Message, error) {
	msgTypeReflect, ok := typeRegistry[msgType]
	if !ok {
		return nil, fmt.Errorf("unknown message type: %s", msgType)
	}

	instance := reflect.New(msgTypeReflect).Interface()
	return instance.(Message), nil
}

// SendError sends an error response to the client
func SendError(conn *websocket.Conn, code, message, details string) error {
	errResp := ErrorResponse{
		Type:    "error",
		Error:   message,
		Code:    code,
		Details: details,
	}
	return conn.WriteJSON(errResp)
}
