package ws

import (
	"reflect"
)

var typeRegistry = map[string]reflect.Type{}

func init() {
	// Register all client-to-server message types
	RegisterType(&MessagePresenceJoin{})
	RegisterType(&MessagePresenceLeave{})
	RegisterType(&MessagePresenceHeartbeat{})
	RegisterType(&MessageTyping{})
	RegisterType(&MessageAck{})
	RegisterType(&MessagePing{})
	RegisterType(&MessagePong{})
}

func RegisterType(msg Message) {
	typeRegistry[msg.GetType()] = reflect.TypeOf(msg).Elem()
}

// GetTypeRegistry returns the type registry for testing
func GetTypeRegistry() map[string]reflect.Type {
	return typeRegistry
}
