package ws

// MessageAck is the recipient's delivery acknowledgement. It advances the
// message to delivered and tells the sender. The service rejects acks from
// users outside the message's conversation.
type MessageAck struct {
	MessageID uint `json:"message_id"`
}

func (msg *MessageAck) GetType() string {
	return "ack"
}

func (msg *MessageAck) Process(ctx *MessageContext) error {
	if err := ctx.MessageService.MarkDelivered(msg.MessageID, ctx.UserID); err != nil {
		return err
	}

	message, err := ctx.MessageService.Find(msg.MessageID)
	if err != nil {
		return err
	}
	if message.SenderID != ctx.UserID {
		ctx.Hub.SendToUser(message.SenderID, NewMessageUpdatedEvent(message))
	}
	return nil
}
