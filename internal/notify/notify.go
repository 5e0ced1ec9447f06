package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

const TaskMessageReceived = "notification:message_received"

// Notifier is the collaborator interface the messaging core fires into.
// Delivery is fire-and-forget: implementations must never block or fail the
// send path. Mute and preference suppression happen before this is called.
type Notifier interface {
	MessageReceived(recipientID, senderID, conversationID uint) error
}

type MessageReceivedPayload struct {
	RecipientID    uint `json:"recipient_id"`
	SenderID       uint `json:"sender_id"`
	ConversationID uint `json:"conversation_id"`
}

// AsynqNotifier enqueues notification tasks onto Redis via asynq so the
// request path never waits on the downstream notification system.
type AsynqNotifier struct {
	client *asynq.Client
}

func NewAsynqNotifier(redisAddr, redisPassword string, redisDB int) *AsynqNotifier {
	return &AsynqNotifier{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
	}
}

func (n *AsynqNotifier) MessageReceived(recipientID, senderID, conversationID uint) error {
	payload, err := json.Marshal(MessageReceivedPayload{
		RecipientID:    recipientID,
		SenderID:       senderID,
		ConversationID: conversationID,
	})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskMessageReceived, payload)
	if _, err := n.client.Enqueue(task, asynq.Queue("notifications"), asynq.MaxRetry(3)); err != nil {
		// Best-effort: log and move on, message delivery is unaffected.
		log.Printf("Failed to enqueue notification for user %d: %v", recipientID, err)
		return err
	}
	return nil
}

func (n *AsynqNotifier) Close() error {
	return n.client.Close()
}

// NopNotifier drops notifications, used when Redis is unavailable.
type NopNotifier struct{}

func (NopNotifier) MessageReceived(_, _, _ uint) error { return nil }

// Sink is the downstream notification system (an external collaborator):
// persistence, badges, push, email digests all live behind it.
type Sink interface {
	NotifyMessageReceived(ctx context.Context, recipientID, senderID, conversationID uint) error
}

// Worker drains the notification queue into the sink.
type Worker struct {
	server *asynq.Server
	sink   Sink
}

func NewWorker(redisAddr, redisPassword string, redisDB int, sink Sink) *Worker {
	return &Worker{
		server: asynq.NewServer(
			asynq.RedisClientOpt{Addr: redisAddr, Password: redisPassword, DB: redisDB},
			asynq.Config{
				Concurrency: 5,
				Queues:      map[string]int{"notifications": 1},
			},
		),
		sink: sink,
	}
}

func (w *Worker) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMessageReceived, w.handleMessageReceived)
	return w.server.Run(mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleMessageReceived(ctx context.Context, task *asynq.Task) error {
	var payload MessageReceivedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	return w.sink.NotifyMessageReceived(ctx, payload.RecipientID, payload.SenderID, payload.ConversationID)
}

// LogSink is the default sink when no external notification system is
// configured.
type LogSink struct{}

func (LogSink) NotifyMessageReceived(_ context.Context, recipientID, senderID, conversationID uint) error {
	log.Printf("notification: user %d received a message from user %d in conversation %d", recipientID, senderID, conversationID)
	return nil
}
