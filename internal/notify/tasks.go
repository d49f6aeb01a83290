package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
)

// TypeNotifySend is the asynq task type carrying one notification.
const TypeNotifySend = "notify:send"

// QueueNotifications is the asynq queue notification tasks are enqueued on.
const QueueNotifications = "notifications"

type taskPayload struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
	Kind   Kind   `json:"kind"`
	Body   string `json:"body"`
}

// NewNotifyTask builds the asynq task for msg.
func NewNotifyTask(msg Message) (*asynq.Task, error) {
	payload, err := json.Marshal(taskPayload{
		UserID: msg.Recipient.UserID,
		Phone:  msg.Recipient.Phone,
		Email:  msg.Recipient.Email,
		Kind:   msg.Kind,
		Body:   msg.Body,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotifySend, payload), nil
}

// TaskNotifier hands notifications to the asynq worker pool, which retries
// failed deliveries. Delivered means the task was durably enqueued.
type TaskNotifier struct {
	client   *asynq.Client
	maxRetry int
}

// NewTaskNotifier wraps an asynq client created once at startup.
func NewTaskNotifier(client *asynq.Client, maxRetry int) *TaskNotifier {
	return &TaskNotifier{client: client, maxRetry: maxRetry}
}

// Notify enqueues msg.
func (n *TaskNotifier) Notify(ctx context.Context, msg Message) Outcome {
	task, err := NewNotifyTask(msg)
	if err != nil {
		return Failed(fmt.Sprintf("build task: %v", err))
	}

	_, err = n.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueNotifications),
		asynq.MaxRetry(n.maxRetry),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return Failed(fmt.Sprintf("enqueue: %v", err))
	}
	return Delivered()
}

// NewTaskHandler returns the asynq handler delivering notify:send tasks
// through inner. A failed delivery returns an error so asynq retries it.
func NewTaskHandler(inner Notifier) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p taskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("invalid notify payload: %v: %w", err, asynq.SkipRetry)
		}

		outcome := inner.Notify(ctx, Message{
			Recipient: models.Contact{UserID: p.UserID, Phone: p.Phone, Email: p.Email},
			Kind:      p.Kind,
			Body:      p.Body,
		})
		if !outcome.Delivered {
			return fmt.Errorf("%w: %s", apperr.ErrExternalService, outcome.Reason)
		}
		return nil
	}
}

// NewWorker builds the asynq server and mux processing notification tasks.
func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, inner Notifier) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeNotifySend, NewTaskHandler(inner))
	return srv, mux
}
