package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mmynk/estatesale/internal/apperr"
)

func TestTaskHandler_DeliversPayload(t *testing.T) {
	var got Message
	inner := NotifierFunc(func(_ context.Context, msg Message) Outcome {
		got = msg
		return Delivered()
	})

	task, err := NewNotifyTask(msgFor("a"))
	assert.NoError(t, err)
	check.Equal(t, TypeNotifySend, task.Type())

	err = NewTaskHandler(inner)(context.Background(), task)
	assert.NoError(t, err)
	check.Equal(t, "a", got.Recipient.UserID)
	check.Equal(t, "+1555a", got.Recipient.Phone)
	check.Equal(t, KindLinePosition, got.Kind)
	check.Equal(t, "You are in line", got.Body)
}

func TestTaskHandler_FailedDeliveryIsRetried(t *testing.T) {
	inner := NotifierFunc(func(context.Context, Message) Outcome {
		return Failed("smtp down")
	})

	task, _ := NewNotifyTask(msgFor("a"))
	err := NewTaskHandler(inner)(context.Background(), task)
	check.True(t, errors.Is(err, apperr.ErrExternalService))
	check.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestTaskHandler_BadPayloadSkipsRetry(t *testing.T) {
	inner := NotifierFunc(func(context.Context, Message) Outcome {
		t.Fatal("notifier must not be called")
		return Outcome{}
	})

	err := NewTaskHandler(inner)(context.Background(), asynq.NewTask(TypeNotifySend, []byte("{")))
	check.True(t, errors.Is(err, asynq.SkipRetry))
}
