// Package notify delivers best-effort SMS/email/push notifications to
// shoppers. Delivery never feeds back into the state transition that
// triggered it: notifiers report an Outcome instead of returning errors.
package notify

import (
	"context"
	"log/slog"

	"github.com/mmynk/estatesale/internal/models"
)

// Kind identifies the template of a notification.
type Kind string

const (
	KindOutbid       Kind = "outbid"
	KindAuctionWon   Kind = "auction_won"
	KindLinePosition Kind = "line_position"
	KindLineCalled   Kind = "line_called"
)

// Message is one notification for one recipient.
type Message struct {
	Recipient models.Contact
	Kind      Kind
	Body      string
}

// Outcome is the result of a delivery attempt.
type Outcome struct {
	Delivered bool
	Reason    string
}

// Delivered reports a successful delivery.
func Delivered() Outcome {
	return Outcome{Delivered: true}
}

// Failed reports a failed delivery with a reason.
func Failed(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Notifier delivers a message. Implementations are constructed once at
// startup and must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) Outcome
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, msg Message) Outcome

func (f NotifierFunc) Notify(ctx context.Context, msg Message) Outcome {
	return f(ctx, msg)
}

// LogNotifier writes notifications to the structured log. It is the
// development default when no provider is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, msg Message) Outcome {
	if !msg.Recipient.Reachable() {
		return Failed("recipient has no contact method")
	}
	slog.Info("Notification",
		"user_id", msg.Recipient.UserID,
		"kind", msg.Kind,
		"phone", msg.Recipient.Phone,
		"email", msg.Recipient.Email,
		"body", msg.Body,
	)
	return Delivered()
}
