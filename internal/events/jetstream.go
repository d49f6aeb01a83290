package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mmynk/estatesale/internal/metrics"
)

// StreamName is the JetStream stream holding all engine events.
const StreamName = "ESTATE_EVENTS"

// JetStreamPublisher publishes events to NATS JetStream. Publish waits for the
// server's acknowledgement, so a nil error means the event is persisted.
type JetStreamPublisher struct {
	js jetstream.JetStream
}

// NewJetStreamPublisher ensures the stream exists and returns a publisher.
func NewJetStreamPublisher(ctx context.Context, nc *nats.Conn) (*JetStreamPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Bid, allocation and line events",
		Subjects:    []string{"bid.>", "allocation.>", "line.>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	slog.Info("JetStream stream ready", "stream", StreamName)

	return &JetStreamPublisher{js: js}, nil
}

// Publish marshals the payload as JSON and publishes it with the event ID as
// the JetStream message ID, so republishing from the outbox is deduplicated.
func (p *JetStreamPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var opts []jetstream.PublishOpt
	if event.ID != "" {
		opts = append(opts, jetstream.WithMsgID(event.ID))
	}

	ack, err := p.js.Publish(ctx, event.Subject, data, opts...)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}
	metrics.EventsTotal.WithLabelValues("published").Inc()

	slog.Debug("Published event", "subject", event.Subject, "seq", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}
