package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubnubgo "github.com/pubnub/go/v7"
)

// PubNubConfig holds the keys of the PubNub app used for in-app pushes.
type PubNubConfig struct {
	PublishKey, SubscribeKey, SecretKey, UserID string
}

// PubNubNotifier publishes notifications to the recipient's personal
// channel, `channel-<userID>`, which the shopper app subscribes to.
type PubNubNotifier struct {
	pn *pubnubgo.PubNub
}

// NewPubNubNotifier creates the PubNub client once for the whole process.
func NewPubNubNotifier(cfg *PubNubConfig) (*PubNubNotifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("NewPubNubNotifier: config must not be nil")
	}
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		return nil, fmt.Errorf("NewPubNubNotifier: publish and subscribe keys are required")
	}

	pnCfg := pubnubgo.NewConfigWithUserId(pubnubgo.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNubNotifier{pn: pubnubgo.NewPubNub(pnCfg)}, nil
}

type pushPayload struct {
	Type      Kind      `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Notify publishes msg to the recipient's channel. The request is bound to
// ctx, so the dispatcher's delivery timeout applies to it.
func (p *PubNubNotifier) Notify(ctx context.Context, msg Message) Outcome {
	if msg.Recipient.UserID == "" {
		return Failed("recipient has no user id")
	}

	payload, err := json.Marshal(pushPayload{
		Type:      msg.Kind,
		Text:      msg.Body,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return Failed(fmt.Sprintf("marshal payload: %v", err))
	}

	channel := fmt.Sprintf("channel-%s", msg.Recipient.UserID)
	publish := p.pn.PublishWithContext(ctx)
	publish.Channel(channel).Message(string(payload))
	if _, _, err := publish.Execute(); err != nil {
		return Failed(fmt.Sprintf("pubnub publish: %v", err))
	}
	return Delivered()
}
