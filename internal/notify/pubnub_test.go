package notify

import (
	"context"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestNewPubNubNotifier_RequiresKeys(t *testing.T) {
	_, err := NewPubNubNotifier(nil)
	check.Error(t, err)

	_, err = NewPubNubNotifier(&PubNubConfig{PublishKey: "pub-c-test"})
	check.Error(t, err)
}

func TestPubNubNotifier_HonorsContext(t *testing.T) {
	n, err := NewPubNubNotifier(&PubNubConfig{
		PublishKey:   "pub-c-test",
		SubscribeKey: "sub-c-test",
		UserID:       "estatesale-test",
	})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := n.Notify(ctx, msgFor("alice"))
	check.False(t, outcome.Delivered)
	check.NotEqual(t, "", outcome.Reason)
}

func TestPubNubNotifier_RequiresRecipient(t *testing.T) {
	n, err := NewPubNubNotifier(&PubNubConfig{PublishKey: "pub-c-test", SubscribeKey: "sub-c-test"})
	assert.NoError(t, err)

	outcome := n.Notify(context.Background(), Message{Kind: KindLineCalled, Body: "Your turn"})
	check.False(t, outcome.Delivered)
}
