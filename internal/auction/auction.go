// Package auction implements competitive bidding on auction items: the bid
// ledger that accepts bids under concurrency, and the settlement sweep that
// closes expired auctions exactly once.
package auction

import (
	"time"

	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/notify"
)

type options struct {
	now        func() time.Time
	publisher  events.Publisher
	dispatcher *notify.Dispatcher
}

// Option configures a Ledger or Settler.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithDispatcher enables shopper notifications.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

func newOptions(opts []Option) options {
	o := options{
		now:       func() time.Time { return time.Now().UTC() },
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
