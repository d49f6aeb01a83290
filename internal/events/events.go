// Package events publishes domain events to downstream collaborators: the
// payments service captures payment on allocation.created, the archival
// worker consumes bid.accepted.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Event is a message on a subject. ID deduplicates redeliveries.
type Event struct {
	Subject string
	ID      string
	Payload any
}

// Publisher publishes events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// BidAccepted is published after a bid commits.
type BidAccepted struct {
	ItemID      string           `json:"item_id"`
	BidID       string           `json:"bid_id"`
	UserID      string           `json:"user_id"`
	Amount      decimal.Decimal  `json:"amount"`
	PreviousBid *decimal.Decimal `json:"previous_bid,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// AllocationCreated is published once per allocation from the outbox.
type AllocationCreated struct {
	AllocationID string          `json:"allocation_id"`
	ItemID       string          `json:"item_id"`
	UserID       string          `json:"user_id"`
	Amount       decimal.Decimal `json:"amount"`
	Timestamp    time.Time       `json:"timestamp"`
}

// LineCalled is published when a shopper is called to enter a sale.
type LineCalled struct {
	SaleID    string    `json:"sale_id"`
	EntryID   string    `json:"entry_id"`
	UserID    string    `json:"user_id"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// Item and sale IDs are UUIDs, which are valid subject tokens.

func BidAcceptedSubject(itemID string) string {
	return fmt.Sprintf("bid.accepted.%s", itemID)
}

func AllocationCreatedSubject(itemID string) string {
	return fmt.Sprintf("allocation.created.%s", itemID)
}

func LineCalledSubject(saleID string) string {
	return fmt.Sprintf("line.called.%s", saleID)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	// Err, if set, is returned by Publish and nothing is recorded.
	Err error
}

func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// SetErr changes the failure injected into Publish.
func (p *MemoryPublisher) SetErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Err = err
}
