package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationStatus tracks what happened to an allocation after it was created.
type AllocationStatus string

const (
	// AllocationPendingPayment is the initial state; payment capture is
	// handled by the payments collaborator after the allocation is announced.
	AllocationPendingPayment AllocationStatus = "PENDING_PAYMENT"
)

// Allocation records that an item was granted to a user. At most one exists
// per item.
type Allocation struct {
	// ID is the unique identifier for the allocation (UUID format).
	ID string

	ItemID string

	// UserID is the winning bidder.
	UserID string

	Amount decimal.Decimal

	Status AllocationStatus

	CreatedAt time.Time

	// AnnouncedAt is set once the allocation.created event was published.
	AnnouncedAt *time.Time
}

// SoldItem is one auction settled with a winner.
type SoldItem struct {
	ItemID string          `json:"item_id"`
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

// SettlementReport summarizes one sweep.
type SettlementReport struct {
	// Closed lists every item this sweep closed, sold or not.
	Closed []string `json:"closed"`

	// Sold lists the items that were allocated to a winner.
	Sold []SoldItem `json:"sold"`

	// Failed lists items claimed by this sweep whose resolution failed.
	// They are picked up again by the next sweep's re-scan.
	Failed []string `json:"failed,omitempty"`
}
