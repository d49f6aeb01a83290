package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the lifecycle state of an item.
type ItemStatus string

const (
	ItemAvailable    ItemStatus = "AVAILABLE"
	ItemSold         ItemStatus = "SOLD"
	ItemAuctionEnded ItemStatus = "AUCTION_ENDED"
	ItemReserved     ItemStatus = "RESERVED"
)

// Item is an auctionable resource listed in a sale.
// Once Status leaves AVAILABLE the item no longer accepts bids.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// SaleID is the sale the item is listed in.
	SaleID string

	Title string

	Status ItemStatus

	// AuctionStartPrice is the minimum for the first bid.
	AuctionStartPrice decimal.Decimal

	// CurrentBid is nil until the first bid is accepted. It only increases.
	CurrentBid *decimal.Decimal

	// BidIncrement is the amount a new bid must exceed CurrentBid by.
	BidIncrement decimal.Decimal

	// AuctionEndTime is nil for fixed-price items.
	AuctionEndTime *time.Time

	CreatedAt time.Time
}

// IsAuction reports whether the item is allocated by bidding.
func (i *Item) IsAuction() bool {
	return i.AuctionEndTime != nil
}

// Expired reports whether the auction end time has passed at now.
func (i *Item) Expired(now time.Time) bool {
	return i.AuctionEndTime != nil && !now.Before(*i.AuctionEndTime)
}

// Bid is an immutable, append-only record of an accepted bid.
type Bid struct {
	ID        string
	ItemID    string
	UserID    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}
