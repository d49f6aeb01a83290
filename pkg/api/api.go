// Package api defines the request and response messages of the estatesale
// Connect services. Messages are encoded as JSON; amounts are decimal strings.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID          string    `json:"id"`
	OrganizerID string    `json:"organizer_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
}

type Item struct {
	ID             string           `json:"id"`
	SaleID         string           `json:"sale_id"`
	Title          string           `json:"title"`
	Status         string           `json:"status"`
	StartPrice     decimal.Decimal  `json:"start_price"`
	CurrentBid     *decimal.Decimal `json:"current_bid,omitempty"`
	BidIncrement   decimal.Decimal  `json:"bid_increment"`
	AuctionEndTime *time.Time       `json:"auction_end_time,omitempty"`
}

type Bid struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type SoldItem struct {
	ItemID string          `json:"item_id"`
	UserID string          `json:"user_id"`
	Amount decimal.Decimal `json:"amount"`
}

type LineEntry struct {
	ID         string     `json:"id"`
	SaleID     string     `json:"sale_id"`
	UserID     string     `json:"user_id"`
	Position   int        `json:"position"`
	Status     string     `json:"status"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	EnteredAt  *time.Time `json:"entered_at,omitempty"`
}

// SaleService

type CreateSaleRequest struct {
	Title string `json:"title"`
}

type CreateSaleResponse struct {
	Sale Sale `json:"sale"`
}

type CreateItemRequest struct {
	SaleID       string          `json:"sale_id"`
	Title        string          `json:"title"`
	StartPrice   decimal.Decimal `json:"start_price"`
	BidIncrement decimal.Decimal `json:"bid_increment"`
	// AuctionEndTime makes the item an auction item.
	AuctionEndTime *time.Time `json:"auction_end_time,omitempty"`
}

type CreateItemResponse struct {
	Item Item `json:"item"`
}

type SubscribeRequest struct {
	SaleID string `json:"sale_id"`
	Phone  string `json:"phone,omitempty"`
	Email  string `json:"email,omitempty"`
}

type SubscribeResponse struct{}

// AuctionService

type PlaceBidRequest struct {
	ItemID string          `json:"item_id"`
	Amount decimal.Decimal `json:"amount"`
}

type PlaceBidResponse struct {
	Bid         Bid             `json:"bid"`
	NextMinimum decimal.Decimal `json:"next_minimum"`
}

type GetBidQuoteRequest struct {
	ItemID string `json:"item_id"`
}

type GetBidQuoteResponse struct {
	ItemID     string           `json:"item_id"`
	Open       bool             `json:"open"`
	CurrentBid *decimal.Decimal `json:"current_bid,omitempty"`
	Minimum    decimal.Decimal  `json:"minimum"`
	EndsAt     *time.Time       `json:"ends_at,omitempty"`
}

type RunSettlementSweepRequest struct{}

type RunSettlementSweepResponse struct {
	Closed []string   `json:"closed"`
	Sold   []SoldItem `json:"sold"`
	Failed []string   `json:"failed,omitempty"`
}

// LineService

type StartLineRequest struct {
	SaleID string `json:"sale_id"`
}

type StartLineResponse struct {
	Entries []LineEntry `json:"entries"`
}

type CallNextRequest struct {
	SaleID string `json:"sale_id"`
}

type CallNextResponse struct {
	Entry LineEntry `json:"entry"`
}

type MarkServedRequest struct {
	EntryID string `json:"entry_id"`
}

type MarkServedResponse struct {
	Entry LineEntry `json:"entry"`
}

type CancelLineEntryRequest struct {
	EntryID string `json:"entry_id"`
}

type CancelLineEntryResponse struct {
	Entry LineEntry `json:"entry"`
}

type GetLineStatusRequest struct {
	SaleID string `json:"sale_id"`
}

type GetLineStatusResponse struct {
	Entries []LineEntry `json:"entries"`
}
