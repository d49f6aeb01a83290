// Package storage provides abstractions for the durable allocation ledger.
package storage

import (
	"context"
	"time"

	"github.com/mmynk/estatesale/internal/models"
)

// Queries is the set of ledger operations. It is implemented both by the
// store itself (each call is its own transaction) and by the transaction
// handle passed to Store.InTx.
//
// Conditional updates return false, not an error, when the row no longer
// matches the expected state. Missing rows yield errors wrapping
// apperr.ErrNotFound; infrastructure failures wrap apperr.ErrStore.
type Queries interface {
	// CreateItem persists a new item. ID and CreatedAt are generated if empty.
	CreateItem(ctx context.Context, item *models.Item) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, itemID string) (*models.Item, error)

	// UpdateItemConditional writes next's Status and CurrentBid only if the
	// stored row still has prev's Status and CurrentBid (compare-and-set).
	UpdateItemConditional(ctx context.Context, prev, next *models.Item) (bool, error)

	// ListExpiredAuctions returns AVAILABLE auction items whose end time is <= now.
	ListExpiredAuctions(ctx context.Context, now time.Time) ([]*models.Item, error)

	// ClaimAuction transitions an expired item AVAILABLE -> AUCTION_ENDED.
	// It returns false if another worker claimed it first.
	ClaimAuction(ctx context.Context, itemID string, now time.Time) (bool, error)

	// ListUnresolvedAuctions returns AUCTION_ENDED items that have bids but
	// no allocation.
	ListUnresolvedAuctions(ctx context.Context) ([]*models.Item, error)

	// InsertBid appends a bid. ID and CreatedAt are generated if empty.
	InsertBid(ctx context.Context, bid *models.Bid) error

	// HighestBid returns the winning bid for an item: max amount, earliest
	// first. It returns nil, nil if the item has no bids.
	HighestBid(ctx context.Context, itemID string) (*models.Bid, error)

	// ListBids returns an item's bids in acceptance order.
	ListBids(ctx context.Context, itemID string) ([]*models.Bid, error)

	// InsertAllocation creates the allocation for an item. It returns false
	// if the item already has one.
	InsertAllocation(ctx context.Context, allocation *models.Allocation) (bool, error)

	// GetAllocation retrieves the allocation of an item.
	GetAllocation(ctx context.Context, itemID string) (*models.Allocation, error)

	// ListUnannouncedAllocations returns allocations whose event was not published yet.
	ListUnannouncedAllocations(ctx context.Context) ([]*models.Allocation, error)

	// MarkAllocationAnnounced stamps AnnouncedAt on an allocation.
	MarkAllocationAnnounced(ctx context.Context, allocationID string, at time.Time) error

	// CreateSale persists a sale. ID and CreatedAt are generated if empty.
	CreateSale(ctx context.Context, sale *models.Sale) error

	// GetSale retrieves a sale by ID.
	GetSale(ctx context.Context, saleID string) (*models.Sale, error)

	// UpsertContact registers or replaces a user's contact methods.
	UpsertContact(ctx context.Context, contact models.Contact) error

	// GetContact returns a user's contact methods. Unknown users get an
	// empty, unreachable contact.
	GetContact(ctx context.Context, userID string) (models.Contact, error)

	// Subscribe adds a user to a sale's subscribers.
	Subscribe(ctx context.Context, saleID, userID string, at time.Time) error

	// ListSubscribers returns the reachable subscribers of a sale in
	// subscription order.
	ListSubscribers(ctx context.Context, saleID string) ([]models.Subscriber, error)

	// MarkLineStarted records that a sale's line was started. It returns
	// false if it already was.
	MarkLineStarted(ctx context.Context, saleID string, at time.Time) (bool, error)

	// LockLine serializes line mutations for a sale until the surrounding
	// transaction ends. It returns false if the line was never started.
	LockLine(ctx context.Context, saleID string) (bool, error)

	// InsertLineEntries inserts a batch of entries. IDs are generated if empty.
	InsertLineEntries(ctx context.Context, entries []*models.LineEntry) error

	// GetLineEntry retrieves an entry by ID.
	GetLineEntry(ctx context.Context, entryID string) (*models.LineEntry, error)

	// UpdateLineEntryConditional writes next's Status, NotifiedAt and
	// EnteredAt only if the stored status is still prev's.
	UpdateLineEntryConditional(ctx context.Context, prev, next *models.LineEntry) (bool, error)

	// ListLineEntries returns all entries of a sale ordered by position.
	ListLineEntries(ctx context.Context, saleID string) ([]*models.LineEntry, error)

	// FirstWaiting returns the WAITING entry with the smallest position, or
	// nil, nil if nobody is waiting.
	FirstWaiting(ctx context.Context, saleID string) (*models.LineEntry, error)

	// CountCalled returns the number of CALLED entries in a sale's line.
	CountCalled(ctx context.Context, saleID string) (int, error)
}

// Store defines the interface for ledger storage.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the engine.
type Store interface {
	Queries

	// InTx runs fn in a single transaction. The transaction commits if fn
	// returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// Close releases any resources held by the store.
	Close() error
}
