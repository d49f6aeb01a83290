package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/pricing"
)

const itemColumns = `id, sale_id, title, status, start_price_cents, current_bid_cents,
	bid_increment_cents, auction_end_time, created_at`

func scanItem(row scanner) (*models.Item, error) {
	var (
		item       models.Item
		status     string
		startCents int64
		current    sql.NullInt64
		incCents   int64
		endTime    sql.NullInt64
		createdAt  int64
	)
	if err := row.Scan(&item.ID, &item.SaleID, &item.Title, &status, &startCents, &current,
		&incCents, &endTime, &createdAt); err != nil {
		return nil, err
	}
	item.Status = models.ItemStatus(status)
	item.AuctionStartPrice = pricing.FromCents(startCents)
	if current.Valid {
		bid := pricing.FromCents(current.Int64)
		item.CurrentBid = &bid
	}
	item.BidIncrement = pricing.FromCents(incCents)
	item.AuctionEndTime = timePtr(endTime)
	item.CreatedAt = fromNanos(createdAt)
	return &item, nil
}

// currentBidKey is the comparison key for a nullable current bid.
// Cents are never negative, so -1 stands for "no bid yet".
func currentBidKey(item *models.Item) int64 {
	if item.CurrentBid == nil {
		return -1
	}
	return pricing.ToCents(*item.CurrentBid)
}

func nullCurrentBid(item *models.Item) sql.NullInt64 {
	if item.CurrentBid == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: pricing.ToCents(*item.CurrentBid), Valid: true}
}

// CreateItem persists a new item.
func (q *queries) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	if item.Status == "" {
		item.Status = models.ItemAvailable
	}

	_, err := q.exec(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.SaleID, item.Title, string(item.Status),
		pricing.ToCents(item.AuctionStartPrice), nullCurrentBid(item),
		pricing.ToCents(item.BidIncrement), nullNanos(item.AuctionEndTime), toNanos(item.CreatedAt),
	)
	if err != nil {
		return apperr.Store("failed to insert item", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (q *queries) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	item, err := scanItem(q.queryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID))
	if err != nil {
		return nil, errNoRows(err, "item", itemID)
	}
	return item, nil
}

// UpdateItemConditional is the compare-and-set on an item's bidding state.
func (q *queries) UpdateItemConditional(ctx context.Context, prev, next *models.Item) (bool, error) {
	return q.execAffected(ctx, "failed to update item",
		`UPDATE items SET status = ?, current_bid_cents = ?
		 WHERE id = ? AND status = ? AND COALESCE(current_bid_cents, -1) = ?`,
		string(next.Status), nullCurrentBid(next),
		prev.ID, string(prev.Status), currentBidKey(prev),
	)
}

func (q *queries) listItems(ctx context.Context, op, query string, args ...any) ([]*models.Item, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store(op, err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, apperr.Store("failed to scan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("failed to iterate items", err)
	}
	return items, nil
}

// ListExpiredAuctions returns the sweep candidates.
func (q *queries) ListExpiredAuctions(ctx context.Context, now time.Time) ([]*models.Item, error) {
	return q.listItems(ctx, "failed to list expired auctions",
		`SELECT `+itemColumns+` FROM items
		 WHERE status = ? AND auction_end_time IS NOT NULL AND auction_end_time <= ?
		 ORDER BY auction_end_time, id`,
		string(models.ItemAvailable), toNanos(now),
	)
}

// ClaimAuction is the sweep's test-and-set.
func (q *queries) ClaimAuction(ctx context.Context, itemID string, now time.Time) (bool, error) {
	return q.execAffected(ctx, "failed to claim auction",
		`UPDATE items SET status = ?
		 WHERE id = ? AND status = ? AND auction_end_time IS NOT NULL AND auction_end_time <= ?`,
		string(models.ItemAuctionEnded), itemID, string(models.ItemAvailable), toNanos(now),
	)
}

// ListUnresolvedAuctions finds claimed auctions whose resolution never completed.
func (q *queries) ListUnresolvedAuctions(ctx context.Context) ([]*models.Item, error) {
	return q.listItems(ctx, "failed to list unresolved auctions",
		`SELECT `+itemColumns+` FROM items i
		 WHERE i.status = ?
		   AND EXISTS (SELECT 1 FROM bids b WHERE b.item_id = i.id)
		   AND NOT EXISTS (SELECT 1 FROM allocations a WHERE a.item_id = i.id)
		 ORDER BY i.auction_end_time, i.id`,
		string(models.ItemAuctionEnded),
	)
}

const bidColumns = `id, item_id, user_id, amount_cents, created_at`

func scanBid(row scanner) (*models.Bid, error) {
	var (
		bid       models.Bid
		cents     int64
		createdAt int64
	)
	if err := row.Scan(&bid.ID, &bid.ItemID, &bid.UserID, &cents, &createdAt); err != nil {
		return nil, err
	}
	bid.Amount = pricing.FromCents(cents)
	bid.CreatedAt = fromNanos(createdAt)
	return &bid, nil
}

// InsertBid appends a bid to the ledger.
func (q *queries) InsertBid(ctx context.Context, bid *models.Bid) error {
	if bid.ID == "" {
		bid.ID = uuid.New().String()
	}
	if bid.CreatedAt.IsZero() {
		bid.CreatedAt = time.Now().UTC()
	}

	_, err := q.exec(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES (?, ?, ?, ?, ?)`,
		bid.ID, bid.ItemID, bid.UserID, pricing.ToCents(bid.Amount), toNanos(bid.CreatedAt),
	)
	if err != nil {
		return apperr.Store("failed to insert bid", err)
	}
	return nil
}

// HighestBid returns the first bid at the maximum amount.
func (q *queries) HighestBid(ctx context.Context, itemID string) (*models.Bid, error) {
	bid, err := scanBid(q.queryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE item_id = ?
		 ORDER BY amount_cents DESC, created_at ASC, seq ASC LIMIT 1`,
		itemID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("failed to get highest bid", err)
	}
	return bid, nil
}

// ListBids returns an item's bids in acceptance order.
func (q *queries) ListBids(ctx context.Context, itemID string) ([]*models.Bid, error) {
	rows, err := q.query(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE item_id = ? ORDER BY seq`,
		itemID,
	)
	if err != nil {
		return nil, apperr.Store("failed to list bids", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, apperr.Store("failed to scan bid", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("failed to iterate bids", err)
	}
	return bids, nil
}
