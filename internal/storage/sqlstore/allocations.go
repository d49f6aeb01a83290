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

const allocationColumns = `id, item_id, user_id, amount_cents, status, created_at, announced_at`

func scanAllocation(row scanner) (*models.Allocation, error) {
	var (
		a           models.Allocation
		cents       int64
		status      string
		createdAt   int64
		announcedAt sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.ItemID, &a.UserID, &cents, &status, &createdAt, &announcedAt); err != nil {
		return nil, err
	}
	a.Amount = pricing.FromCents(cents)
	a.Status = models.AllocationStatus(status)
	a.CreatedAt = fromNanos(createdAt)
	a.AnnouncedAt = timePtr(announcedAt)
	return &a, nil
}

// InsertAllocation creates an item's allocation unless it already has one.
func (q *queries) InsertAllocation(ctx context.Context, a *models.Allocation) (bool, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = models.AllocationPendingPayment
	}

	return q.execAffected(ctx, "failed to insert allocation",
		`INSERT INTO allocations (`+allocationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (item_id) DO NOTHING`,
		a.ID, a.ItemID, a.UserID, pricing.ToCents(a.Amount), string(a.Status),
		toNanos(a.CreatedAt), nullNanos(a.AnnouncedAt),
	)
}

// GetAllocation retrieves the allocation of an item.
func (q *queries) GetAllocation(ctx context.Context, itemID string) (*models.Allocation, error) {
	a, err := scanAllocation(q.queryRow(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE item_id = ?`, itemID))
	if err != nil {
		return nil, errNoRows(err, "allocation", itemID)
	}
	return a, nil
}

// ListUnannouncedAllocations returns the allocation outbox.
func (q *queries) ListUnannouncedAllocations(ctx context.Context) ([]*models.Allocation, error) {
	rows, err := q.query(ctx,
		`SELECT `+allocationColumns+` FROM allocations
		 WHERE announced_at IS NULL ORDER BY created_at`,
	)
	if err != nil {
		return nil, apperr.Store("failed to list unannounced allocations", err)
	}
	defer rows.Close()

	var allocations []*models.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, apperr.Store("failed to scan allocation", err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("failed to iterate allocations", err)
	}
	return allocations, nil
}

// MarkAllocationAnnounced stamps the outbox row as published.
func (q *queries) MarkAllocationAnnounced(ctx context.Context, allocationID string, at time.Time) error {
	ok, err := q.execAffected(ctx, "failed to mark allocation announced",
		`UPDATE allocations SET announced_at = ? WHERE id = ? AND announced_at IS NULL`,
		toNanos(at), allocationID,
	)
	if err != nil {
		return err
	}
	if !ok {
		var exists int
		err := q.queryRow(ctx, `SELECT 1 FROM allocations WHERE id = ?`, allocationID).Scan(&exists)
		if err != nil {
			return errNoRows(err, "allocation", allocationID)
		}
	}
	return nil
}
