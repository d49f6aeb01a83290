package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
)

const lineColumns = `id, sale_id, user_id, phone, email, position, status, notified_at, entered_at, created_at`

func scanLineEntry(row scanner) (*models.LineEntry, error) {
	var (
		e            models.LineEntry
		phone, email sql.NullString
		status       string
		notifiedAt   sql.NullInt64
		enteredAt    sql.NullInt64
		createdAt    int64
	)
	if err := row.Scan(&e.ID, &e.SaleID, &e.UserID, &phone, &email, &e.Position, &status,
		&notifiedAt, &enteredAt, &createdAt); err != nil {
		return nil, err
	}
	e.Contact = models.Contact{UserID: e.UserID, Phone: phone.String, Email: email.String}
	e.Status = models.LineStatus(status)
	e.NotifiedAt = timePtr(notifiedAt)
	e.EnteredAt = timePtr(enteredAt)
	e.CreatedAt = fromNanos(createdAt)
	return &e, nil
}

// MarkLineStarted records the one-time start of a sale's line.
func (q *queries) MarkLineStarted(ctx context.Context, saleID string, at time.Time) (bool, error) {
	return q.execAffected(ctx, "failed to mark line started",
		`INSERT INTO line_starts (sale_id, started_at, version) VALUES (?, ?, 0)
		 ON CONFLICT (sale_id) DO NOTHING`,
		saleID, toNanos(at),
	)
}

// LockLine bumps the line's version row, which holds a row lock on
// PostgreSQL and the database write lock on SQLite until the transaction ends.
func (q *queries) LockLine(ctx context.Context, saleID string) (bool, error) {
	return q.execAffected(ctx, "failed to lock line",
		`UPDATE line_starts SET version = version + 1 WHERE sale_id = ?`,
		saleID,
	)
}

// InsertLineEntries inserts a batch of entries.
func (q *queries) InsertLineEntries(ctx context.Context, entries []*models.LineEntry) error {
	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}

		_, err := q.exec(ctx,
			`INSERT INTO line_entries (`+lineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.SaleID, e.UserID, nullString(e.Contact.Phone), nullString(e.Contact.Email),
			e.Position, string(e.Status), nullNanos(e.NotifiedAt), nullNanos(e.EnteredAt),
			toNanos(e.CreatedAt),
		)
		if err != nil {
			return apperr.Store("failed to insert line entry", err)
		}
	}
	return nil
}

// GetLineEntry retrieves an entry by ID.
func (q *queries) GetLineEntry(ctx context.Context, entryID string) (*models.LineEntry, error) {
	e, err := scanLineEntry(q.queryRow(ctx,
		`SELECT `+lineColumns+` FROM line_entries WHERE id = ?`, entryID))
	if err != nil {
		return nil, errNoRows(err, "line entry", entryID)
	}
	return e, nil
}

// UpdateLineEntryConditional is the compare-and-set on an entry's status.
func (q *queries) UpdateLineEntryConditional(ctx context.Context, prev, next *models.LineEntry) (bool, error) {
	return q.execAffected(ctx, "failed to update line entry",
		`UPDATE line_entries SET status = ?, notified_at = ?, entered_at = ?
		 WHERE id = ? AND status = ?`,
		string(next.Status), nullNanos(next.NotifiedAt), nullNanos(next.EnteredAt),
		prev.ID, string(prev.Status),
	)
}

// ListLineEntries returns a sale's line in position order.
func (q *queries) ListLineEntries(ctx context.Context, saleID string) ([]*models.LineEntry, error) {
	rows, err := q.query(ctx,
		`SELECT `+lineColumns+` FROM line_entries WHERE sale_id = ? ORDER BY position`,
		saleID,
	)
	if err != nil {
		return nil, apperr.Store("failed to list line entries", err)
	}
	defer rows.Close()

	var entries []*models.LineEntry
	for rows.Next() {
		e, err := scanLineEntry(rows)
		if err != nil {
			return nil, apperr.Store("failed to scan line entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("failed to iterate line entries", err)
	}
	return entries, nil
}

// FirstWaiting returns the head of the waiting part of the line.
func (q *queries) FirstWaiting(ctx context.Context, saleID string) (*models.LineEntry, error) {
	e, err := scanLineEntry(q.queryRow(ctx,
		`SELECT `+lineColumns+` FROM line_entries
		 WHERE sale_id = ? AND status = ? ORDER BY position LIMIT 1`,
		saleID, string(models.LineWaiting),
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store("failed to get first waiting entry", err)
	}
	return e, nil
}

// CountCalled counts the entries currently called.
func (q *queries) CountCalled(ctx context.Context, saleID string) (int, error) {
	var n int
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM line_entries WHERE sale_id = ? AND status = ?`,
		saleID, string(models.LineCalled),
	).Scan(&n)
	if err != nil {
		return 0, apperr.Store("failed to count called entries", err)
	}
	return n, nil
}
