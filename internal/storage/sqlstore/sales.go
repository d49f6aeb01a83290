package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
)

// CreateSale persists a sale.
func (q *queries) CreateSale(ctx context.Context, sale *models.Sale) error {
	if sale.ID == "" {
		sale.ID = uuid.New().String()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := q.exec(ctx,
		`INSERT INTO sales (id, organizer_id, title, created_at) VALUES (?, ?, ?, ?)`,
		sale.ID, sale.OrganizerID, sale.Title, toNanos(sale.CreatedAt),
	)
	if err != nil {
		return apperr.Store("failed to insert sale", err)
	}
	return nil
}

// GetSale retrieves a sale by ID.
func (q *queries) GetSale(ctx context.Context, saleID string) (*models.Sale, error) {
	var (
		sale      models.Sale
		createdAt int64
	)
	err := q.queryRow(ctx,
		`SELECT id, organizer_id, title, created_at FROM sales WHERE id = ?`, saleID,
	).Scan(&sale.ID, &sale.OrganizerID, &sale.Title, &createdAt)
	if err != nil {
		return nil, errNoRows(err, "sale", saleID)
	}
	sale.CreatedAt = fromNanos(createdAt)
	return &sale, nil
}

// UpsertContact registers a user's contact methods.
func (q *queries) UpsertContact(ctx context.Context, c models.Contact) error {
	_, err := q.exec(ctx,
		`INSERT INTO contacts (user_id, phone, email) VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET phone = excluded.phone, email = excluded.email`,
		c.UserID, nullString(c.Phone), nullString(c.Email),
	)
	if err != nil {
		return apperr.Store("failed to upsert contact", err)
	}
	return nil
}

// GetContact returns a user's contact methods.
func (q *queries) GetContact(ctx context.Context, userID string) (models.Contact, error) {
	var phone, email sql.NullString
	err := q.queryRow(ctx,
		`SELECT phone, email FROM contacts WHERE user_id = ?`, userID,
	).Scan(&phone, &email)
	if err == sql.ErrNoRows {
		return models.Contact{UserID: userID}, nil
	}
	if err != nil {
		return models.Contact{}, apperr.Store("failed to get contact", err)
	}
	return models.Contact{UserID: userID, Phone: phone.String, Email: email.String}, nil
}

// Subscribe adds a user to a sale's subscribers. Re-subscribing keeps the
// original subscription time.
func (q *queries) Subscribe(ctx context.Context, saleID, userID string, at time.Time) error {
	_, err := q.exec(ctx,
		`INSERT INTO sale_subscribers (sale_id, user_id, subscribed_at) VALUES (?, ?, ?)
		 ON CONFLICT (sale_id, user_id) DO NOTHING`,
		saleID, userID, toNanos(at),
	)
	if err != nil {
		return apperr.Store("failed to subscribe", err)
	}
	return nil
}

// ListSubscribers returns the reachable subscribers of a sale.
func (q *queries) ListSubscribers(ctx context.Context, saleID string) ([]models.Subscriber, error) {
	rows, err := q.query(ctx,
		`SELECT s.user_id, c.phone, c.email, s.subscribed_at
		 FROM sale_subscribers s
		 JOIN contacts c ON c.user_id = s.user_id
		 WHERE s.sale_id = ?
		   AND (COALESCE(c.phone, '') <> '' OR COALESCE(c.email, '') <> '')
		 ORDER BY s.subscribed_at, s.user_id`,
		saleID,
	)
	if err != nil {
		return nil, apperr.Store("failed to list subscribers", err)
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		var (
			sub          models.Subscriber
			phone, email sql.NullString
			subscribedAt int64
		)
		if err := rows.Scan(&sub.Contact.UserID, &phone, &email, &subscribedAt); err != nil {
			return nil, apperr.Store("failed to scan subscriber", err)
		}
		sub.Contact.Phone = phone.String
		sub.Contact.Email = email.String
		sub.SubscribedAt = fromNanos(subscribedAt)
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("failed to iterate subscribers", err)
	}
	return subscribers, nil
}
