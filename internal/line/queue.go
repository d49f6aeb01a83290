// Package line runs the physical entry line of an estate sale: subscribers
// are snapshotted into numbered WAITING entries when the organizer starts the
// line, then called in, served or cancelled one by one.
//
// Entry lifecycle:
//
//	WAITING --CallNext--> CALLED --MarkServed--> SERVED
//	WAITING|CALLED --Cancel--> CANCELLED
package line

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/metrics"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/storage"
)

// Queue implements the line operations of every sale.
type Queue struct {
	store      storage.Store
	publisher  events.Publisher
	dispatcher *notify.Dispatcher
	singleCall bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(q *Queue) { q.publisher = p }
}

// WithDispatcher enables shopper notifications.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(q *Queue) { q.dispatcher = d }
}

// WithSingleCall controls whether CallNext refuses to call a shopper while
// another one is still CALLED. Enabled by default.
func WithSingleCall(enabled bool) Option {
	return func(q *Queue) { q.singleCall = enabled }
}

// NewQueue creates a Queue on store.
func NewQueue(store storage.Store, opts ...Option) *Queue {
	q := &Queue{
		store:      store,
		publisher:  events.NopPublisher{},
		singleCall: true,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe registers a shopper's contact methods and adds them to the
// sale's subscribers.
func (q *Queue) Subscribe(ctx context.Context, saleID string, contact models.Contact, now time.Time) error {
	if saleID == "" {
		return apperr.Validation("sale_id is required")
	}
	if contact.UserID == "" {
		return apperr.Validation("user_id is required")
	}
	if !contact.Reachable() {
		return apperr.Validation("a phone number or email is required")
	}

	return q.store.InTx(ctx, func(tx storage.Queries) error {
		if _, err := tx.GetSale(ctx, saleID); err != nil {
			return err
		}
		if err := tx.UpsertContact(ctx, contact); err != nil {
			return err
		}
		return tx.Subscribe(ctx, saleID, contact.UserID, now)
	})
}

// StartLine assigns positions 1..N to the sale's reachable subscribers in
// subscription order. The whole line is written in one transaction; a sale's
// line can only be started once.
func (q *Queue) StartLine(ctx context.Context, saleID string, now time.Time) ([]*models.LineEntry, error) {
	if saleID == "" {
		return nil, apperr.Validation("sale_id is required")
	}

	var entries []*models.LineEntry
	err := q.store.InTx(ctx, func(tx storage.Queries) error {
		if _, err := tx.GetSale(ctx, saleID); err != nil {
			return err
		}

		started, err := tx.MarkLineStarted(ctx, saleID, now)
		if err != nil {
			return err
		}
		if !started {
			return apperr.ErrAlreadyStarted
		}

		subscribers, err := tx.ListSubscribers(ctx, saleID)
		if err != nil {
			return err
		}

		entries = make([]*models.LineEntry, 0, len(subscribers))
		for i, sub := range subscribers {
			entries = append(entries, &models.LineEntry{
				ID:        uuid.New().String(),
				SaleID:    saleID,
				UserID:    sub.Contact.UserID,
				Contact:   sub.Contact,
				Position:  i + 1,
				Status:    models.LineWaiting,
				CreatedAt: now,
			})
		}
		return tx.InsertLineEntries(ctx, entries)
	})
	if err != nil {
		return nil, err
	}

	metrics.LineTransitionsTotal.WithLabelValues(string(models.LineWaiting)).Add(float64(len(entries)))
	slog.Info("Line started", "sale_id", saleID, "entries", len(entries))

	if q.dispatcher != nil && len(entries) > 0 {
		msgs := make([]notify.Message, len(entries))
		for i, e := range entries {
			msgs[i] = notify.Message{
				Recipient: e.Contact,
				Kind:      notify.KindLinePosition,
				Body:      fmt.Sprintf("The line has started. You are number %d.", e.Position),
			}
		}
		q.dispatcher.SendBatch(ctx, msgs)
	}
	return entries, nil
}

// CallNext calls the waiting shopper with the smallest position. Calls on a
// sale are serialized by the line lock, so two concurrent calls never return
// the same entry.
func (q *Queue) CallNext(ctx context.Context, saleID string, now time.Time) (*models.LineEntry, error) {
	if saleID == "" {
		return nil, apperr.Validation("sale_id is required")
	}

	var called *models.LineEntry
	err := q.store.InTx(ctx, func(tx storage.Queries) error {
		locked, err := tx.LockLine(ctx, saleID)
		if err != nil {
			return err
		}
		if !locked {
			if _, err := tx.GetSale(ctx, saleID); err != nil {
				return err
			}
			return apperr.NotFound("line", saleID)
		}

		if q.singleCall {
			n, err := tx.CountCalled(ctx, saleID)
			if err != nil {
				return err
			}
			if n > 0 {
				return apperr.ErrCallInProgress
			}
		}

		head, err := tx.FirstWaiting(ctx, saleID)
		if err != nil {
			return err
		}
		if head == nil {
			return apperr.ErrEmptyQueue
		}

		next := *head
		next.Status = models.LineCalled
		next.NotifiedAt = &now
		if err := transition(ctx, tx, head, &next); err != nil {
			return err
		}
		called = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Shopper called", "sale_id", saleID, "entry_id", called.ID, "position", called.Position)
	q.afterCall(ctx, called, now)
	return called, nil
}

func (q *Queue) afterCall(ctx context.Context, e *models.LineEntry, now time.Time) {
	err := q.publisher.Publish(ctx, events.Event{
		Subject: events.LineCalledSubject(e.SaleID),
		ID:      e.ID,
		Payload: events.LineCalled{
			SaleID:    e.SaleID,
			EntryID:   e.ID,
			UserID:    e.UserID,
			Position:  e.Position,
			Timestamp: now,
		},
	})
	if err != nil {
		slog.Warn("Failed to publish line call", "entry_id", e.ID, "error", err)
	}

	if q.dispatcher != nil {
		q.dispatcher.Send(ctx, notify.Message{
			Recipient: e.Contact,
			Kind:      notify.KindLineCalled,
			Body:      fmt.Sprintf("It's your turn! Number %d, please come to the entrance.", e.Position),
		})
	}
}

// MarkServed records that a called shopper entered the sale. Only a CALLED
// entry can be served, so a repeated click is rejected.
func (q *Queue) MarkServed(ctx context.Context, entryID string, now time.Time) (*models.LineEntry, error) {
	return q.update(ctx, entryID, func(e *models.LineEntry) error {
		if e.Status != models.LineCalled {
			return fmt.Errorf("%w: cannot serve a %s entry", apperr.ErrInvalidTransition, e.Status)
		}
		e.Status = models.LineServed
		e.EnteredAt = &now
		return nil
	})
}

// Cancel removes a WAITING or CALLED shopper from the line. Positions of the
// other entries are not renumbered.
func (q *Queue) Cancel(ctx context.Context, entryID string) (*models.LineEntry, error) {
	return q.update(ctx, entryID, func(e *models.LineEntry) error {
		if e.Status.Terminal() {
			return fmt.Errorf("%w: cannot cancel a %s entry", apperr.ErrInvalidTransition, e.Status)
		}
		e.Status = models.LineCancelled
		return nil
	})
}

// Entry returns a single line entry.
func (q *Queue) Entry(ctx context.Context, entryID string) (*models.LineEntry, error) {
	if entryID == "" {
		return nil, apperr.Validation("entry_id is required")
	}
	return q.store.GetLineEntry(ctx, entryID)
}

// Status returns the sale's line ordered by position.
func (q *Queue) Status(ctx context.Context, saleID string) ([]*models.LineEntry, error) {
	if saleID == "" {
		return nil, apperr.Validation("sale_id is required")
	}
	if _, err := q.store.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return q.store.ListLineEntries(ctx, saleID)
}

// update applies fn to the current entry and writes it with a
// compare-and-set on the status fn saw.
func (q *Queue) update(ctx context.Context, entryID string, fn func(e *models.LineEntry) error) (*models.LineEntry, error) {
	if entryID == "" {
		return nil, apperr.Validation("entry_id is required")
	}

	current, err := q.store.GetLineEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	if err := transition(ctx, q.store, current, &next); err != nil {
		return nil, err
	}

	slog.Info("Line entry updated", "entry_id", entryID, "from", current.Status, "to", next.Status)
	return &next, nil
}

func transition(ctx context.Context, s storage.Queries, prev, next *models.LineEntry) error {
	ok, err := s.UpdateLineEntryConditional(ctx, prev, next)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: entry %s changed concurrently", apperr.ErrInvalidTransition, prev.ID)
	}
	metrics.LineTransitionsTotal.WithLabelValues(string(next.Status)).Inc()
	return nil
}
