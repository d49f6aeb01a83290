package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/metrics"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/pricing"
	"github.com/mmynk/estatesale/internal/storage"
)

// errLostRace aborts the bid transaction when the item changed after it was read.
var errLostRace = errors.New("item changed since read")

// Placement is an accepted bid.
type Placement struct {
	Bid *models.Bid
	// Previous is the bid that led before this one, nil for the first bid.
	Previous *models.Bid
	// NextMinimum is what the next bid has to reach.
	NextMinimum decimal.Decimal
}

// BidQuote describes the bidding state of an item for display.
type BidQuote struct {
	ItemID     string
	Open       bool
	CurrentBid *decimal.Decimal
	Minimum    decimal.Decimal
	EndsAt     *time.Time
}

// Ledger accepts bids.
type Ledger struct {
	store storage.Store
	opts  options
}

// NewLedger creates a ledger on store.
func NewLedger(store storage.Store, opts ...Option) *Ledger {
	return &Ledger{store: store, opts: newOptions(opts)}
}

// PlaceBid records a bid of amount by userID on itemID.
//
// The bid is accepted only if it reaches the item's minimum and the item's
// current bid is still the one the minimum was computed from. If a
// concurrent bid got in first, the bid is revalidated once against the new
// current bid; a bid that no longer reaches the minimum is rejected with
// apperr.ErrBidSuperseded. Rejections are *apperr.BidRejectedError carrying
// the minimum to beat.
func (l *Ledger) PlaceBid(ctx context.Context, itemID, userID string, amount decimal.Decimal) (*Placement, error) {
	if itemID == "" {
		return nil, apperr.Validation("item_id is required")
	}
	if userID == "" {
		return nil, apperr.Validation("user_id is required")
	}
	if err := pricing.ValidateAmount(amount); err != nil {
		metrics.BidsTotal.WithLabelValues("invalid").Inc()
		return nil, apperr.Validation("%v", err)
	}

	now := l.opts.now()
	var (
		item *models.Item
		err  error
	)
	for attempt := 0; attempt < 2; attempt++ {
		item, err = l.store.GetItem(ctx, itemID)
		if err != nil {
			metrics.BidsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		if !biddable(item, now) {
			metrics.BidsTotal.WithLabelValues("closed").Inc()
			return nil, apperr.ErrAuctionClosed
		}

		minimum := pricing.MinimumBid(item)
		if amount.LessThan(minimum) {
			reason := apperr.ErrInvalidBid
			result := "invalid"
			if attempt > 0 {
				reason = apperr.ErrBidSuperseded
				result = "superseded"
			}
			metrics.BidsTotal.WithLabelValues(result).Inc()
			return nil, &apperr.BidRejectedError{Reason: reason, Amount: amount, Minimum: minimum}
		}

		placement, err := l.commit(ctx, item, userID, amount, now)
		if errors.Is(err, errLostRace) {
			slog.Debug("Bid lost race, revalidating", "item_id", itemID, "user_id", userID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			metrics.BidsTotal.WithLabelValues("error").Inc()
			return nil, err
		}

		metrics.BidsTotal.WithLabelValues("accepted").Inc()
		slog.Info("Bid accepted",
			"item_id", itemID,
			"user_id", userID,
			"amount", amount.StringFixed(2),
		)
		l.afterAccept(ctx, item, placement)
		return placement, nil
	}

	// Lost twice in a row: report the newest minimum we can see.
	minimum := pricing.MinimumBid(item)
	if latest, err := l.store.GetItem(ctx, itemID); err == nil {
		minimum = pricing.MinimumBid(latest)
	}
	metrics.BidsTotal.WithLabelValues("superseded").Inc()
	return nil, &apperr.BidRejectedError{Reason: apperr.ErrBidSuperseded, Amount: amount, Minimum: minimum}
}

// commit writes the new current bid and the bid row in one transaction.
func (l *Ledger) commit(ctx context.Context, item *models.Item, userID string, amount decimal.Decimal, now time.Time) (*Placement, error) {
	next := *item
	next.CurrentBid = &amount

	placement := &Placement{
		Bid: &models.Bid{
			ID:        uuid.New().String(),
			ItemID:    item.ID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: now,
		},
		NextMinimum: pricing.MinimumBid(&next),
	}

	err := l.store.InTx(ctx, func(q storage.Queries) error {
		ok, err := q.UpdateItemConditional(ctx, item, &next)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		previous, err := q.HighestBid(ctx, item.ID)
		if err != nil {
			return err
		}
		placement.Previous = previous

		return q.InsertBid(ctx, placement.Bid)
	})
	if err != nil {
		return nil, err
	}
	return placement, nil
}

// afterAccept publishes the accepted bid and tells the previous leader they
// were outbid. Neither can undo the bid.
func (l *Ledger) afterAccept(ctx context.Context, item *models.Item, p *Placement) {
	payload := events.BidAccepted{
		ItemID:    p.Bid.ItemID,
		BidID:     p.Bid.ID,
		UserID:    p.Bid.UserID,
		Amount:    p.Bid.Amount,
		Timestamp: p.Bid.CreatedAt,
	}
	if p.Previous != nil {
		payload.PreviousBid = &p.Previous.Amount
	}
	err := l.opts.publisher.Publish(ctx, events.Event{
		Subject: events.BidAcceptedSubject(item.ID),
		ID:      p.Bid.ID,
		Payload: payload,
	})
	if err != nil {
		slog.Warn("Failed to publish bid event", "item_id", item.ID, "bid_id", p.Bid.ID, "error", err)
	}

	if l.opts.dispatcher == nil || p.Previous == nil || p.Previous.UserID == p.Bid.UserID {
		return
	}
	contact, err := l.store.GetContact(ctx, p.Previous.UserID)
	if err != nil {
		slog.Warn("Failed to look up outbid shopper", "user_id", p.Previous.UserID, "error", err)
		return
	}
	l.opts.dispatcher.Send(ctx, notify.Message{
		Recipient: contact,
		Kind:      notify.KindOutbid,
		Body: fmt.Sprintf("You have been outbid on %s. Bid at least $%s to lead again.",
			item.Title, p.NextMinimum.StringFixed(2)),
	})
}

// Quote returns the minimum acceptable bid for an item.
func (l *Ledger) Quote(ctx context.Context, itemID string) (*BidQuote, error) {
	if itemID == "" {
		return nil, apperr.Validation("item_id is required")
	}
	item, err := l.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &BidQuote{
		ItemID:     item.ID,
		Open:       biddable(item, l.opts.now()),
		CurrentBid: item.CurrentBid,
		Minimum:    pricing.MinimumBid(item),
		EndsAt:     item.AuctionEndTime,
	}, nil
}

// biddable reports whether item accepts bids at now. An item without an
// end time is open-ended.
func biddable(item *models.Item, now time.Time) bool {
	if item.Status != models.ItemAvailable {
		return false
	}
	return item.AuctionEndTime == nil || !item.Expired(now)
}
