package auction

import (
	"context"
	"errors"
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

// errResolved reports that another worker already resolved the item.
var errResolved = errors.New("auction already resolved")

// Settler closes expired auctions.
//
// Each expired item is first claimed with a test-and-set AVAILABLE ->
// AUCTION_ENDED; only the worker whose claim succeeds resolves it. Resolution
// creates the winner's allocation and marks the item SOLD in one transaction.
// An item left claimed but unresolved is picked up again by the re-scan that
// runs on every sweep; the unique allocation per item keeps that safe.
type Settler struct {
	store storage.Store
	opts  options
}

// NewSettler creates a settler on store.
func NewSettler(store storage.Store, opts ...Option) *Settler {
	return &Settler{store: store, opts: newOptions(opts)}
}

// Sweep runs RunSweep at the settler's current time.
func (s *Settler) Sweep(ctx context.Context) (*models.SettlementReport, error) {
	return s.RunSweep(ctx, s.opts.now())
}

// RunSweep settles every auction that expired at or before now.
func (s *Settler) RunSweep(ctx context.Context, now time.Time) (*models.SettlementReport, error) {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	candidates, err := s.store.ListExpiredAuctions(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired auctions: %w", err)
	}

	report := &models.SettlementReport{Closed: []string{}, Sold: []models.SoldItem{}}
	for _, item := range candidates {
		claimed, err := s.claim(ctx, item.ID, now)
		if err != nil {
			slog.Error("Failed to claim auction", "item_id", item.ID, "error", err)
			metrics.SettlementsTotal.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, item.ID)
			continue
		}
		if !claimed {
			metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		report.Closed = append(report.Closed, item.ID)

		sold, err := s.resolve(ctx, item.ID, now)
		if errors.Is(err, errResolved) {
			metrics.SettlementsTotal.WithLabelValues("skipped").Inc()
			continue
		}
		if err != nil {
			// Left AUCTION_ENDED; the re-scan below or the next sweep retries it.
			slog.Error("Failed to resolve auction", "item_id", item.ID, "error", err)
			metrics.SettlementsTotal.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, item.ID)
			continue
		}
		s.record(report, item.ID, sold)
	}

	s.rescan(ctx, now, report)
	s.announce(ctx, now)

	slog.Info("Settlement sweep finished",
		"candidates", len(candidates),
		"closed", len(report.Closed),
		"sold", len(report.Sold),
		"failed", len(report.Failed),
	)
	return report, nil
}

// claim retries once on a store failure; the test-and-set is idempotent.
func (s *Settler) claim(ctx context.Context, itemID string, now time.Time) (bool, error) {
	claimed, err := s.store.ClaimAuction(ctx, itemID, now)
	if err != nil && errors.Is(err, apperr.ErrStore) {
		slog.Warn("Retrying auction claim", "item_id", itemID, "error", err)
		claimed, err = s.store.ClaimAuction(ctx, itemID, now)
	}
	return claimed, err
}

// resolve settles a claimed item. It returns nil, nil when the item has no
// bids and errResolved when another worker got there first.
func (s *Settler) resolve(ctx context.Context, itemID string, now time.Time) (*models.SoldItem, error) {
	var sold *models.SoldItem
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		item, err := q.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status != models.ItemAuctionEnded {
			return errResolved
		}

		bid, err := q.HighestBid(ctx, itemID)
		if err != nil {
			return err
		}
		if bid == nil {
			return nil
		}

		created, err := q.InsertAllocation(ctx, &models.Allocation{
			ID:        uuid.New().String(),
			ItemID:    itemID,
			UserID:    bid.UserID,
			Amount:    bid.Amount,
			Status:    models.AllocationPendingPayment,
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		if !created {
			return errResolved
		}

		next := *item
		next.Status = models.ItemSold
		next.CurrentBid = &bid.Amount
		ok, err := q.UpdateItemConditional(ctx, item, &next)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: item %s changed during settlement", apperr.ErrConflict, itemID)
		}

		sold = &models.SoldItem{ItemID: itemID, UserID: bid.UserID, Amount: bid.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sold, nil
}

func (s *Settler) record(report *models.SettlementReport, itemID string, sold *models.SoldItem) {
	if sold == nil {
		metrics.SettlementsTotal.WithLabelValues("unsold").Inc()
		slog.Info("Auction ended without bids", "item_id", itemID)
		return
	}
	metrics.SettlementsTotal.WithLabelValues("sold").Inc()
	slog.Info("Auction sold",
		"item_id", itemID,
		"user_id", sold.UserID,
		"amount", sold.Amount.StringFixed(2),
	)
	report.Sold = append(report.Sold, *sold)
}

// rescan resolves items claimed by an earlier sweep whose resolution failed.
func (s *Settler) rescan(ctx context.Context, now time.Time, report *models.SettlementReport) {
	unresolved, err := s.store.ListUnresolvedAuctions(ctx)
	if err != nil {
		slog.Error("Failed to list unresolved auctions", "error", err)
		return
	}
	for _, item := range unresolved {
		if contains(report.Failed, item.ID) {
			continue
		}
		sold, err := s.resolve(ctx, item.ID, now)
		if errors.Is(err, errResolved) {
			continue
		}
		if err != nil {
			slog.Error("Failed to resolve auction on re-scan", "item_id", item.ID, "error", err)
			metrics.SettlementsTotal.WithLabelValues("failed").Inc()
			report.Failed = append(report.Failed, item.ID)
			continue
		}
		if sold != nil {
			slog.Info("Recovered unresolved auction", "item_id", item.ID)
		}
		s.record(report, item.ID, sold)
	}
}

// announce drains the allocation outbox: each allocation is published for
// the payments service, then marked announced and its winner notified.
// Allocations that fail to publish stay in the outbox for the next sweep.
func (s *Settler) announce(ctx context.Context, now time.Time) {
	allocations, err := s.store.ListUnannouncedAllocations(ctx)
	if err != nil {
		slog.Error("Failed to list unannounced allocations", "error", err)
		return
	}

	for _, a := range allocations {
		err := s.opts.publisher.Publish(ctx, events.Event{
			Subject: events.AllocationCreatedSubject(a.ItemID),
			ID:      a.ID,
			Payload: events.AllocationCreated{
				AllocationID: a.ID,
				ItemID:       a.ItemID,
				UserID:       a.UserID,
				Amount:       a.Amount,
				Timestamp:    a.CreatedAt,
			},
		})
		if err != nil {
			slog.Warn("Failed to publish allocation", "allocation_id", a.ID, "item_id", a.ItemID, "error", err)
			continue
		}
		if err := s.store.MarkAllocationAnnounced(ctx, a.ID, now); err != nil {
			slog.Error("Failed to mark allocation announced", "allocation_id", a.ID, "error", err)
			continue
		}
		s.notifyWinner(ctx, a)
	}
}

func (s *Settler) notifyWinner(ctx context.Context, a *models.Allocation) {
	if s.opts.dispatcher == nil {
		return
	}
	contact, err := s.store.GetContact(ctx, a.UserID)
	if err != nil {
		slog.Warn("Failed to look up auction winner", "user_id", a.UserID, "error", err)
		return
	}
	title := a.ItemID
	if item, err := s.store.GetItem(ctx, a.ItemID); err == nil {
		title = item.Title
	}
	s.opts.dispatcher.Send(ctx, notify.Message{
		Recipient: contact,
		Kind:      notify.KindAuctionWon,
		Body:      fmt.Sprintf("You won %s for $%s. Complete payment to collect it.", title, a.Amount.StringFixed(2)),
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
