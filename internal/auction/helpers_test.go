package auction

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/storetest"
)

var (
	testNow = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	testEnd = testNow.Add(time.Hour)
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestStore(t *testing.T) storage.Store {
	return storetest.SQLite(t)
}

// newAuctionItem creates an item with start price 50 and increment 10
// ending at testEnd.
func newAuctionItem(t *testing.T, store storage.Store) *models.Item {
	t.Helper()
	end := testEnd
	item := &models.Item{
		SaleID:            "sale-1",
		Title:             "Walnut dresser",
		AuctionStartPrice: dec("50"),
		BidIncrement:      dec("10"),
		AuctionEndTime:    &end,
	}
	if err := store.CreateItem(context.Background(), item); err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	return item
}

// recorder is a Notifier that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Notify(_ context.Context, msg notify.Message) notify.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return notify.Delivered()
}

func (r *recorder) messages() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.msgs...)
}

// faultyStore injects failures into a real store.
type faultyStore struct {
	storage.Store

	// failClaims is the number of ClaimAuction calls that fail.
	failClaims atomic.Int32
	// failTxs is the number of InTx calls that fail before running fn.
	failTxs atomic.Int32
	// beforeTx runs once before the next transaction.
	beforeTx func()
}

func (s *faultyStore) ClaimAuction(ctx context.Context, itemID string, now time.Time) (bool, error) {
	if s.failClaims.Add(-1) >= 0 {
		return false, apperr.Store("failed to claim auction", context.DeadlineExceeded)
	}
	return s.Store.ClaimAuction(ctx, itemID, now)
}

func (s *faultyStore) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	if hook := s.beforeTx; hook != nil {
		s.beforeTx = nil
		hook()
	}
	if s.failTxs.Add(-1) >= 0 {
		return apperr.Store("failed to begin transaction", context.DeadlineExceeded)
	}
	return s.Store.InTx(ctx, fn)
}
