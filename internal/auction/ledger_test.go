package auction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/storetest"
)

func TestPlaceBid_IncrementScenario(t *testing.T) {
	store := newTestStore(t)
	item := newAuctionItem(t, store)
	ledger := NewLedger(store, WithClock(fixedClock(testNow)))
	ctx := context.Background()

	p, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
	assert.NoError(t, err)
	check.Equal(t, "60.00", p.Bid.Amount.StringFixed(2))
	check.Nil(t, p.Previous)
	check.Equal(t, "70.00", p.NextMinimum.StringFixed(2))

	p, err = ledger.PlaceBid(ctx, item.ID, "bob", dec("75"))
	assert.NoError(t, err)
	assert.NotNil(t, p.Previous)
	check.Equal(t, "alice", p.Previous.UserID)
	check.Equal(t, "85.00", p.NextMinimum.StringFixed(2))

	_, err = ledger.PlaceBid(ctx, item.ID, "carol", dec("70"))
	check.True(t, errors.Is(err, apperr.ErrInvalidBid))
	check.True(t, errors.Is(err, apperr.ErrValidation))
	var rejected *apperr.BidRejectedError
	assert.True(t, errors.As(err, &rejected))
	check.Equal(t, "85.00", rejected.Minimum.StringFixed(2))

	got, err := store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got.CurrentBid)
	check.Equal(t, "75.00", got.CurrentBid.StringFixed(2))

	bids, err := store.ListBids(ctx, item.ID)
	assert.NoError(t, err)
	check.Equal(t, 2, len(bids))
}

func TestPlaceBid_Rejections(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("unknown item", func(t *testing.T) {
		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		_, err := ledger.PlaceBid(ctx, "missing", "alice", dec("60"))
		check.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("invalid amounts", func(t *testing.T) {
		item := newAuctionItem(t, store)
		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		for _, amount := range []string{"0", "-5", "60.001", "1000000000.01"} {
			_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec(amount))
			check.True(t, errors.Is(err, apperr.ErrValidation))
		}
		_, err := ledger.PlaceBid(ctx, item.ID, "", dec("60"))
		check.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("below start price", func(t *testing.T) {
		item := newAuctionItem(t, store)
		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("49.99"))
		var rejected *apperr.BidRejectedError
		assert.True(t, errors.As(err, &rejected))
		check.Equal(t, "50.00", rejected.Minimum.StringFixed(2))
	})

	t.Run("expired auction", func(t *testing.T) {
		item := newAuctionItem(t, store)
		ledger := NewLedger(store, WithClock(fixedClock(testEnd)))
		_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
		check.True(t, errors.Is(err, apperr.ErrAuctionClosed))
		check.True(t, errors.Is(err, apperr.ErrConflict))
	})

	t.Run("item no longer available", func(t *testing.T) {
		item := newAuctionItem(t, store)
		claimed, err := store.ClaimAuction(ctx, item.ID, testEnd)
		assert.NoError(t, err)
		assert.True(t, claimed)

		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		_, err = ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
		check.True(t, errors.Is(err, apperr.ErrAuctionClosed))
	})
}

func TestPlaceBid_OversizedAmountKeepsBidMonotonic(t *testing.T) {
	store := newTestStore(t)
	item := newAuctionItem(t, store)
	ledger := NewLedger(store, WithClock(fixedClock(testNow)))
	ctx := context.Background()

	_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("100000000000000000"))
	check.True(t, errors.Is(err, apperr.ErrValidation))

	got, err := store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	check.Nil(t, got.CurrentBid)

	// The cap itself is accepted and stored exactly.
	_, err = ledger.PlaceBid(ctx, item.ID, "alice", dec("1000000000"))
	assert.NoError(t, err)
	got, err = store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got.CurrentBid)
	check.Equal(t, "1000000000.00", got.CurrentBid.StringFixed(2))

	// Nothing lower can follow.
	_, err = ledger.PlaceBid(ctx, item.ID, "bob", dec("60"))
	check.True(t, errors.Is(err, apperr.ErrInvalidBid))
}

func TestPlaceBid_OpenEndedItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	item := &models.Item{
		SaleID:            "sale-1",
		Title:             "Brass lamp",
		AuctionStartPrice: dec("5"),
	}
	assert.NoError(t, store.CreateItem(ctx, item))

	ledger := NewLedger(store, WithClock(fixedClock(testNow.Add(1000*time.Hour))))
	_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("5"))
	assert.NoError(t, err)

	// Zero increment still requires a raise.
	_, err = ledger.PlaceBid(ctx, item.ID, "bob", dec("5"))
	check.True(t, errors.Is(err, apperr.ErrInvalidBid))
	_, err = ledger.PlaceBid(ctx, item.ID, "bob", dec("5.01"))
	check.NoError(t, err)
}

func TestPlaceBid_LostRace(t *testing.T) {
	ctx := context.Background()

	t.Run("superseded when no longer valid", func(t *testing.T) {
		base := newTestStore(t)
		item := newAuctionItem(t, base)
		store := &faultyStore{Store: base}
		rival := NewLedger(base, WithClock(fixedClock(testNow)))
		store.beforeTx = func() {
			if _, err := rival.PlaceBid(ctx, item.ID, "rival", dec("60")); err != nil {
				t.Errorf("rival bid failed: %v", err)
			}
		}

		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
		check.True(t, errors.Is(err, apperr.ErrBidSuperseded))
		var rejected *apperr.BidRejectedError
		assert.True(t, errors.As(err, &rejected))
		check.Equal(t, "70.00", rejected.Minimum.StringFixed(2))

		bids, err := base.ListBids(ctx, item.ID)
		assert.NoError(t, err)
		assert.Equal(t, 1, len(bids))
		check.Equal(t, "rival", bids[0].UserID)
	})

	t.Run("accepted when still valid", func(t *testing.T) {
		base := newTestStore(t)
		item := newAuctionItem(t, base)
		store := &faultyStore{Store: base}
		rival := NewLedger(base, WithClock(fixedClock(testNow)))
		store.beforeTx = func() {
			if _, err := rival.PlaceBid(ctx, item.ID, "rival", dec("60")); err != nil {
				t.Errorf("rival bid failed: %v", err)
			}
		}

		ledger := NewLedger(store, WithClock(fixedClock(testNow)))
		p, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("80"))
		assert.NoError(t, err)
		assert.NotNil(t, p.Previous)
		check.Equal(t, "rival", p.Previous.UserID)

		got, err := base.GetItem(ctx, item.ID)
		assert.NoError(t, err)
		check.Equal(t, "80.00", got.CurrentBid.StringFixed(2))
	})
}

// TestPlaceBid_Concurrent checks that under concurrent bidding the final
// current bid is the highest accepted amount and every accepted bid raised
// the previous one by at least the increment.
func TestPlaceBid_Concurrent(t *testing.T) {
	storetest.ForEach(t, func(t *testing.T, open storetest.Opener) {
		testConcurrentBids(t, open(t))
	})
}

func testConcurrentBids(t *testing.T, store storage.Store) {
	item := newAuctionItem(t, store)
	ledger := NewLedger(store, WithClock(fixedClock(testNow)))
	ctx := context.Background()

	const bidders = 24
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []decimal.Decimal
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Amounts 50, 55, 60, ... collide on purpose.
			amount := decimal.NewFromInt(int64(50 + 5*(i%12)))
			p, err := ledger.PlaceBid(ctx, item.ID, fmt.Sprintf("user-%d", i), amount)
			if err != nil {
				var rejected *apperr.BidRejectedError
				if !errors.As(err, &rejected) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			accepted = append(accepted, p.Bid.Amount)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.True(t, len(accepted) > 0)
	highest := decimal.Max(accepted[0], accepted...)

	got, err := store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	assert.NotNil(t, got.CurrentBid)
	check.True(t, got.CurrentBid.Equal(highest))

	bids, err := store.ListBids(ctx, item.ID)
	assert.NoError(t, err)
	assert.Equal(t, len(accepted), len(bids))
	check.True(t, bids[0].Amount.GreaterThanOrEqual(dec("50")))
	for i := 1; i < len(bids); i++ {
		check.True(t, bids[i].Amount.GreaterThanOrEqual(bids[i-1].Amount.Add(dec("10"))))
	}
}

func TestPlaceBid_PublishesAndNotifiesOutbid(t *testing.T) {
	store := newTestStore(t)
	item := newAuctionItem(t, store)
	ctx := context.Background()
	assert.NoError(t, store.UpsertContact(ctx, models.Contact{UserID: "alice", Phone: "+15550001"}))

	pub := &events.MemoryPublisher{}
	rec := &recorder{}
	dispatcher := notify.NewDispatcher(rec, 2)
	ledger := NewLedger(store,
		WithClock(fixedClock(testNow)),
		WithPublisher(pub),
		WithDispatcher(dispatcher),
	)

	first, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
	assert.NoError(t, err)
	// Raising your own bid does not notify you.
	_, err = ledger.PlaceBid(ctx, item.ID, "alice", dec("70"))
	assert.NoError(t, err)
	second, err := ledger.PlaceBid(ctx, item.ID, "bob", dec("90"))
	assert.NoError(t, err)
	dispatcher.Wait()

	published := pub.Events()
	assert.Equal(t, 3, len(published))
	check.Equal(t, events.BidAcceptedSubject(item.ID), published[0].Subject)
	check.Equal(t, first.Bid.ID, published[0].ID)
	check.Equal(t, second.Bid.ID, published[2].ID)
	payload, ok := published[2].Payload.(events.BidAccepted)
	assert.True(t, ok)
	assert.NotNil(t, payload.PreviousBid)
	check.Equal(t, "70.00", payload.PreviousBid.StringFixed(2))

	msgs := rec.messages()
	assert.Equal(t, 1, len(msgs))
	check.Equal(t, "alice", msgs[0].Recipient.UserID)
	check.Equal(t, notify.KindOutbid, msgs[0].Kind)
}

func TestPlaceBid_PublishFailureKeepsBid(t *testing.T) {
	store := newTestStore(t)
	item := newAuctionItem(t, store)
	ctx := context.Background()

	pub := &events.MemoryPublisher{Err: errors.New("nats down")}
	ledger := NewLedger(store, WithClock(fixedClock(testNow)), WithPublisher(pub))

	_, err := ledger.PlaceBid(ctx, item.ID, "alice", dec("60"))
	assert.NoError(t, err)

	got, err := store.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	check.Equal(t, "60.00", got.CurrentBid.StringFixed(2))
}

func TestQuote(t *testing.T) {
	store := newTestStore(t)
	item := newAuctionItem(t, store)
	ctx := context.Background()
	ledger := NewLedger(store, WithClock(fixedClock(testNow)))

	q, err := ledger.Quote(ctx, item.ID)
	assert.NoError(t, err)
	check.True(t, q.Open)
	check.Nil(t, q.CurrentBid)
	check.Equal(t, "50.00", q.Minimum.StringFixed(2))

	_, err = ledger.PlaceBid(ctx, item.ID, "alice", dec("65"))
	assert.NoError(t, err)

	q, err = ledger.Quote(ctx, item.ID)
	assert.NoError(t, err)
	check.Equal(t, "75.00", q.Minimum.StringFixed(2))

	closed := NewLedger(store, WithClock(fixedClock(testEnd)))
	q, err = closed.Quote(ctx, item.ID)
	assert.NoError(t, err)
	check.False(t, q.Open)
}
