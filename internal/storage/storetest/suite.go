package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/storage"
)

// RunSuite exercises the storage.Store contract against store, which must be
// empty.
func RunSuite(t *testing.T, store storage.Store) {
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)
	end := now.Add(time.Hour)

	newItem := func(t *testing.T) *models.Item {
		t.Helper()
		item := &models.Item{
			SaleID:            "sale-1",
			Title:             "Walnut dresser",
			AuctionStartPrice: decimal.RequireFromString("50"),
			BidIncrement:      decimal.RequireFromString("10"),
			AuctionEndTime:    &end,
		}
		if err := store.CreateItem(ctx, item); err != nil {
			t.Fatalf("CreateItem failed: %v", err)
		}
		return item
	}

	t.Run("CreateItem generates ID and defaults", func(t *testing.T) {
		item := newItem(t)

		if item.ID == "" {
			t.Error("Expected item ID to be generated")
		}
		if item.Status != models.ItemAvailable {
			t.Errorf("Status = %s, want AVAILABLE", item.Status)
		}

		got, err := store.GetItem(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetItem failed: %v", err)
		}
		if got.CurrentBid != nil {
			t.Errorf("Expected nil current bid, got %s", got.CurrentBid)
		}
		if !got.AuctionStartPrice.Equal(item.AuctionStartPrice) {
			t.Errorf("Start price mismatch: got %s, want %s", got.AuctionStartPrice, item.AuctionStartPrice)
		}
		if got.AuctionEndTime == nil || !got.AuctionEndTime.Equal(end) {
			t.Errorf("End time mismatch: got %v, want %v", got.AuctionEndTime, end)
		}
	})

	t.Run("GetItem returns not found", func(t *testing.T) {
		_, err := store.GetItem(ctx, "nonexistent-id")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateItemConditional compares current bid", func(t *testing.T) {
		item := newItem(t)

		bid := decimal.RequireFromString("60")
		next := *item
		next.CurrentBid = &bid

		ok, err := store.UpdateItemConditional(ctx, item, &next)
		if err != nil {
			t.Fatalf("UpdateItemConditional failed: %v", err)
		}
		if !ok {
			t.Fatal("Expected first update to apply")
		}

		// Same expectation again is stale now
		ok, err = store.UpdateItemConditional(ctx, item, &next)
		if err != nil {
			t.Fatalf("UpdateItemConditional failed: %v", err)
		}
		if ok {
			t.Error("Expected stale update to be rejected")
		}

		got, _ := store.GetItem(ctx, item.ID)
		if got.CurrentBid == nil || !got.CurrentBid.Equal(bid) {
			t.Errorf("Current bid = %v, want 60", got.CurrentBid)
		}
	})

	t.Run("HighestBid breaks ties by earliest bid", func(t *testing.T) {
		item := newItem(t)

		if bid, err := store.HighestBid(ctx, item.ID); err != nil || bid != nil {
			t.Fatalf("Expected no highest bid, got %v, %v", bid, err)
		}

		bids := []*models.Bid{
			{ItemID: item.ID, UserID: "u1", Amount: decimal.RequireFromString("60"), CreatedAt: now},
			{ItemID: item.ID, UserID: "u2", Amount: decimal.RequireFromString("75"), CreatedAt: now.Add(time.Second)},
			{ItemID: item.ID, UserID: "u3", Amount: decimal.RequireFromString("75"), CreatedAt: now.Add(2 * time.Second)},
		}
		for _, b := range bids {
			if err := store.InsertBid(ctx, b); err != nil {
				t.Fatalf("InsertBid failed: %v", err)
			}
		}

		top, err := store.HighestBid(ctx, item.ID)
		if err != nil {
			t.Fatalf("HighestBid failed: %v", err)
		}
		if top.UserID != "u2" {
			t.Errorf("Winner = %s, want u2", top.UserID)
		}

		all, err := store.ListBids(ctx, item.ID)
		if err != nil {
			t.Fatalf("ListBids failed: %v", err)
		}
		if len(all) != 3 || all[0].UserID != "u1" {
			t.Errorf("Unexpected bid order: %+v", all)
		}
	})

	t.Run("ClaimAuction is a test-and-set", func(t *testing.T) {
		item := newItem(t)

		ok, err := store.ClaimAuction(ctx, item.ID, now)
		if err != nil {
			t.Fatalf("ClaimAuction failed: %v", err)
		}
		if ok {
			t.Error("Expected claim before end time to fail")
		}

		expired, err := store.ListExpiredAuctions(ctx, end)
		if err != nil {
			t.Fatalf("ListExpiredAuctions failed: %v", err)
		}
		if len(expired) == 0 {
			t.Fatal("Expected expired auctions at end time")
		}

		ok, _ = store.ClaimAuction(ctx, item.ID, end)
		if !ok {
			t.Fatal("Expected first claim to succeed")
		}
		ok, _ = store.ClaimAuction(ctx, item.ID, end)
		if ok {
			t.Error("Expected second claim to fail")
		}
	})

	t.Run("InsertAllocation is unique per item", func(t *testing.T) {
		item := newItem(t)

		first := &models.Allocation{ItemID: item.ID, UserID: "u1", Amount: decimal.RequireFromString("75")}
		ok, err := store.InsertAllocation(ctx, first)
		if err != nil || !ok {
			t.Fatalf("Expected first allocation to be created: %v, %v", ok, err)
		}

		second := &models.Allocation{ItemID: item.ID, UserID: "u2", Amount: decimal.RequireFromString("80")}
		ok, err = store.InsertAllocation(ctx, second)
		if err != nil {
			t.Fatalf("InsertAllocation failed: %v", err)
		}
		if ok {
			t.Error("Expected duplicate allocation to be ignored")
		}

		got, err := store.GetAllocation(ctx, item.ID)
		if err != nil {
			t.Fatalf("GetAllocation failed: %v", err)
		}
		if got.UserID != "u1" || got.Status != models.AllocationPendingPayment {
			t.Errorf("Unexpected allocation: %+v", got)
		}

		pending, _ := store.ListUnannouncedAllocations(ctx)
		found := false
		for _, a := range pending {
			if a.ID == first.ID {
				found = true
			}
		}
		if !found {
			t.Error("Expected allocation in outbox")
		}

		if err := store.MarkAllocationAnnounced(ctx, first.ID, now); err != nil {
			t.Fatalf("MarkAllocationAnnounced failed: %v", err)
		}
		got, _ = store.GetAllocation(ctx, item.ID)
		if got.AnnouncedAt == nil {
			t.Error("Expected AnnouncedAt to be set")
		}
	})

	t.Run("ListSubscribers skips unreachable users", func(t *testing.T) {
		sale := &models.Sale{OrganizerID: "org-1", Title: "Maple Street"}
		if err := store.CreateSale(ctx, sale); err != nil {
			t.Fatalf("CreateSale failed: %v", err)
		}

		store.UpsertContact(ctx, models.Contact{UserID: "alice", Phone: "+15550001"})
		store.UpsertContact(ctx, models.Contact{UserID: "bob", Email: "bob@example.com"})
		store.UpsertContact(ctx, models.Contact{UserID: "carol"})

		store.Subscribe(ctx, sale.ID, "bob", now.Add(time.Minute))
		store.Subscribe(ctx, sale.ID, "alice", now)
		store.Subscribe(ctx, sale.ID, "carol", now)
		store.Subscribe(ctx, sale.ID, "dave", now)

		subs, err := store.ListSubscribers(ctx, sale.ID)
		if err != nil {
			t.Fatalf("ListSubscribers failed: %v", err)
		}
		if len(subs) != 2 {
			t.Fatalf("Expected 2 reachable subscribers, got %d", len(subs))
		}
		if subs[0].Contact.UserID != "alice" || subs[1].Contact.UserID != "bob" {
			t.Errorf("Unexpected subscriber order: %+v", subs)
		}
	})

	t.Run("Line entries round trip", func(t *testing.T) {
		saleID := "line-sale"

		started, err := store.MarkLineStarted(ctx, saleID, now)
		if err != nil || !started {
			t.Fatalf("Expected line to start: %v, %v", started, err)
		}
		started, _ = store.MarkLineStarted(ctx, saleID, now)
		if started {
			t.Error("Expected second start to be rejected")
		}

		locked, err := store.LockLine(ctx, saleID)
		if err != nil || !locked {
			t.Fatalf("Expected LockLine to succeed: %v, %v", locked, err)
		}
		locked, _ = store.LockLine(ctx, "never-started")
		if locked {
			t.Error("Expected LockLine on unknown sale to fail")
		}

		entries := []*models.LineEntry{
			{SaleID: saleID, UserID: "a", Position: 1, Status: models.LineWaiting, Contact: models.Contact{UserID: "a", Phone: "1"}},
			{SaleID: saleID, UserID: "b", Position: 2, Status: models.LineWaiting, Contact: models.Contact{UserID: "b", Email: "b@x"}},
		}
		if err := store.InsertLineEntries(ctx, entries); err != nil {
			t.Fatalf("InsertLineEntries failed: %v", err)
		}

		first, err := store.FirstWaiting(ctx, saleID)
		if err != nil || first == nil || first.UserID != "a" {
			t.Fatalf("Unexpected first waiting entry: %+v, %v", first, err)
		}

		next := *first
		next.Status = models.LineCalled
		next.NotifiedAt = &now
		ok, err := store.UpdateLineEntryConditional(ctx, first, &next)
		if err != nil || !ok {
			t.Fatalf("Expected conditional update to apply: %v, %v", ok, err)
		}
		ok, _ = store.UpdateLineEntryConditional(ctx, first, &next)
		if ok {
			t.Error("Expected stale conditional update to be rejected")
		}

		called, _ := store.CountCalled(ctx, saleID)
		if called != 1 {
			t.Errorf("CountCalled = %d, want 1", called)
		}

		list, err := store.ListLineEntries(ctx, saleID)
		if err != nil {
			t.Fatalf("ListLineEntries failed: %v", err)
		}
		if len(list) != 2 || list[0].Status != models.LineCalled || list[1].Contact.Email != "b@x" {
			t.Errorf("Unexpected line: %+v", list)
		}
	})

	t.Run("InTx rolls back on error", func(t *testing.T) {
		boom := errors.New("boom")
		var itemID string

		err := store.InTx(ctx, func(q storage.Queries) error {
			item := &models.Item{SaleID: "s", Title: "Lamp", AuctionStartPrice: decimal.NewFromInt(5)}
			if err := q.CreateItem(ctx, item); err != nil {
				return err
			}
			itemID = item.ID
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected boom, got %v", err)
		}

		if _, err := store.GetItem(ctx, itemID); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Expected rolled back item to be missing, got %v", err)
		}
	})

	t.Run("Conditional writes have a single winner", func(t *testing.T) {
		item := newItem(t)

		const workers = 8
		var (
			wg      sync.WaitGroup
			claims  atomic.Int32
			inserts atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := store.ClaimAuction(ctx, item.ID, end)
				if err != nil {
					t.Errorf("ClaimAuction failed: %v", err)
					return
				}
				if ok {
					claims.Add(1)
				}

				a := &models.Allocation{ItemID: item.ID, UserID: fmt.Sprintf("u%d", i), Amount: decimal.NewFromInt(60)}
				ok, err = store.InsertAllocation(ctx, a)
				if err != nil {
					t.Errorf("InsertAllocation failed: %v", err)
					return
				}
				if ok {
					inserts.Add(1)
				}
			}(i)
		}
		wg.Wait()

		if claims.Load() != 1 {
			t.Errorf("Successful claims = %d, want 1", claims.Load())
		}
		if inserts.Load() != 1 {
			t.Errorf("Created allocations = %d, want 1", inserts.Load())
		}
	})

	t.Run("LockLine serializes line transactions", func(t *testing.T) {
		saleID := "locked-sale"
		if _, err := store.MarkLineStarted(ctx, saleID, now); err != nil {
			t.Fatalf("MarkLineStarted failed: %v", err)
		}

		// Each transaction reads the entry count under the line lock and
		// appends the next position; without the lock two would collide.
		const workers = 6
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.InTx(ctx, func(q storage.Queries) error {
					locked, err := q.LockLine(ctx, saleID)
					if err != nil {
						return err
					}
					if !locked {
						return errors.New("line not locked")
					}
					list, err := q.ListLineEntries(ctx, saleID)
					if err != nil {
						return err
					}
					user := fmt.Sprintf("user-%d", i)
					return q.InsertLineEntries(ctx, []*models.LineEntry{{
						SaleID:   saleID,
						UserID:   user,
						Contact:  models.Contact{UserID: user, Phone: "1"},
						Position: len(list) + 1,
						Status:   models.LineWaiting,
					}})
				})
				if err != nil {
					t.Errorf("line transaction failed: %v", err)
				}
			}(i)
		}
		wg.Wait()

		list, err := store.ListLineEntries(ctx, saleID)
		if err != nil {
			t.Fatalf("ListLineEntries failed: %v", err)
		}
		if len(list) != workers {
			t.Fatalf("Entries = %d, want %d", len(list), workers)
		}
		for i, e := range list {
			if e.Position != i+1 {
				t.Errorf("Entry %d has position %d", i, e.Position)
			}
		}
	})
}
