package line

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/models"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/storetest"
)

var testNow = time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) storage.Store {
	return storetest.SQLite(t)
}

// newSale creates a sale whose subscribers are users, subscribed in order.
func newSale(t *testing.T, store storage.Store, q *Queue, users ...string) *models.Sale {
	t.Helper()
	ctx := context.Background()
	sale := &models.Sale{OrganizerID: "organizer", Title: "Maple Street estate"}
	if err := store.CreateSale(ctx, sale); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	for i, u := range users {
		contact := models.Contact{UserID: u, Phone: fmt.Sprintf("+1555000%04d", i)}
		if err := q.Subscribe(ctx, sale.ID, contact, testNow.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Subscribe(%s) failed: %v", u, err)
		}
	}
	return sale
}

func TestLine_ServeInOrder(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store)
	sale := newSale(t, store, q, "A", "B", "C")
	ctx := context.Background()

	entries, err := q.StartLine(ctx, sale.ID, testNow)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(entries))
	for i, want := range []string{"A", "B", "C"} {
		check.Equal(t, want, entries[i].UserID)
		check.Equal(t, i+1, entries[i].Position)
		check.Equal(t, models.LineWaiting, entries[i].Status)
	}

	called, err := q.CallNext(ctx, sale.ID, testNow.Add(time.Minute))
	assert.NoError(t, err)
	check.Equal(t, "A", called.UserID)
	check.Equal(t, models.LineCalled, called.Status)
	assert.NotNil(t, called.NotifiedAt)
	check.True(t, called.NotifiedAt.Equal(testNow.Add(time.Minute)))

	served, err := q.MarkServed(ctx, called.ID, testNow.Add(2*time.Minute))
	assert.NoError(t, err)
	check.Equal(t, models.LineServed, served.Status)
	assert.NotNil(t, served.EnteredAt)

	called, err = q.CallNext(ctx, sale.ID, testNow.Add(3*time.Minute))
	assert.NoError(t, err)
	check.Equal(t, "B", called.UserID)

	status, err := q.Status(ctx, sale.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(status))
	check.Equal(t, models.LineServed, status[0].Status)
	check.Equal(t, models.LineCalled, status[1].Status)
	check.Equal(t, models.LineWaiting, status[2].Status)
}

func TestStartLine(t *testing.T) {
	ctx := context.Background()

	t.Run("dense positions", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		var users []string
		for i := 0; i < 25; i++ {
			users = append(users, fmt.Sprintf("user-%02d", i))
		}
		sale := newSale(t, store, q, users...)

		entries, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		assert.Equal(t, len(users), len(entries))

		seen := map[int]bool{}
		for _, e := range entries {
			check.False(t, seen[e.Position])
			seen[e.Position] = true
		}
		for p := 1; p <= len(users); p++ {
			check.True(t, seen[p])
		}
	})

	t.Run("skips unreachable users", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q, "A", "B")
		// C subscribed before registering any contact method.
		assert.NoError(t, store.Subscribe(ctx, sale.ID, "C", testNow))

		entries, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		assert.Equal(t, 2, len(entries))
		check.Equal(t, "A", entries[0].UserID)
		check.Equal(t, "B", entries[1].UserID)
	})

	t.Run("no subscribers", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q)

		entries, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		check.Equal(t, 0, len(entries))

		_, err = q.CallNext(ctx, sale.ID, testNow)
		check.True(t, errors.Is(err, apperr.ErrEmptyQueue))
	})

	t.Run("already started", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q, "A")

		_, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		_, err = q.StartLine(ctx, sale.ID, testNow)
		check.True(t, errors.Is(err, apperr.ErrAlreadyStarted))

		status, err := q.Status(ctx, sale.ID)
		assert.NoError(t, err)
		check.Equal(t, 1, len(status))
	})

	storetest.ForEach(t, func(t *testing.T, open storetest.Opener) {
		t.Run("concurrent starts create one line", func(t *testing.T) {
			testConcurrentStarts(t, open(t))
		})
	})

	t.Run("unknown sale", func(t *testing.T) {
		q := NewQueue(newTestStore(t))
		_, err := q.StartLine(ctx, "missing", testNow)
		check.True(t, errors.Is(err, apperr.ErrNotFound))
	})
}

func testConcurrentStarts(t *testing.T, store storage.Store) {
	ctx := context.Background()
	q := NewQueue(store)
	sale := newSale(t, store, q, "A", "B", "C")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		started int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.StartLine(ctx, sale.ID, testNow)
			if err == nil {
				mu.Lock()
				started++
				mu.Unlock()
			} else if !errors.Is(err, apperr.ErrAlreadyStarted) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	check.Equal(t, 1, started)
	status, err := q.Status(ctx, sale.ID)
	assert.NoError(t, err)
	check.Equal(t, 3, len(status))
}

func TestCallNext(t *testing.T) {
	ctx := context.Background()

	t.Run("one call at a time", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q, "A", "B")
		_, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)

		first, err := q.CallNext(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		_, err = q.CallNext(ctx, sale.ID, testNow)
		check.True(t, errors.Is(err, apperr.ErrCallInProgress))
		check.True(t, errors.Is(err, apperr.ErrConflict))

		_, err = q.Cancel(ctx, first.ID)
		assert.NoError(t, err)
		second, err := q.CallNext(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		check.Equal(t, "B", second.UserID)
	})

	t.Run("strictly increasing positions without single call", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store, WithSingleCall(false))
		sale := newSale(t, store, q, "A", "B", "C", "D")
		_, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)

		last := 0
		for i := 0; i < 4; i++ {
			e, err := q.CallNext(ctx, sale.ID, testNow)
			assert.NoError(t, err)
			check.True(t, e.Position > last)
			last = e.Position
		}
		_, err = q.CallNext(ctx, sale.ID, testNow)
		check.True(t, errors.Is(err, apperr.ErrEmptyQueue))
	})

	t.Run("skips cancelled entries", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q, "A", "B")
		entries, err := q.StartLine(ctx, sale.ID, testNow)
		assert.NoError(t, err)

		_, err = q.Cancel(ctx, entries[0].ID)
		assert.NoError(t, err)
		e, err := q.CallNext(ctx, sale.ID, testNow)
		assert.NoError(t, err)
		check.Equal(t, "B", e.UserID)
	})

	t.Run("line not started", func(t *testing.T) {
		store := newTestStore(t)
		q := NewQueue(store)
		sale := newSale(t, store, q, "A")

		_, err := q.CallNext(ctx, sale.ID, testNow)
		check.True(t, errors.Is(err, apperr.ErrNotFound))
		_, err = q.CallNext(ctx, "missing", testNow)
		check.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	storetest.ForEach(t, func(t *testing.T, open storetest.Opener) {
		t.Run("concurrent calls never share an entry", func(t *testing.T) {
			testConcurrentCalls(t, open(t))
		})
	})
}

func testConcurrentCalls(t *testing.T, store storage.Store) {
	ctx := context.Background()
	q := NewQueue(store, WithSingleCall(false))
	users := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	sale := newSale(t, store, q, users...)
	_, err := q.StartLine(ctx, sale.ID, testNow)
	assert.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		positions []int
		empty     int
	)
	for i := 0; i < len(users)+4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := q.CallNext(ctx, sale.ID, testNow)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				positions = append(positions, e.Position)
			case errors.Is(err, apperr.ErrEmptyQueue):
				empty++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	sort.Ints(positions)
	check.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, positions)
	check.Equal(t, 4, empty)
}

func TestMarkServed(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store, WithSingleCall(false))
	sale := newSale(t, store, q, "A", "B")
	ctx := context.Background()

	entries, err := q.StartLine(ctx, sale.ID, testNow)
	assert.NoError(t, err)

	_, err = q.MarkServed(ctx, entries[0].ID, testNow)
	check.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	called, err := q.CallNext(ctx, sale.ID, testNow)
	assert.NoError(t, err)

	_, err = q.MarkServed(ctx, called.ID, testNow)
	assert.NoError(t, err)
	_, err = q.MarkServed(ctx, called.ID, testNow)
	check.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	_, err = q.MarkServed(ctx, "missing", testNow)
	check.True(t, errors.Is(err, apperr.ErrNotFound))

	t.Run("concurrent clicks serve once", func(t *testing.T) {
		called, err := q.CallNext(ctx, sale.ID, testNow)
		assert.NoError(t, err)

		var (
			wg sync.WaitGroup
			mu sync.Mutex
			ok int
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := q.MarkServed(ctx, called.ID, testNow)
				if err == nil {
					mu.Lock()
					ok++
					mu.Unlock()
				} else if !errors.Is(err, apperr.ErrInvalidTransition) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		check.Equal(t, 1, ok)
	})
}

func TestCancel(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store)
	sale := newSale(t, store, q, "A", "B")
	ctx := context.Background()

	entries, err := q.StartLine(ctx, sale.ID, testNow)
	assert.NoError(t, err)

	cancelled, err := q.Cancel(ctx, entries[1].ID)
	assert.NoError(t, err)
	check.Equal(t, models.LineCancelled, cancelled.Status)

	_, err = q.Cancel(ctx, entries[1].ID)
	check.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	called, err := q.CallNext(ctx, sale.ID, testNow)
	assert.NoError(t, err)
	_, err = q.MarkServed(ctx, called.ID, testNow)
	assert.NoError(t, err)
	_, err = q.Cancel(ctx, called.ID)
	check.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	// Positions are not renumbered.
	status, err := q.Status(ctx, sale.ID)
	assert.NoError(t, err)
	check.Equal(t, 1, status[0].Position)
	check.Equal(t, 2, status[1].Position)
}

func TestSubscribe_Validation(t *testing.T) {
	store := newTestStore(t)
	q := NewQueue(store)
	sale := newSale(t, store, q)
	ctx := context.Background()

	err := q.Subscribe(ctx, sale.ID, models.Contact{UserID: "A"}, testNow)
	check.True(t, errors.Is(err, apperr.ErrValidation))

	err = q.Subscribe(ctx, "missing", models.Contact{UserID: "A", Email: "a@example.com"}, testNow)
	check.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestLine_NotificationsAndEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var (
		mu   sync.Mutex
		msgs []notify.Message
	)
	notifier := notify.NotifierFunc(func(_ context.Context, msg notify.Message) notify.Outcome {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
		if msg.Recipient.UserID == "B" {
			return notify.Failed("number disconnected")
		}
		return notify.Delivered()
	})
	dispatcher := notify.NewDispatcher(notifier, 2)
	pub := &events.MemoryPublisher{}
	q := NewQueue(store, WithDispatcher(dispatcher), WithPublisher(pub))
	sale := newSale(t, store, q, "A", "B", "C")

	entries, err := q.StartLine(ctx, sale.ID, testNow)
	assert.NoError(t, err)
	dispatcher.Wait()

	mu.Lock()
	check.Equal(t, 3, len(msgs))
	mu.Unlock()

	// B's failed notification does not affect the line.
	called, err := q.CallNext(ctx, sale.ID, testNow)
	assert.NoError(t, err)
	check.Equal(t, entries[0].ID, called.ID)
	dispatcher.Wait()

	mu.Lock()
	last := msgs[len(msgs)-1]
	mu.Unlock()
	check.Equal(t, notify.KindLineCalled, last.Kind)
	check.Equal(t, "A", last.Recipient.UserID)

	published := pub.Events()
	assert.Equal(t, 1, len(published))
	check.Equal(t, events.LineCalledSubject(sale.ID), published[0].Subject)
	check.Equal(t, called.ID, published[0].ID)
}
