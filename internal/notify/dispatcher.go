package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/estatesale/internal/apperr"
	"github.com/mmynk/estatesale/internal/metrics"
)

// RecipientResult is the delivery result for one message of a batch.
type RecipientResult struct {
	UserID  string
	Kind    Kind
	Outcome Outcome
	// Err wraps apperr.ErrExternalService when delivery failed.
	Err error
}

// BatchResult collects per-recipient results.
type BatchResult struct {
	Results []RecipientResult
}

// Failed returns the results that were not delivered.
func (r BatchResult) Failed() []RecipientResult {
	var failed []RecipientResult
	for _, res := range r.Results {
		if !res.Outcome.Delivered {
			failed = append(failed, res)
		}
	}
	return failed
}

// Batch is a handle on notifications running in the background.
type Batch struct {
	done   chan struct{}
	result BatchResult
}

// Done is closed once every message of the batch was attempted.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch finished and returns its result.
func (b *Batch) Wait() BatchResult {
	<-b.done
	return b.result
}

// Dispatcher sends notifications after the triggering transaction committed.
// Sends run on background goroutines; a slow or failing recipient never
// blocks the caller or the other recipients of the batch.
type Dispatcher struct {
	notifier    Notifier
	concurrency int
	timeout     time.Duration
	inflight    sync.WaitGroup
}

// NewDispatcher creates a dispatcher delivering through n with at most
// concurrency deliveries in flight per batch.
func NewDispatcher(n Notifier, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		notifier:    n,
		concurrency: concurrency,
		timeout:     10 * time.Second,
	}
}

// Send dispatches a single message.
func (d *Dispatcher) Send(ctx context.Context, msg Message) *Batch {
	return d.SendBatch(ctx, []Message{msg})
}

// SendBatch dispatches msgs and returns immediately. ctx only carries values;
// its cancellation does not stop delivery.
func (d *Dispatcher) SendBatch(ctx context.Context, msgs []Message) *Batch {
	batch := &Batch{
		done:   make(chan struct{}),
		result: BatchResult{Results: make([]RecipientResult, len(msgs))},
	}
	ctx = context.WithoutCancel(ctx)

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer close(batch.done)

		var g errgroup.Group
		g.SetLimit(d.concurrency)
		for i, msg := range msgs {
			g.Go(func() error {
				batch.result.Results[i] = d.deliver(ctx, msg)
				return nil
			})
		}
		g.Wait()

		if failed := batch.result.Failed(); len(failed) > 0 {
			slog.Warn("Notification batch had failures",
				"total", len(msgs),
				"failed", len(failed),
			)
		}
	}()

	return batch
}

// Wait blocks until every dispatched batch finished. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) (res RecipientResult) {
	res = RecipientResult{UserID: msg.Recipient.UserID, Kind: msg.Kind}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = Failed(fmt.Sprintf("notifier panic: %v", r))
		}
		if res.Outcome.Delivered {
			metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
			return
		}
		res.Err = fmt.Errorf("%w: notify %s: %s", apperr.ErrExternalService, msg.Recipient.UserID, res.Outcome.Reason)
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		slog.Warn("Notification failed",
			"user_id", msg.Recipient.UserID,
			"kind", msg.Kind,
			"reason", res.Outcome.Reason,
		)
	}()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	res.Outcome = d.notifier.Notify(ctx, msg)
	return res
}
