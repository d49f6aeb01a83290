package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mmynk/estatesale/internal/lock"
)

// SweepLockName is the lease shared by every instance running a Scheduler.
const SweepLockName = "settlement-sweep"

// Scheduler runs the settlement sweep on a fixed interval.
type Scheduler struct {
	settler  *Settler
	interval time.Duration
	locker   lock.Locker
	lockTTL  time.Duration
}

// NewScheduler creates a scheduler. A nil locker runs every sweep unguarded.
func NewScheduler(settler *Settler, interval time.Duration, locker lock.Locker, lockTTL time.Duration) *Scheduler {
	if locker == nil {
		locker = lock.Noop{}
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &Scheduler{
		settler:  settler,
		interval: interval,
		locker:   locker,
		lockTTL:  lockTTL,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Settlement scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(ctx)

		select {
		case <-ctx.Done():
			slog.Info("Settlement scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs a single sweep under the lease lock.
func (s *Scheduler) Tick(ctx context.Context) {
	lease, err := s.locker.Acquire(ctx, SweepLockName, s.lockTTL)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		slog.Debug("Sweep skipped, another instance holds the lock")
		return
	case err != nil:
		// The claim protocol keeps concurrent sweeps correct.
		slog.Warn("Sweep lock unavailable, sweeping without it", "error", err)
	default:
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to release sweep lock", "error", err)
			}
		}()
	}

	if _, err := s.settler.Sweep(ctx); err != nil {
		slog.Error("Settlement sweep failed", "error", err)
	}
}
