// Command sweep runs a single settlement sweep and prints the report as JSON.
// It is meant for cron-style deployments that do not run the server's
// scheduler.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mmynk/estatesale/internal/auction"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/lock"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/postgres"
	"github.com/mmynk/estatesale/internal/storage/sqlite"
	"github.com/mmynk/estatesale/pkg/logging"
)

func main() {
	driver := flag.String("driver", "sqlite", "database driver: sqlite or postgres")
	dbPath := flag.String("db", "./data/estatesale.db", "SQLite database path")
	pgURL := flag.String("postgres", os.Getenv("POSTGRES_URL"), "PostgreSQL connection string")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "Redis address for the sweep lock")
	natsURL := flag.String("nats", os.Getenv("NATS_URL"), "NATS URL for allocation events")
	at := flag.String("at", "", "sweep as of this past RFC 3339 time instead of now")
	flag.Parse()

	logging.Setup(os.Getenv("LOG_LEVEL"), "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	now, err := sweepTime(*at, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -at: %v\n", err)
		os.Exit(2)
	}

	var store storage.Store
	if *driver == "postgres" {
		store, err = postgres.New(ctx, *pgURL)
	} else {
		store, err = sqlite.New(*dbPath)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var opts []auction.Option
	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL, nats.Name("estatesale-sweep"))
		if err != nil {
			slog.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		pub, err := events.NewJetStreamPublisher(ctx, nc)
		if err != nil {
			slog.Error("Failed to initialize publisher", "error", err)
			os.Exit(1)
		}
		opts = append(opts, auction.WithPublisher(pub))
	} else {
		// Keep allocations in the outbox for the server to announce.
		opts = append(opts, auction.WithPublisher(outboxOnly{}))
	}

	settler := auction.NewSettler(store, opts...)

	if *redisAddr != "" {
		rdb, err := lock.Dial(ctx, *redisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		lease, err := lock.NewRedisLocker(rdb).Acquire(ctx, auction.SweepLockName, time.Minute)
		if err != nil {
			slog.Warn("Sweep lock not acquired, exiting", "error", err)
			return
		}
		defer lease.Release(context.WithoutCancel(ctx))
	}

	report, err := settler.RunSweep(ctx, now)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		slog.Error("Failed to write report", "error", err)
		os.Exit(1)
	}
}

// sweepTime resolves the -at flag. A sweep as of a future time would settle
// auctions that are still open, so only past times are accepted.
func sweepTime(at string, now time.Time) (time.Time, error) {
	if at == "" {
		return now, nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, err
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%s is in the future", at)
	}
	return t.UTC(), nil
}

// outboxOnly refuses every event so allocations stay unannounced.
type outboxOnly struct{}

func (outboxOnly) Publish(context.Context, events.Event) error {
	return fmt.Errorf("no event broker configured")
}
