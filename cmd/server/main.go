package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/hibiken/asynq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/estatesale/internal/auction"
	"github.com/mmynk/estatesale/internal/auth"
	"github.com/mmynk/estatesale/internal/config"
	"github.com/mmynk/estatesale/internal/events"
	"github.com/mmynk/estatesale/internal/line"
	"github.com/mmynk/estatesale/internal/lock"
	"github.com/mmynk/estatesale/internal/middleware"
	"github.com/mmynk/estatesale/internal/notify"
	"github.com/mmynk/estatesale/internal/service"
	"github.com/mmynk/estatesale/internal/storage"
	"github.com/mmynk/estatesale/internal/storage/postgres"
	"github.com/mmynk/estatesale/internal/storage/sqlite"
	"github.com/mmynk/estatesale/pkg/api/apiconnect"
	"github.com/mmynk/estatesale/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DBDriver == "postgres" {
		store, err := postgres.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "postgres")
		return store, nil
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.DBPath)
	return store, nil
}

// deliveryNotifier is the provider that actually reaches shoppers.
func deliveryNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.PubNub.PublishKey == "" {
		slog.Warn("No notification provider configured, logging notifications")
		return notify.LogNotifier{}, nil
	}
	return notify.NewPubNubNotifier(&notify.PubNubConfig{
		PublishKey:   cfg.PubNub.PublishKey,
		SubscribeKey: cfg.PubNub.SubscribeKey,
		SecretKey:    cfg.PubNub.SecretKey,
		UserID:       cfg.PubNub.UserID,
	})
}

func run(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	provider, err := deliveryNotifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	// With Redis, notifications go through the asynq queue and the sweep
	// takes a lease so only one instance sweeps per interval.
	var (
		notifier notify.Notifier = provider
		locker   lock.Locker     = lock.Noop{}
	)
	if cfg.RedisAddr != "" {
		rdb, err := lock.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)

		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client := asynq.NewClient(redisOpt)
		defer client.Close()
		notifier = notify.NewTaskNotifier(client, cfg.NotifyMaxRetry)

		worker, workerMux := notify.NewWorker(redisOpt, cfg.NotifyConcurrency, provider)
		if err := worker.Start(workerMux); err != nil {
			return fmt.Errorf("failed to start notification worker: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			worker.Shutdown()
			return nil
		})
		slog.Info("Redis enabled", "address", cfg.RedisAddr)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("estatesale"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nc.Drain()

		js, err := events.NewJetStreamPublisher(ctx, nc)
		if err != nil {
			return err
		}
		publisher = js
		slog.Info("Event publishing enabled", "url", cfg.NATSURL)
	}

	dispatcher := notify.NewDispatcher(notifier, cfg.NotifyConcurrency)
	defer dispatcher.Wait()

	ledger := auction.NewLedger(store,
		auction.WithPublisher(publisher),
		auction.WithDispatcher(dispatcher),
	)
	settler := auction.NewSettler(store,
		auction.WithPublisher(publisher),
		auction.WithDispatcher(dispatcher),
	)
	queue := line.NewQueue(store,
		line.WithPublisher(publisher),
		line.WithDispatcher(dispatcher),
		line.WithSingleCall(cfg.LineSingleCall),
	)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 24*time.Hour)
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager),
	)

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewSaleServiceHandler(service.NewSaleService(store, queue), interceptors))
	mux.Handle(apiconnect.NewAuctionServiceHandler(service.NewAuctionService(ledger, settler), interceptors))
	mux.Handle(apiconnect.NewLineServiceHandler(service.NewLineService(store, queue), interceptors))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		slog.Info("Connect server starting", "address", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return auction.NewScheduler(settler, cfg.SweepInterval, locker, cfg.SweepLockTTL).Run(ctx)
	})

	err = g.Wait()
	slog.Info("Server stopped")
	return err
}

// loggingMiddleware logs non-RPC requests; RPCs are logged by the interceptor.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			return
		}
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, Estatesale-Minimum-Bid")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
