// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr string

	// DBDriver is "sqlite" or "postgres".
	DBDriver    string
	DBPath      string
	PostgresURL string

	// RedisAddr enables the sweep lock and the notification queue.
	RedisAddr string
	// NATSURL enables domain events.
	NATSURL string

	JWTSecret string

	SweepInterval time.Duration
	SweepLockTTL  time.Duration

	NotifyConcurrency int
	NotifyMaxRetry    int

	// LineSingleCall allows at most one CALLED shopper per sale.
	LineSingleCall bool

	PubNub PubNub

	LogLevel  string
	LogFormat string
}

// PubNub holds the push notification keys. Push is enabled when
// PublishKey is set.
type PubNub struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	var errs []error

	duration := func(key string, fallback time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return d
	}
	integer := func(key string, fallback int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return n
	}
	boolean := func(key string, fallback bool) bool {
		raw := os.Getenv(key)
		if raw == "" {
			return fallback
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return b
	}

	cfg := &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DBPath:            getEnv("DB_PATH", "./data/estatesale.db"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		NATSURL:           os.Getenv("NATS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		SweepInterval:     duration("SWEEP_INTERVAL", time.Minute),
		SweepLockTTL:      duration("SWEEP_LOCK_TTL", 0),
		NotifyConcurrency: integer("NOTIFY_CONCURRENCY", 8),
		NotifyMaxRetry:    integer("NOTIFY_MAX_RETRY", 5),
		LineSingleCall:    boolean("LINE_SINGLE_CALL", true),
		PubNub: PubNub{
			PublishKey:   os.Getenv("PUBNUB_PUBLISH_KEY"),
			SubscribeKey: os.Getenv("PUBNUB_SUBSCRIBE_KEY"),
			SecretKey:    os.Getenv("PUBNUB_SECRET_KEY"),
			UserID:       getEnv("PUBNUB_USER_ID", "estatesale-server"),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if cfg.SweepLockTTL == 0 {
		cfg.SweepLockTTL = cfg.SweepInterval
	}

	errs = append(errs, cfg.validate()...)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() []error {
	var errs []error
	switch c.DBDriver {
	case "sqlite":
	case "postgres":
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required with DB_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.NotifyConcurrency <= 0 {
		errs = append(errs, errors.New("NOTIFY_CONCURRENCY must be positive"))
	}
	if c.PubNub.PublishKey != "" && c.PubNub.SubscribeKey == "" {
		errs = append(errs, errors.New("PUBNUB_SUBSCRIBE_KEY is required with PUBNUB_PUBLISH_KEY"))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errs
}
